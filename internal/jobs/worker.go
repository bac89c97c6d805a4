package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Worker provides APIs to register handlers and control the background worker lifecycle.
type Worker interface {
	RegisterHandler(taskType string, handler asynq.Handler)
	Run() error
	Shutdown()
}

type worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *slog.Logger
}

var _ Worker = (*worker)(nil)

// NewWorker constructs a Worker backed by an asynq.Server instance.
func NewWorker(redisOpt asynq.RedisConnOpt, concurrency int, log *slog.Logger) Worker {
	if log == nil {
		log = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Queues:         Queues(),
		Concurrency:    concurrency,
		RetryDelayFunc: asynq.DefaultRetryDelayFunc,
		Logger:         newAsynqLogger(log),
	})

	return &worker{
		server: server,
		mux:    asynq.NewServeMux(),
		log:    log,
	}
}

// RegisterHandler wires a task type to the provided handler.
func (w *worker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
}

// Run starts the underlying asynq server to process tasks.
func (w *worker) Run() error {
	w.log.InfoContext(context.Background(), "jobs worker: starting processing loop")
	return w.server.Run(w.mux)
}

// Shutdown gracefully stops the worker.
func (w *worker) Shutdown() {
	w.log.InfoContext(context.Background(), "jobs worker: shutting down")
	w.server.Shutdown()
}

// asynqLogger routes asynq's own logging into slog.
type asynqLogger struct {
	log *slog.Logger
}

func newAsynqLogger(log *slog.Logger) *asynqLogger {
	return &asynqLogger{log: log.With(slog.String("component", "asynq"))}
}

func (l *asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmtArgs(args)) }
func (l *asynqLogger) Info(args ...interface{})  { l.log.Info(fmtArgs(args)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmtArgs(args)) }
func (l *asynqLogger) Error(args ...interface{}) { l.log.Error(fmtArgs(args)) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.log.Error(fmtArgs(args), slog.Bool("fatal", true)) }

func fmtArgs(args []interface{}) string {
	return fmt.Sprint(args...)
}
