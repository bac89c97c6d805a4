package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

type Scheduler interface {
	RegisterTasks() error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	every          time.Duration
	log            *slog.Logger
}

func NewScheduler(redisOpt asynq.RedisConnOpt, every time.Duration, log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, nil),
		every:          every,
		log:            log,
	}
}

// CronSpec renders an interval as an asynq schedule.
func CronSpec(every time.Duration) string {
	return fmt.Sprintf("@every %s", every)
}

func (s *scheduler) RegisterTasks() error {
	task, err := NewAutoclickerSweepTask("schedule", s.every)
	if err != nil {
		return err
	}

	if _, err := s.asynqScheduler.Register(CronSpec(s.every), task); err != nil {
		return err
	}

	s.log.InfoContext(context.Background(), "scheduler: registered autoclicker sweep task", slog.Duration("every", s.every))
	return nil
}

func (s *scheduler) Run() {
	s.log.InfoContext(context.Background(), "scheduler: starting")

	go func() {
		if err := s.asynqScheduler.Run(); err != nil {
			s.log.ErrorContext(context.Background(), "scheduler: run failed", "error", err)
		}
	}()
}

func (s *scheduler) Shutdown() {
	s.log.InfoContext(context.Background(), "scheduler: shutting down")
	s.asynqScheduler.Shutdown()
}
