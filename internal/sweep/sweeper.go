// Package sweep periodically credits autoclicker taps for accounts whose
// clients are offline.
package sweep

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Proton-105/tapcoin-engine/internal/domain"
	"github.com/Proton-105/tapcoin-engine/pkg/metrics"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultWorkers  = 8
)

// Engine is the part of engine.Engine the sweep drives.
type Engine interface {
	AutoclickerDue(ctx context.Context) ([]int64, error)
	SweepAccount(ctx context.Context, id int64) (domain.AutoTapResult, error)
}

const (
	OutcomeCompleted = "completed"
	OutcomeOverlap   = "overlap"
	OutcomeNotLeader = "not_leader"
	OutcomeFailed    = "failed"
)

// Report summarises one pass.
type Report struct {
	PassID   string
	Outcome  string
	Due      int
	Applied  int
	Skipped  int
	Failed   int
	Taps     int64
	Coins    int64
	Duration time.Duration
}

// Sweeper runs autoclicker passes. A pass never overlaps another one in the
// same process and only the lease holder sweeps across processes.
type Sweeper struct {
	engine   Engine
	lease    Lease
	interval time.Duration
	workers  int
	log      *slog.Logger

	running  atomic.Bool
	inFlight sync.Map
}

type Option func(*Sweeper)

func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithWorkers(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.workers = n
		}
	}
}

func New(engine Engine, lease Lease, log *slog.Logger, opts ...Option) *Sweeper {
	if lease == nil {
		lease = LocalLease{}
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Sweeper{
		engine:   engine,
		lease:    lease,
		interval: DefaultInterval,
		workers:  DefaultWorkers,
		log:      log.With(slog.String("component", "sweep")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("autoclicker sweep started", slog.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("autoclicker sweep stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Per-account failures are logged and counted; they never
// abort the rest of the batch.
func (s *Sweeper) Sweep(ctx context.Context) Report {
	started := time.Now()
	report := Report{PassID: uuid.NewString()}
	log := s.log.With(slog.String("pass_id", report.PassID))

	defer func() {
		report.Duration = time.Since(started)
		metrics.RecordSweep(report.Outcome, report.Applied, report.Skipped, report.Failed, report.Duration)
	}()

	if !s.running.CompareAndSwap(false, true) {
		log.Debug("previous sweep still running, skipping tick")
		report.Outcome = OutcomeOverlap
		return report
	}
	defer s.running.Store(false)

	release, err := s.lease.Acquire(ctx)
	if err != nil {
		log.Error("sweep lease unavailable", slog.Any("error", err))
		report.Outcome = OutcomeFailed
		return report
	}
	if release == nil {
		report.Outcome = OutcomeNotLeader
		return report
	}
	defer release()

	ids, err := s.engine.AutoclickerDue(ctx)
	if err != nil {
		log.Error("failed to list autoclicker accounts", slog.Any("error", err))
		report.Outcome = OutcomeFailed
		return report
	}
	report.Due = len(ids)

	s.process(ctx, log, ids, &report)

	report.Outcome = OutcomeCompleted
	if report.Applied > 0 || report.Failed > 0 {
		log.Info("autoclicker sweep finished",
			slog.Int("due", report.Due),
			slog.Int("applied", report.Applied),
			slog.Int("skipped", report.Skipped),
			slog.Int("failed", report.Failed),
			slog.Int64("coins", report.Coins),
		)
	}
	return report
}

func (s *Sweeper) process(ctx context.Context, log *slog.Logger, ids []int64, report *Report) {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.workers)
	)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if _, busy := s.inFlight.LoadOrStore(id, struct{}{}); busy {
			mu.Lock()
			report.Skipped++
			mu.Unlock()
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(id int64) {
			defer func() {
				s.inFlight.Delete(id)
				<-sem
				wg.Done()
			}()

			res, err := s.engine.SweepAccount(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed++
				log.Error("autoclicker sweep failed for account", slog.Int64("account_id", id), slog.Any("error", err))
			case res.Taps > 0:
				report.Applied++
				report.Taps += res.Taps
				report.Coins += res.Reward
			default:
				report.Skipped++
			}
		}(id)
	}

	wg.Wait()
}
