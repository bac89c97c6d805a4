package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Shutdown coordinates graceful shutdown hooks in parallel.
type Shutdown struct {
	mu    sync.Mutex
	hooks []Hook
	log   *slog.Logger
}

// NewShutdown constructs a new Shutdown coordinator.
func NewShutdown(log *slog.Logger) *Shutdown {
	if log == nil {
		log = slog.Default()
	}

	return &Shutdown{log: log}
}

// Register adds a named shutdown hook.
func (s *Shutdown) Register(name string, fn func(context.Context) error) {
	s.RegisterHook(Hook{Name: name, Fn: fn})
}

func (s *Shutdown) RegisterHook(h Hook) {
	if h.Fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, h)
}

// Execute runs all registered hooks concurrently and waits for completion.
// Hook failures are joined; one failing hook never stops the others.
func (s *Shutdown) Execute(ctx context.Context) error {
	s.mu.Lock()
	hooks := append([]Hook(nil), s.hooks...)
	s.mu.Unlock()

	start := time.Now()
	s.log.Info("shutdown sequence started", slog.Int("hook_count", len(hooks)))

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		errs  []error
	)
	for _, h := range hooks {
		wg.Add(1)
		go func(h Hook) {
			defer wg.Done()

			hookCtx, cancel := ctx, context.CancelFunc(func() {})
			if h.Timeout > 0 {
				hookCtx, cancel = context.WithTimeout(ctx, h.Timeout)
			}
			defer cancel()

			hookStart := time.Now()
			if err := h.Fn(hookCtx); err != nil {
				s.log.Error("shutdown hook failed", slog.String("hook", h.Name), slog.Any("error", err))
				errMu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
				errMu.Unlock()
				return
			}

			s.log.Info("shutdown hook completed", slog.String("hook", h.Name), slog.Duration("elapsed", time.Since(hookStart)))
		}(h)
	}

	wg.Wait()
	s.log.Info("shutdown sequence finished", slog.Duration("elapsed", time.Since(start)))

	return errors.Join(errs...)
}
