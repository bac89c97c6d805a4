// Package health reports whether the engine's backing services are reachable.
package health

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"gopkg.in/telebot.v3"
)

const (
	StatusOK = "OK"

	defaultCheckTimeout = 2 * time.Second
)

// Checkable represents a component that can report its health status.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a function to Checkable.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Checker aggregates health checks for multiple components.
type Checker struct {
	log     *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]Checkable
}

func NewChecker(log *slog.Logger, timeout time.Duration) *Checker {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &Checker{
		log:     log,
		timeout: timeout,
		checks:  make(map[string]Checkable),
	}
}

// AddCheck registers a checkable component by name.
func (c *Checker) AddCheck(name string, check Checkable) {
	if name == "" || check == nil {
		return
	}
	c.mu.Lock()
	c.checks[name] = check
	c.mu.Unlock()
}

// Names lists registered components in order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every registered check concurrently, each under the checker's
// timeout, and reports per-component status plus whether all passed.
func (c *Checker) Check(ctx context.Context) (map[string]string, bool) {
	c.mu.RLock()
	checks := make(map[string]Checkable, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		healthy = true
		results = make(map[string]string, len(checks))
	)
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check Checkable) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			err := check.HealthCheck(checkCtx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				healthy = false
				results[name] = err.Error()
				c.log.Error("health check failed", slog.String("component", name), slog.Any("error", err))
				return
			}
			results[name] = StatusOK
		}(name, check)
	}
	wg.Wait()

	return results, healthy
}

// NewDBChecker pings a PostgreSQL database.
func NewDBChecker(db *sql.DB) Checkable {
	return CheckFunc(func(ctx context.Context) error {
		if db == nil {
			return sql.ErrConnDone
		}
		return db.PingContext(ctx)
	})
}

// Pinger is satisfied by pkg/redis clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRedisChecker issues a PING against Redis.
func NewRedisChecker(pinger Pinger) Checkable {
	return CheckFunc(func(ctx context.Context) error {
		if pinger == nil {
			return errors.New("redis client is not configured")
		}
		return pinger.Ping(ctx)
	})
}

// NewTelegramChecker reports whether the bot completed its getMe handshake.
func NewTelegramChecker(bot *telebot.Bot) Checkable {
	return CheckFunc(func(context.Context) error {
		if bot == nil || bot.Me == nil {
			return errors.New("telegram bot is not initialized or disconnected")
		}
		return nil
	})
}
