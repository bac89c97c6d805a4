package lifecycle

import (
	"context"
	"time"
)

// Hook describes a named shutdown hook. A zero Timeout inherits the
// coordinator's deadline.
type Hook struct {
	Name    string
	Timeout time.Duration
	Fn      func(ctx context.Context) error
}

// CloserHook adapts an io.Closer-style func into a hook body.
func CloserHook(closeFn func() error) func(context.Context) error {
	return func(context.Context) error {
		return closeFn()
	}
}

// StopHook adapts a fire-and-forget stop func, such as an asynq Shutdown.
func StopHook(stop func()) func(context.Context) error {
	return func(context.Context) error {
		stop()
		return nil
	}
}
