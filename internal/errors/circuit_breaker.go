package errors

import (
	"errors"
	"sync"
	"time"
)

const (
	ErrorThreshold      = 0.5
	MinRequests         = 10
	TimeoutDuration     = 30 * time.Second
	HalfOpenMaxRequests = 3
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

var (
	ErrCircuitOpen             = errors.New("circuit breaker is open")
	errHalfOpenTooManyRequests = errors.New("too many requests in half-open")
)

// CircuitBreaker stops calling a failing dependency for a cool-down period.
type CircuitBreaker struct {
	mu              sync.Mutex
	name            string
	now             func() time.Time
	onStateChange   func(name string, from, to State)
	state           State
	failures        int
	successes       int
	requests        int
	lastFailureTime time.Time
}

type BreakerOption func(*CircuitBreaker)

// WithBreakerClock overrides the time source.
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(cb *CircuitBreaker) {
		if now != nil {
			cb.now = now
		}
	}
}

// WithStateChange registers a callback fired on every transition.
func WithStateChange(fn func(name string, from, to State)) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.onStateChange = fn
	}
}

func NewCircuitBreaker(name string, opts ...BreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:  name,
		now:   time.Now,
		state: StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

func (cb *CircuitBreaker) Call(fn func() error) error {
	if fn == nil {
		return nil
	}

	cb.mu.Lock()
	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailureTime) >= TimeoutDuration {
			cb.setStateLocked(StateHalfOpen)
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}

	if cb.state == StateHalfOpen && cb.requests >= HalfOpenMaxRequests {
		cb.mu.Unlock()
		return errHalfOpenTooManyRequests
	}
	cb.mu.Unlock()

	callErr := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.requests++
	if callErr != nil {
		cb.failures++

		if cb.state == StateHalfOpen {
			cb.tripToOpenLocked()
		} else if cb.requests >= MinRequests && float64(cb.failures)/float64(cb.requests) >= ErrorThreshold {
			cb.tripToOpenLocked()
		}

		return callErr
	}

	cb.successes++
	if cb.state == StateHalfOpen && cb.successes >= HalfOpenMaxRequests {
		cb.setStateLocked(StateClosed)
	}

	return nil
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) tripToOpenLocked() {
	cb.lastFailureTime = cb.now()
	cb.setStateLocked(StateOpen)
}

func (cb *CircuitBreaker) setStateLocked(to State) {
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	cb.requests = 0

	if cb.onStateChange != nil && from != to {
		cb.onStateChange(cb.name, from, to)
	}
}
