package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/Proton-105/tapcoin-engine/internal/health"
)

// ErrNotReady is returned while the process is starting or draining.
var ErrNotReady = errors.New("engine is not ready")

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// Probes backs /healthz and /readyz. Liveness only reflects the process;
// readiness also requires the ready flag and every dependency check.
type Probes struct {
	checker *health.Checker
	ready   atomic.Bool
	log     *slog.Logger
}

var _ HealthChecker = (*Probes)(nil)

func NewProbes(checker *health.Checker, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{checker: checker, log: log}
}

// SetReady flips readiness, e.g. after startup or when draining begins.
func (p *Probes) SetReady(ready bool) {
	p.ready.Store(ready)
	p.log.Info("readiness changed", slog.Bool("ready", ready))
}

func (p *Probes) Liveness(context.Context) error {
	return nil
}

func (p *Probes) Readiness(ctx context.Context) error {
	if !p.ready.Load() {
		return ErrNotReady
	}
	if p.checker == nil {
		return nil
	}
	if _, ok := p.checker.Check(ctx); !ok {
		return errors.New("dependency check failed")
	}
	return nil
}

// HealthzHandler reports every dependency. It answers 503 when any check fails.
func (p *Probes) HealthzHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		results := map[string]string{}
		ok := true
		if p.checker != nil {
			results, ok = p.checker.Check(r.Context())
		}
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]any{"healthy": ok, "checks": results})
	})
}

// ReadyzHandler answers 200 only when Readiness passes.
func (p *Probes) ReadyzHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := p.Readiness(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false, "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ready": true})
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
