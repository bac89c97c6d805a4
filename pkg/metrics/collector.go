// Package metrics exposes Prometheus instruments for the economy engine.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tapcoin"

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of engine operations labeled by operation and status",
		},
		[]string{"operation", "status"},
	)
	operationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of engine operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	tapsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "taps_total",
			Help:      "Total number of taps applied, manual or simulated",
		},
		[]string{"source"},
	)
	coinsCreditedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coins_credited_total",
			Help:      "Coins credited to accounts by source",
		},
		[]string{"source"},
	)
	suspiciousTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suspicious_flags_total",
			Help:      "Number of accounts newly flagged by the anti-cheat analyzer",
		},
	)
	sweepPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_passes_total",
			Help:      "Autoclicker sweep passes by outcome",
		},
		[]string{"outcome"},
	)
	sweepAccountsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_accounts_total",
			Help:      "Accounts visited by the autoclicker sweep by outcome",
		},
		[]string{"outcome"},
	)
	sweepDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of one autoclicker sweep pass",
			Buckets:   prometheus.DefBuckets,
		},
	)
	aggregateFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregate_failures_total",
			Help:      "Global aggregate deltas that could not be applied",
		},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors split by kind and severity",
		},
		[]string{"kind", "severity"},
	)
	globalCoins = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "global_coins",
		Help:      "Coins held across all accounts",
	})
	globalTaps = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "global_taps",
		Help:      "Taps across all accounts",
	})
	globalUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "global_users",
		Help:      "Registered accounts",
	})
)

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// RecordOperation increments operation counters and records duration.
func RecordOperation(operation, status string, duration time.Duration) {
	operationsTotal.WithLabelValues(label(operation), label(status)).Inc()
	operationDurationSeconds.WithLabelValues(label(operation)).Observe(duration.Seconds())
}

// RecordTaps counts applied taps and the coins they produced.
func RecordTaps(source string, taps, coins int64) {
	if taps > 0 {
		tapsTotal.WithLabelValues(label(source)).Add(float64(taps))
	}
	RecordCredit(source, coins)
}

// RecordCredit counts coins credited outside of taps.
func RecordCredit(source string, coins int64) {
	if coins > 0 {
		coinsCreditedTotal.WithLabelValues(label(source)).Add(float64(coins))
	}
}

func RecordSuspicious() {
	suspiciousTotal.Inc()
}

// RecordSweep records one sweep pass.
func RecordSweep(outcome string, applied, skipped, failed int, duration time.Duration) {
	sweepPassesTotal.WithLabelValues(label(outcome)).Inc()
	sweepAccountsTotal.WithLabelValues("applied").Add(float64(applied))
	sweepAccountsTotal.WithLabelValues("skipped").Add(float64(skipped))
	sweepAccountsTotal.WithLabelValues("failed").Add(float64(failed))
	sweepDurationSeconds.Observe(duration.Seconds())
}

func RecordAggregateFailure() {
	aggregateFailuresTotal.Inc()
}

// RecordError increments error counters with metadata.
func RecordError(kind, severity string) {
	errorsTotal.WithLabelValues(label(kind), label(severity)).Inc()
}

// Totals is the global aggregate as reported to Prometheus.
type Totals struct {
	Coins int64
	Taps  int64
	Users int64
}

// TotalsSource reads the global aggregate.
type TotalsSource interface {
	Totals(ctx context.Context) (Totals, error)
}

// TotalsFunc adapts a function to TotalsSource.
type TotalsFunc func(ctx context.Context) (Totals, error)

func (f TotalsFunc) Totals(ctx context.Context) (Totals, error) { return f(ctx) }

// AggregateCollector periodically copies the global aggregate into gauges.
type AggregateCollector struct {
	source   TotalsSource
	interval time.Duration
	log      *slog.Logger
}

func NewAggregateCollector(source TotalsSource, interval time.Duration, log *slog.Logger) *AggregateCollector {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &AggregateCollector{source: source, interval: interval, log: log}
}

// Run polls the aggregate until ctx is cancelled.
func (c *AggregateCollector) Run(ctx context.Context) {
	if c == nil || c.source == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.Collect(ctx); err != nil {
			c.log.Warn("aggregate collection failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Collect performs one poll.
func (c *AggregateCollector) Collect(ctx context.Context) error {
	t, err := c.source.Totals(ctx)
	if err != nil {
		return err
	}

	globalCoins.Set(float64(t.Coins))
	globalTaps.Set(float64(t.Taps))
	globalUsers.Set(float64(t.Users))
	return nil
}
