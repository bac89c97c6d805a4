package redis

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	goredis "github.com/redis/go-redis/v9"
)

var (
	redisRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tapcoin_redis_requests_total",
			Help: "Total number of Redis requests by method.",
		},
		[]string{"method"},
	)
	redisErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tapcoin_redis_errors_total",
			Help: "Total number of Redis errors by method.",
		},
		[]string{"method"},
	)
	redisRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tapcoin_redis_request_duration_seconds",
			Help:    "Redis request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// MetricsClient wraps Client to collect Prometheus metrics.
type MetricsClient struct {
	next *Client
}

// NewMetricsClient creates an instrumented Redis client.
func NewMetricsClient(next *Client) *MetricsClient {
	return &MetricsClient{next: next}
}

func observe(method string, fn func() error) {
	timer := prometheus.NewTimer(redisRequestDuration.WithLabelValues(method))
	err := fn()
	timer.ObserveDuration()
	redisRequestsTotal.WithLabelValues(method).Inc()
	if err != nil && err != goredis.Nil {
		redisErrorsTotal.WithLabelValues(method).Inc()
	}
}

func (m *MetricsClient) Get(ctx context.Context, key string) (result string, err error) {
	observe("get", func() error {
		result, err = m.next.Get(ctx, key)
		return err
	})
	return result, err
}

func (m *MetricsClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) (err error) {
	observe("set", func() error {
		err = m.next.Set(ctx, key, value, ttl)
		return err
	})
	return err
}

func (m *MetricsClient) Delete(ctx context.Context, key string) (err error) {
	observe("delete", func() error {
		err = m.next.Delete(ctx, key)
		return err
	})
	return err
}

func (m *MetricsClient) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (ok bool, err error) {
	observe("setnx", func() error {
		ok, err = m.next.SetNX(ctx, key, value, ttl)
		return err
	})
	return ok, err
}

func (m *MetricsClient) DeleteIfEquals(ctx context.Context, key, token string) (ok bool, err error) {
	observe("delete_if_equals", func() error {
		ok, err = m.next.DeleteIfEquals(ctx, key, token)
		return err
	})
	return ok, err
}

func (m *MetricsClient) HGetAll(ctx context.Context, key string) (fields map[string]string, err error) {
	observe("hgetall", func() error {
		fields, err = m.next.HGetAll(ctx, key)
		return err
	})
	return fields, err
}

func (m *MetricsClient) Ping(ctx context.Context) (err error) {
	observe("ping", func() error {
		err = m.next.Ping(ctx)
		return err
	})
	return err
}

func (m *MetricsClient) Close() error {
	return m.next.Close()
}

// TxPipeline forwards to the underlying client. Pipelined commands are not instrumented.
func (m *MetricsClient) TxPipeline() goredis.Pipeliner {
	return m.next.TxPipeline()
}

// Raw exposes the underlying go-redis client for libraries that need it.
func (m *MetricsClient) Raw() *goredis.Client {
	return m.next.Client
}
