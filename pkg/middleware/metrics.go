package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/discuss/pkg/api"
	"github.com/vango-dev/discuss/pkg/features/query"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "discuss").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for mutation duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "discuss",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors for mutations and the query cache.
type Metrics struct {
	mutationsTotal   *prometheus.CounterVec
	mutationDuration *prometheus.HistogramVec
	mutationErrors   *prometheus.CounterVec
	cacheEvents      *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors. Registering twice on the
// same registry panics, as with promauto.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		mutationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "mutations_total",
			Help:        "Total number of mutation attempts",
			ConstLabels: config.ConstLabels,
		}, []string{"mutation", "status"}),

		mutationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "mutation_duration_seconds",
			Help:        "Mutation attempt duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"mutation"}),

		mutationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "mutation_errors_total",
			Help:        "Total number of failed mutation attempts",
			ConstLabels: config.ConstLabels,
		}, []string{"mutation", "error_type"}),

		cacheEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cache_events_total",
			Help:        "Total number of query cache events",
			ConstLabels: config.ConstLabels,
		}, []string{"event"}),
	}
}

// Middleware returns a query.Middleware that records every attempt.
func (m *Metrics) Middleware() query.Middleware {
	return query.MiddlewareFunc(func(ctx context.Context, info query.MutationInfo, next func(context.Context) error) error {
		start := time.Now()
		err := next(ctx)
		m.mutationDuration.WithLabelValues(info.Name).Observe(time.Since(start).Seconds())

		status := "success"
		if err != nil {
			status = "error"
			m.mutationErrors.WithLabelValues(info.Name, categorizeError(err)).Inc()
		}
		m.mutationsTotal.WithLabelValues(info.Name, status).Inc()
		return err
	})
}

// ObserveCache counts the events of qc until the returned function is called.
func (m *Metrics) ObserveCache(qc *query.Client) (unsubscribe func()) {
	return qc.Subscribe(func(ev query.Event) {
		m.cacheEvents.WithLabelValues(ev.Type.String()).Inc()
	})
}

// categorizeError returns a low-cardinality label for err.
func categorizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}

	var herr *api.HTTPError
	if errors.As(err, &herr) {
		switch {
		case herr.StatusCode == http.StatusNotFound:
			return "not_found"
		case herr.StatusCode == http.StatusUnauthorized:
			return "unauthorized"
		case herr.StatusCode == http.StatusForbidden:
			return "forbidden"
		case herr.StatusCode == http.StatusTooManyRequests:
			return "rate_limit"
		case herr.StatusCode >= 500:
			return "server"
		default:
			return "client"
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return "network"
	default:
		return "internal"
	}
}
