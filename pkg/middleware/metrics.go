package middleware

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/dux/pkg/registry"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "dux").
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

// MetricsOption configures the Prometheus metrics middleware.
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
		Namespace: "dux",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics is the Prometheus middleware. It also observes subscriber counts
// and notification fan-out.
type Metrics struct {
	mutationsTotal   *prometheus.CounterVec
	mutationDuration *prometheus.HistogramVec
	subscribers      *prometheus.GaugeVec
	notifications    *prometheus.CounterVec
	version          *prometheus.GaugeVec
}

var (
	_ registry.Middleware         = (*Metrics)(nil)
	_ registry.SubscriberObserver = (*Metrics)(nil)
	_ registry.NotifyObserver     = (*Metrics)(nil)
)

// Prometheus creates middleware that collects Prometheus metrics for every
// store in the registry it is installed on. Each call registers a fresh set
// of collectors, so use one Metrics per prometheus.Registerer.
//
// Example:
//
//	reg := registry.New(
//	    registry.WithMiddleware(
//	        middleware.Prometheus(middleware.WithNamespace("myapp")),
//	    ),
//	)
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) *Metrics {
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
			Help:        "Total number of store mutations by result",
			ConstLabels: config.ConstLabels,
		}, []string{"store", "result"}),

		mutationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "mutation_duration_seconds",
			Help:        "Mutation duration in seconds, including notification fan-out",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"store"}),

		subscribers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "subscribers",
			Help:        "Current number of subscribers per store",
			ConstLabels: config.ConstLabels,
		}, []string{"store"}),

		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notifications_total",
			Help:        "Total number of subscriber callbacks delivered",
			ConstLabels: config.ConstLabels,
		}, []string{"store"}),

		version: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "store_version",
			Help:        "Last published version per store",
			ConstLabels: config.ConstLabels,
		}, []string{"store"}),
	}
}

// Mutate implements registry.Middleware.
func (m *Metrics) Mutate(ctx context.Context, store string, next func(context.Context) registry.Mutation) registry.Mutation {
	start := time.Now()
	result := "panic"
	defer func() {
		m.mutationDuration.WithLabelValues(store).Observe(time.Since(start).Seconds())
		m.mutationsTotal.WithLabelValues(store, result).Inc()
	}()

	res := next(ctx)
	if res.Changed {
		result = "changed"
		m.version.WithLabelValues(store).Set(float64(res.Version))
	} else {
		result = "unchanged"
	}
	return res
}

// Subscribers implements registry.SubscriberObserver.
func (m *Metrics) Subscribers(store string, count int) {
	m.subscribers.WithLabelValues(store).Set(float64(count))
}

// Notified implements registry.NotifyObserver.
func (m *Metrics) Notified(store string, _ uint64, delivered int) {
	m.notifications.WithLabelValues(store).Add(float64(delivered))
}
