package instrument

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/reactor/pkg/reactive"
)

// MetricsConfig configures the Prometheus probe.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "reactor").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for run duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus probe.
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
		Namespace: "reactor",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics is a reactive.Probe that exports engine activity as Prometheus
// metrics.
//
// Metrics collected:
//   - reactor_tracks_total: Counter of subscriber joins
//   - reactor_triggers_total: Counter of dispatching writes by op
//   - reactor_dispatched_total: Counter of subscribers invalidated by op
//   - reactor_runs_total: Counter of evaluations by kind (eager, lazy) and status
//   - reactor_run_duration_seconds: Histogram of evaluation time by kind
//   - reactor_run_errors_total: Counter of failed evaluations by error type
//   - reactor_callback_errors_total: Counter of isolated callback failures
//   - reactor_deferred_reruns_total: Counter of postponed self re-runs
//   - reactor_stops_total: Counter of deactivated subscribers
//   - reactor_stack_depth: Gauge of the active-stack depth
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	engine := reactive.New(reactive.WithProbe(
//	    instrument.NewMetrics(instrument.WithRegistry(reg)),
//	))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
type Metrics struct {
	tracks         prometheus.Counter
	triggers       *prometheus.CounterVec
	dispatched     *prometheus.CounterVec
	runs           *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	runErrors      *prometheus.CounterVec
	callbackErrors *prometheus.CounterVec
	deferredReruns prometheus.Counter
	stops          prometheus.Counter
	stackDepth     prometheus.Gauge
}

var _ reactive.Probe = (*Metrics)(nil)

// NewMetrics registers the probe's collectors and returns the probe.
// Registering twice against the same registry panics, as with promauto.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		tracks: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "tracks_total",
			Help:        "Total number of times a subscriber joined a dependency set",
			ConstLabels: config.ConstLabels,
		}),

		triggers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "triggers_total",
			Help:        "Total number of writes that dispatched to subscribers",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		dispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatched_total",
			Help:        "Total number of subscriber invalidations",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "runs_total",
			Help:        "Total number of subscriber evaluations",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "status"}),

		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "run_duration_seconds",
			Help:        "Subscriber evaluation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"kind"}),

		runErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "run_errors_total",
			Help:        "Total number of failed evaluations",
			ConstLabels: config.ConstLabels,
		}, []string{"error_type"}),

		callbackErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "callback_errors_total",
			Help:        "Total number of isolated callback failures",
			ConstLabels: config.ConstLabels,
		}, []string{"panicked"}),

		deferredReruns: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "deferred_reruns_total",
			Help:        "Total number of re-runs postponed because the subscriber was evaluating",
			ConstLabels: config.ConstLabels,
		}),

		stops: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "stops_total",
			Help:        "Total number of deactivated subscribers",
			ConstLabels: config.ConstLabels,
		}),

		stackDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "stack_depth",
			Help:        "Depth of the active-subscriber stack",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Observe implements reactive.Probe.
func (m *Metrics) Observe(ev reactive.Event) {
	switch ev.Kind {
	case reactive.EventTrack:
		m.tracks.Inc()
	case reactive.EventTrigger:
		op := ev.Op.String()
		m.triggers.WithLabelValues(op).Inc()
		m.dispatched.WithLabelValues(op).Add(float64(ev.Targets))
	case reactive.EventRunStart:
		m.stackDepth.Set(float64(ev.Depth + 1))
	case reactive.EventRunEnd:
		kind := runKind(ev.Lazy)
		m.stackDepth.Set(float64(ev.Depth))
		m.runDuration.WithLabelValues(kind).Observe(ev.Duration.Seconds())
		status := "success"
		if ev.Err != nil {
			status = "error"
			m.runErrors.WithLabelValues(categorizeError(ev.Err)).Inc()
		}
		m.runs.WithLabelValues(kind, status).Inc()
	case reactive.EventCallbackError:
		panicked := false
		var cbErr *reactive.CallbackError
		if errors.As(ev.Err, &cbErr) {
			panicked = cbErr.Panicked
		}
		m.callbackErrors.WithLabelValues(strconv.FormatBool(panicked)).Inc()
	case reactive.EventDeferredRerun:
		m.deferredReruns.Inc()
	case reactive.EventStop:
		m.stops.Inc()
	}
}

func runKind(lazy bool) string {
	if lazy {
		return "lazy"
	}
	return "eager"
}

// categorizeError returns a low-cardinality label for an evaluation error.
func categorizeError(err error) string {
	switch {
	case errors.Is(err, reactive.ErrRerunLimit):
		return "rerun_limit"
	case errors.Is(err, reactive.ErrCycle):
		return "cycle"
	default:
		var cbErr *reactive.CallbackError
		if errors.As(err, &cbErr) {
			return "callback"
		}
		return "computation"
	}
}
