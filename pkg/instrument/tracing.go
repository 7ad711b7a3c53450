package instrument

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/reactor/pkg/reactive"
)

// Default tracer name for engine spans.
const defaultTracerName = "reactor"

// TracingConfig configures the OpenTelemetry probe.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "reactor").
	TracerName string

	// Tracer overrides the tracer resolved from the global provider.
	Tracer trace.Tracer

	// Context is the parent of top-level run spans (default: context.Background()).
	Context context.Context

	// Filter determines which runs get a span. Return true to trace the
	// run. Nested runs of a skipped run attach to the nearest traced
	// ancestor. If nil, all runs are traced.
	Filter func(ev reactive.Event) bool

	// IncludeValues records trigger values as event attributes.
	// Values may contain sensitive information - disabled by default.
	IncludeValues bool
}

// TracingOption configures the OpenTelemetry probe.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithTracer sets the tracer explicitly.
func WithTracer(tracer trace.Tracer) TracingOption {
	return func(c *TracingConfig) {
		c.Tracer = tracer
	}
}

// WithParentContext sets the parent context for top-level spans.
func WithParentContext(ctx context.Context) TracingOption {
	return func(c *TracingConfig) {
		c.Context = ctx
	}
}

// WithRunFilter sets a filter function for runs.
func WithRunFilter(filter func(ev reactive.Event) bool) TracingOption {
	return func(c *TracingConfig) {
		c.Filter = filter
	}
}

// WithIncludeValues enables recording trigger values.
func WithIncludeValues(include bool) TracingOption {
	return func(c *TracingConfig) {
		c.IncludeValues = include
	}
}

func defaultTracingConfig() TracingConfig {
	return TracingConfig{
		TracerName: defaultTracerName,
		Context:    context.Background(),
	}
}

// Tracing is a reactive.Probe that opens one span per subscriber run.
// Runs nested inside another run become child spans; triggers, deferred
// re-runs and callback failures are recorded as span events on the run
// that caused them.
//
// The tracer uses the global OpenTelemetry tracer provider unless one is
// given with WithTracer. Configure it in main() before creating engines:
//
//	otel.SetTracerProvider(tp)
//	engine := reactive.New(reactive.WithProbe(instrument.NewTracing()))
type Tracing struct {
	config TracingConfig

	mu    sync.Mutex
	stack []frame
}

// frame is one run on the probe's span stack. span is nil for a run the
// filter skipped.
type frame struct {
	ctx  context.Context
	span trace.Span
}

var _ reactive.Probe = (*Tracing)(nil)

// NewTracing creates a tracing probe.
func NewTracing(opts ...TracingOption) *Tracing {
	config := defaultTracingConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Tracer == nil {
		config.Tracer = otel.Tracer(config.TracerName)
	}
	if config.Context == nil {
		config.Context = context.Background()
	}
	return &Tracing{config: config}
}

// Observe implements reactive.Probe.
func (t *Tracing) Observe(ev reactive.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Kind {
	case reactive.EventRunStart:
		t.start(ev)
	case reactive.EventRunEnd:
		t.end(ev)
	case reactive.EventTrigger:
		attrs := []attribute.KeyValue{
			attribute.String("reactor.op", ev.Op.String()),
			attribute.String("reactor.key", ev.Key),
			attribute.Int("reactor.targets", ev.Targets),
		}
		if t.config.IncludeValues {
			attrs = append(attrs,
				attribute.String("reactor.value", fmt.Sprintf("%v", ev.Value)),
				attribute.String("reactor.old_value", fmt.Sprintf("%v", ev.OldValue)),
			)
		}
		if span := t.current(); span != nil {
			span.AddEvent("reactor.trigger", trace.WithAttributes(attrs...))
		}
	case reactive.EventDeferredRerun:
		if span := t.current(); span != nil {
			span.AddEvent("reactor.deferred_rerun", trace.WithAttributes(
				attribute.Int64("reactor.subscriber", int64(ev.Subscriber)),
			))
		}
	case reactive.EventCallbackError:
		if span := t.current(); span != nil {
			span.RecordError(ev.Err, trace.WithAttributes(
				attribute.Int64("reactor.subscriber", int64(ev.Subscriber)),
				attribute.String("reactor.source", ev.Source),
			))
		}
	}
}

// Depth returns the number of runs currently open on the probe.
func (t *Tracing) Depth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.stack)
}

func (t *Tracing) start(ev reactive.Event) {
	parent := t.config.Context
	if n := len(t.stack); n > 0 {
		parent = t.stack[n-1].ctx
	}

	if t.config.Filter != nil && !t.config.Filter(ev) {
		t.stack = append(t.stack, frame{ctx: parent})
		return
	}

	ctx, span := t.config.Tracer.Start(parent, "reactor.run "+ev.Source,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int64("reactor.subscriber", int64(ev.Subscriber)),
			attribute.String("reactor.source", ev.Source),
			attribute.Bool("reactor.lazy", ev.Lazy),
			attribute.Int("reactor.depth", ev.Depth),
		),
	)
	t.stack = append(t.stack, frame{ctx: ctx, span: span})
}

func (t *Tracing) end(ev reactive.Event) {
	n := len(t.stack)
	if n == 0 {
		return
	}
	f := t.stack[n-1]
	t.stack = t.stack[:n-1]
	if f.span == nil {
		return
	}

	if ev.Err != nil {
		f.span.RecordError(ev.Err)
		f.span.SetStatus(codes.Error, ev.Err.Error())
	} else {
		f.span.SetStatus(codes.Ok, "")
	}
	f.span.SetAttributes(attribute.Float64("reactor.duration_ms", float64(ev.Duration.Microseconds())/1000))
	f.span.End()
}

// current returns the innermost traced span.
func (t *Tracing) current() trace.Span {
	for i := len(t.stack) - 1; i >= 0; i-- {
		if t.stack[i].span != nil {
			return t.stack[i].span
		}
	}
	return nil
}
