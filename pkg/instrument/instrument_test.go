package instrument

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vango-dev/reactor/pkg/reactive"
)

func mustNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	metric, ok := c.(prometheus.Metric)
	if !ok {
		t.Fatalf("collector %T is not a single metric", c)
	}
	var m dto.Metric
	mustNoError(t, metric.Write(&m))
	if m.Counter == nil {
		t.Fatalf("metric %v is not a counter", metric.Desc())
	}
	return m.GetCounter().GetValue()
}

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	mustNoError(t, metric.Write(&m))
	if m.Histogram == nil {
		t.Fatalf("metric %v is not a histogram", metric.Desc())
	}
	return m.GetHistogram().GetSampleCount()
}

func TestMetricsRecordsEngineActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg), WithNamespace("test"))
	e := reactive.New(reactive.WithProbe(m))

	state := e.Reactive(reactive.ObjectOf(map[string]any{"count": 0}))
	s, err := e.Effect(func() error {
		_ = state.Get("count")
		return nil
	})
	mustNoError(t, err)

	mustNoError(t, state.Set("count", 1))
	mustNoError(t, state.Set("extra", 1))
	s.Stop()

	counters := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"tracks", m.tracks, 2},
		{"triggers", m.triggers.WithLabelValues("set"), 1},
		{"dispatched", m.dispatched.WithLabelValues("set"), 1},
		{"runs", m.runs.WithLabelValues("eager", "success"), 2},
		{"stops", m.stops, 1},
	}
	for _, tt := range counters {
		if got := counterValue(t, tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
	if got := histogramCount(t, m.runDuration.WithLabelValues("eager")); got != 2 {
		t.Errorf("run duration samples = %d, want 2", got)
	}

	families, err := reg.Gather()
	mustNoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	for _, want := range []string{"test_runs_total", "test_triggers_total"} {
		if !slices.Contains(names, want) {
			t.Errorf("gathered families %v missing %s", names, want)
		}
	}
}

func TestMetricsCategorizesErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg))
	e := reactive.New(reactive.WithProbe(m), reactive.WithErrorHandler(func(error) {}))

	if _, err := e.RunTracked(func(any) (any, error) { return nil, errors.New("bad") }); err == nil {
		t.Fatal("expected computation error")
	}
	if got := counterValue(t, m.runErrors.WithLabelValues("computation")); got != 1 {
		t.Errorf("computation errors = %v, want 1", got)
	}
	if got := counterValue(t, m.runs.WithLabelValues("eager", "error")); got != 1 {
		t.Errorf("failed runs = %v, want 1", got)
	}

	state := e.Reactive(reactive.ObjectOf(map[string]any{"n": 0}))
	_, err := e.PathWatch(state, "n", func(any, any) error { panic("handler") })
	mustNoError(t, err)
	mustNoError(t, state.Set("n", 1))
	if got := counterValue(t, m.callbackErrors.WithLabelValues("true")); got != 1 {
		t.Errorf("panicked callback errors = %v, want 1", got)
	}

	tests := []struct {
		err  error
		want string
	}{
		{reactive.ErrRerunLimit, "rerun_limit"},
		{reactive.ErrCycle, "cycle"},
	}
	for _, tt := range tests {
		if got := categorizeError(tt.err); got != tt.want {
			t.Errorf("categorizeError(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestMetricsCountsDeferredReruns(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg))
	e := reactive.New(reactive.WithProbe(m))
	state := e.Reactive(reactive.ObjectOf(map[string]any{"n": 0}))

	_, err := e.Effect(func() error {
		n := state.Get("n").(int)
		if n < 2 {
			return state.Set("n", n+1)
		}
		return nil
	})
	mustNoError(t, err)
	if got := counterValue(t, m.deferredReruns); got != 2 {
		t.Errorf("deferred reruns = %v, want 2", got)
	}
	if got := state.Get("n"); got != 2 {
		t.Errorf("n = %v, want 2", got)
	}
}

type recordedSpan struct {
	noop.Span
	name   string
	parent *recordedSpan
	ended  bool
	status codes.Code
	errs   []error
	events []string
}

func (s *recordedSpan) End(...trace.SpanEndOption) { s.ended = true }
func (s *recordedSpan) SetStatus(c codes.Code, _ string) { s.status = c }
func (s *recordedSpan) SetAttributes(...attribute.KeyValue) {}
func (s *recordedSpan) RecordError(err error, _ ...trace.EventOption) { s.errs = append(s.errs, err) }
func (s *recordedSpan) AddEvent(name string, _ ...trace.EventOption) {
	s.events = append(s.events, name)
}

type recordingTracer struct {
	noop.Tracer
	spans []*recordedSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	span := &recordedSpan{name: name}
	if parent, ok := trace.SpanFromContext(ctx).(*recordedSpan); ok {
		span.parent = parent
	}
	t.spans = append(t.spans, span)
	return trace.ContextWithSpan(ctx, span), span
}

func TestTracingNestsRunSpans(t *testing.T) {
	tracer := &recordingTracer{}
	tr := NewTracing(WithTracer(tracer))
	e := reactive.New(reactive.WithProbe(tr))

	state := e.Reactive(reactive.ObjectOf(map[string]any{"a": 1}))
	double := e.Computed(nil, func(any) (any, error) {
		return state.Get("a").(int) * 2, nil
	}, reactive.Named("double"))

	_, err := e.RunTracked(func(any) (any, error) {
		return double.Value()
	}, reactive.Named("outer"))
	mustNoError(t, err)

	if len(tracer.spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(tracer.spans))
	}
	outer, inner := tracer.spans[0], tracer.spans[1]
	if outer.name != "reactor.run outer" || inner.name != "reactor.run double" {
		t.Errorf("span names = %q, %q", outer.name, inner.name)
	}
	if inner.parent != outer {
		t.Error("computed span should be a child of the outer run")
	}
	if !outer.ended || !inner.ended {
		t.Error("both spans should be ended")
	}
	if outer.status != codes.Ok {
		t.Errorf("outer status = %v, want Ok", outer.status)
	}
	if tr.Depth() != 0 {
		t.Errorf("Depth() = %d, want 0", tr.Depth())
	}
}

func TestTracingRecordsErrorsAndEvents(t *testing.T) {
	tracer := &recordingTracer{}
	e := reactive.New(
		reactive.WithProbe(NewTracing(WithTracer(tracer))),
		reactive.WithErrorHandler(func(error) {}),
	)
	state := e.Reactive(reactive.ObjectOf(map[string]any{"n": 0}))
	other := e.Reactive(reactive.ObjectOf(map[string]any{"m": 0}))

	_, err := e.RunTracked(func(any) (any, error) { return other.Get("m"), nil })
	mustNoError(t, err)

	_, err = e.Effect(func() error {
		if state.Get("n").(int) > 0 {
			if err := other.Set("m", 1); err != nil {
				return err
			}
			return errors.New("after write")
		}
		return nil
	}, reactive.Named("writer"))
	mustNoError(t, err)

	if err := state.Set("n", 1); err == nil {
		t.Fatal("expected the writer's error to reach Set")
	}

	var writerRun *recordedSpan
	for _, s := range tracer.spans {
		if s.name == "reactor.run writer" && len(s.errs) > 0 {
			writerRun = s
		}
	}
	if writerRun == nil {
		t.Fatal("no failed writer span recorded")
	}
	if writerRun.status != codes.Error {
		t.Errorf("writer status = %v, want Error", writerRun.status)
	}
	if !slices.Contains(writerRun.events, "reactor.trigger") {
		t.Errorf("writer events = %v, want reactor.trigger", writerRun.events)
	}
}

func TestTracingFilterSkipsRuns(t *testing.T) {
	tracer := &recordingTracer{}
	tr := NewTracing(WithTracer(tracer), WithRunFilter(func(ev reactive.Event) bool {
		return ev.Source != "skipped"
	}))
	e := reactive.New(reactive.WithProbe(tr))

	_, err := e.RunTracked(func(any) (any, error) {
		_, err := e.RunTracked(func(any) (any, error) { return nil, nil }, reactive.Named("traced"))
		return nil, err
	}, reactive.Named("skipped"))
	mustNoError(t, err)

	if len(tracer.spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(tracer.spans))
	}
	if tracer.spans[0].name != "reactor.run traced" {
		t.Errorf("span name = %q", tracer.spans[0].name)
	}
	if tracer.spans[0].parent != nil {
		t.Error("filtered run should not parent the traced span")
	}
	if tr.Depth() != 0 {
		t.Errorf("Depth() = %d, want 0", tr.Depth())
	}
}
