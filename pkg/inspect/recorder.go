package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/vango-dev/reactor/pkg/reactive"
)

// DefaultCapacity is the number of records a Recorder keeps when no
// capacity is given.
const DefaultCapacity = 4096

// maxValueLen bounds the rendered length of recorded values.
const maxValueLen = 256

// Record is the serialisable form of a reactive.Event.
type Record struct {
	Seq        uint64    `json:"seq"`
	Time       time.Time `json:"time"`
	Kind       string    `json:"kind"`
	Subscriber uint64    `json:"subscriber,omitempty"`
	Source     string    `json:"source,omitempty"`
	Lazy       bool      `json:"lazy,omitempty"`
	Dep        uint64    `json:"dep,omitempty"`
	Key        string    `json:"key,omitempty"`
	Op         string    `json:"op,omitempty"`
	Targets    int       `json:"targets,omitempty"`
	Value      string    `json:"value,omitempty"`
	OldValue   string    `json:"oldValue,omitempty"`
	Depth      int       `json:"depth"`
	DurationNS int64     `json:"durationNs,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Sink receives every record as it is captured.
type Sink interface {
	Publish(rec Record)
}

// Trace is the document written by Recorder.WriteJSON.
type Trace struct {
	Records []Record `json:"records"`
	Dropped uint64   `json:"dropped"`
}

// Recorder is a reactive.Probe that keeps the most recent events in a
// bounded buffer and forwards each one to its sinks.
type Recorder struct {
	mu       sync.Mutex
	records  []Record
	start    int
	capacity int
	seq      uint64
	dropped  uint64
	sinks    []Sink
	now      func() time.Time
}

var _ reactive.Probe = (*Recorder)(nil)

// NewRecorder creates a recorder keeping up to capacity records.
// A capacity below 1 selects DefaultCapacity.
func NewRecorder(capacity int, sinks ...Sink) *Recorder {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Recorder{
		capacity: capacity,
		sinks:    sinks,
		now:      time.Now,
	}
}

// AddSink registers another sink. Records captured earlier are not replayed.
func (r *Recorder) AddSink(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, s)
}

// Observe implements reactive.Probe.
func (r *Recorder) Observe(ev reactive.Event) {
	r.mu.Lock()
	r.seq++
	rec := recordOf(ev)
	rec.Seq = r.seq
	rec.Time = r.now()

	if len(r.records) < r.capacity {
		r.records = append(r.records, rec)
	} else {
		r.records[r.start] = rec
		r.start = (r.start + 1) % r.capacity
		r.dropped++
	}
	sinks := r.sinks
	r.mu.Unlock()

	for _, s := range sinks {
		s.Publish(rec)
	}
}

// Records returns the buffered records, oldest first.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0, len(r.records))
	out = append(out, r.records[r.start:]...)
	out = append(out, r.records[:r.start]...)
	return out
}

// Dropped returns how many records were evicted from the buffer.
func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Reset empties the buffer. Sequence numbers keep increasing.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
	r.start = 0
	r.dropped = 0
}

// WriteJSON writes the buffered records as an indented Trace document.
func (r *Recorder) WriteJSON(w io.Writer) error {
	doc := Trace{Records: r.Records(), Dropped: r.Dropped()}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func recordOf(ev reactive.Event) Record {
	rec := Record{
		Kind:       ev.Kind.String(),
		Subscriber: ev.Subscriber,
		Source:     ev.Source,
		Lazy:       ev.Lazy,
		Dep:        ev.Dep,
		Key:        ev.Key,
		Targets:    ev.Targets,
		Depth:      ev.Depth,
		DurationNS: ev.Duration.Nanoseconds(),
	}
	if ev.Kind == reactive.EventTrigger {
		rec.Op = ev.Op.String()
		rec.Value = formatValue(ev.Value)
		rec.OldValue = formatValue(ev.OldValue)
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
	}
	return rec
}

func formatValue(v any) string {
	if v == nil {
		return ""
	}
	s := fmt.Sprintf("%v", v)
	if len(s) <= maxValueLen {
		return s
	}
	cut := maxValueLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
