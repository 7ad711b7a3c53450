package reactive

import "time"

// EventKind identifies what happened inside the engine.
type EventKind uint8

const (
	// EventTrack is emitted when a subscriber joins a dependency set.
	EventTrack EventKind = iota + 1

	// EventTrigger is emitted when a write dispatches to a dependency set.
	EventTrigger

	// EventRunStart is emitted before a subscriber evaluates its computation.
	EventRunStart

	// EventRunEnd is emitted after the computation returns, with its duration
	// and error.
	EventRunEnd

	// EventCallbackError is emitted when a user-mode callback fails.
	EventCallbackError

	// EventDeferredRerun is emitted when a subscriber invalidates itself while
	// evaluating and its re-run is postponed.
	EventDeferredRerun

	// EventStop is emitted when a subscriber is deactivated.
	EventStop
)

// String returns a human-readable name for the event kind.
func (k EventKind) String() string {
	switch k {
	case EventTrack:
		return "track"
	case EventTrigger:
		return "trigger"
	case EventRunStart:
		return "run-start"
	case EventRunEnd:
		return "run-end"
	case EventCallbackError:
		return "callback-error"
	case EventDeferredRerun:
		return "deferred-rerun"
	case EventStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Event describes one engine occurrence delivered to probes.
// Fields that do not apply to a kind are left zero.
type Event struct {
	Kind EventKind

	// Subscriber is the id of the subscriber involved, if any.
	Subscriber uint64

	// Source describes the subscriber's computation.
	Source string

	// Lazy reports whether the subscriber is lazy (computed).
	Lazy bool

	// Dep is the id of the dependency set involved, if any.
	Dep uint64

	// Key is the container key involved, if any.
	Key string

	// Op is the write operation for EventTrigger.
	Op TriggerOp

	// Targets is the number of subscribers dispatched by EventTrigger.
	Targets int

	// Value and OldValue are the written and replaced values for
	// EventTrigger. OldValue is nil for OpAdd, Value is nil for OpDelete.
	Value    any
	OldValue any

	// Depth is the active-stack depth when the event was emitted.
	Depth int

	// Duration is the evaluation time for EventRunEnd.
	Duration time.Duration

	// Err is set on EventRunEnd when the computation failed and on
	// EventCallbackError.
	Err error
}

// Probe observes engine events. Probes run synchronously on the engine's
// goroutine and must not mutate reactive state.
type Probe interface {
	Observe(ev Event)
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ev Event)

// Observe implements Probe.
func (f ProbeFunc) Observe(ev Event) {
	f(ev)
}

// emit delivers ev to every installed probe.
func (e *Engine) emit(ev Event) {
	if len(e.probes) == 0 {
		return
	}
	ev.Depth = len(e.stack)
	for _, p := range e.probes {
		p.Observe(ev)
	}
}

// probing reports whether any probe is installed, so callers can skip
// building events.
func (e *Engine) probing() bool {
	return len(e.probes) > 0
}
