package reactive

import (
	"fmt"
	"log/slog"
)

// DefaultMaxReruns bounds how many times a subscriber may re-run itself
// because it invalidated its own dependencies while evaluating.
const DefaultMaxReruns = 100

// ErrorHandler receives failures that the engine isolates instead of
// propagating. Today that is only *CallbackError from user-mode watchers.
type ErrorHandler func(err error)

// Engine owns all reactive state: the dependency registry, the
// active-subscriber stack, the tracking-enabled flag and the façade cache.
//
// An Engine is single-threaded. Every read, write, evaluation and
// notification happens synchronously on the caller's goroutine, and an
// Engine must not be shared between goroutines without external locking.
type Engine struct {
	registry *Registry

	// stack holds the subscribers currently evaluating; the last element is
	// the tracking target.
	stack []*Subscriber

	// shouldTrack gates dependency discovery. trackStack saves previous
	// values for nested pause/enable regions.
	shouldTrack bool
	trackStack  []bool

	// proxies caches Strategy B façades by target so wrapping is idempotent.
	proxies map[*Object]*Reactive

	nextSubID uint64

	maxReruns int
	logger    *slog.Logger
	onError   ErrorHandler
	probes    []Probe
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger used for isolated failures.
// If nil, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxReruns sets how many deferred self re-runs a subscriber may perform
// within one Run before ErrRerunLimit is returned. Values < 1 are ignored.
func WithMaxReruns(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxReruns = n
		}
	}
}

// WithErrorHandler replaces the default handler for isolated failures.
// The default logs through the engine logger.
func WithErrorHandler(h ErrorHandler) Option {
	return func(e *Engine) {
		e.onError = h
	}
}

// WithProbe installs a probe that observes engine events.
// May be given multiple times; probes are called in installation order.
func WithProbe(p Probe) Option {
	return func(e *Engine) {
		if p != nil {
			e.probes = append(e.probes, p)
		}
	}
}

// New creates an engine with an empty registry, an empty stack and
// tracking enabled.
func New(opts ...Option) *Engine {
	e := &Engine{
		shouldTrack: true,
		proxies:     make(map[*Object]*Reactive),
		maxReruns:   DefaultMaxReruns,
	}
	e.registry = newRegistry(e)

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.onError == nil {
		e.onError = e.logError
	}
	return e
}

// Registry returns the engine's dependency registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

// CheckAtRest verifies the between-operations invariant: no subscriber is
// evaluating, tracking is enabled and no pause/enable region is left open.
func (e *Engine) CheckAtRest() error {
	if len(e.stack) != 0 {
		return fmt.Errorf("%w: %d subscriber(s) on the active stack", ErrNotAtRest, len(e.stack))
	}
	if !e.shouldTrack {
		return fmt.Errorf("%w: tracking is paused", ErrNotAtRest)
	}
	if len(e.trackStack) != 0 {
		return fmt.Errorf("%w: %d unbalanced tracking region(s)", ErrNotAtRest, len(e.trackStack))
	}
	return nil
}

// HandleError routes an isolated failure to the configured ErrorHandler.
func (e *Engine) HandleError(err error) {
	if err == nil {
		return
	}
	e.onError(err)
}

func (e *Engine) logError(err error) {
	attrs := []any{"err", err}
	if ce, ok := err.(*CallbackError); ok {
		attrs = append(attrs,
			"subscriber", ce.SubscriberID,
			"source", ce.Source,
			"panicked", ce.Panicked,
		)
	}
	e.logger.Error("reactor: isolated callback failure", attrs...)
}

func (e *Engine) nextID() uint64 {
	e.nextSubID++
	return e.nextSubID
}
