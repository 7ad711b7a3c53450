package reactive

import (
	"errors"
	"fmt"
)

// ErrRerunLimit is returned when a subscriber keeps invalidating itself
// during its own evaluation more times than the engine allows.
//
// This usually means a computation writes to a location it also reads and
// the write never converges (for example, unconditionally incrementing a
// counter it depends on).
var ErrRerunLimit = errors.New("reactor: subscriber re-run limit exceeded")

// ErrCycle is returned when a lazy subscriber is asked to evaluate while
// it is already evaluating, i.e. a computed value reads itself.
var ErrCycle = errors.New("reactor: computed value depends on itself")

// ErrNotAtRest is returned by Engine.CheckAtRest when a subscriber is still
// on the active stack or tracking is left paused between top-level operations.
var ErrNotAtRest = errors.New("reactor: engine not at rest")

// ErrNotContainer is returned when a path watch is given a root that does
// not implement Accessor.
var ErrNotContainer = errors.New("reactor: value is not a container")

// CallbackError wraps a failure raised by a user-mode invalidation callback.
// User callbacks are isolated: the error is reported through the engine's
// ErrorHandler and never reaches the writer that caused the invalidation.
type CallbackError struct {
	// SubscriberID identifies the subscriber whose callback failed.
	SubscriberID uint64

	// Source describes the subscriber's computation (function or path).
	Source string

	// Panicked is true when the callback panicked instead of returning an error.
	Panicked bool

	// Err is the underlying error. For panics, it wraps the recovered value.
	Err error
}

// Error implements the error interface.
func (e *CallbackError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("reactor: watcher %d (%s) callback panicked: %v", e.SubscriberID, e.Source, e.Err)
	}
	return fmt.Sprintf("reactor: watcher %d (%s) callback failed: %v", e.SubscriberID, e.Source, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CallbackError) Unwrap() error {
	return e.Err
}
