package reactive

// Scheduler takes over a subscriber's invalidation. It decides whether and
// when to re-run the subscriber (typically by calling s.Run).
type Scheduler func(s *Subscriber)

// Callback is a plain invalidation callback. It receives (oldValue,
// newValue), and a returned error propagates to the write that caused the
// invalidation.
type Callback func(oldValue, newValue any) error

// Handler is a user-mode invalidation callback. It receives (newValue,
// oldValue). Errors and panics are isolated and reported through the
// engine's ErrorHandler.
type Handler func(newValue, oldValue any) error

// WatchOption configures a Subscriber.
type WatchOption func(*Subscriber)

// Lazy defers evaluation until Evaluate is called. Invalidation only marks
// the subscriber dirty.
func Lazy() WatchOption {
	return func(s *Subscriber) {
		s.lazy = true
	}
}

// User isolates the callback: it is invoked with (newValue, oldValue) and
// its failures are reported instead of propagated.
func User() WatchOption {
	return func(s *Subscriber) {
		s.user = true
	}
}

// WithScheduler redirects invalidation to fn instead of re-running
// immediately.
func WithScheduler(fn Scheduler) WatchOption {
	return func(s *Subscriber) {
		s.scheduler = fn
	}
}

// WithCallback sets a plain callback invoked after each re-run that
// produced a new value.
func WithCallback(cb Callback) WatchOption {
	return func(s *Subscriber) {
		if cb == nil {
			s.cb = nil
			return
		}
		s.cb = func(a, b any) error { return cb(a, b) }
	}
}

// WithHandler sets a user-mode handler. It implies User().
func WithHandler(h Handler) WatchOption {
	return func(s *Subscriber) {
		s.user = true
		if h == nil {
			s.cb = nil
			return
		}
		s.cb = func(a, b any) error { return h(a, b) }
	}
}

// WithOnStop registers fn to run once when the subscriber is stopped.
func WithOnStop(fn func()) WatchOption {
	return func(s *Subscriber) {
		s.onStop = fn
	}
}

// Named labels the subscriber in logs and probe events.
func Named(name string) WatchOption {
	return func(s *Subscriber) {
		s.name = name
	}
}
