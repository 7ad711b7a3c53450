package reactive

import (
	"fmt"
	"time"
)

// Subscriber is a unit of re-computation. While it evaluates, every
// tracked read joins it to the dependency set of the location read; a
// later write to any of those locations invalidates it.
//
// A subscriber is either eager (evaluated on construction and re-run on
// every invalidation) or lazy (evaluated on demand, invalidation only marks
// it dirty). A scheduler, when present, receives every invalidation
// instead.
type Subscriber struct {
	id     uint64
	engine *Engine
	name   string

	// vm is the owning context the source is evaluated against.
	vm     any
	source Source

	cb        func(a, b any) error
	scheduler Scheduler
	onStop    func()

	active bool
	lazy   bool
	user   bool
	dirty  bool

	// deps are the sets joined during the latest evaluation, in join order.
	// depIDs mirrors deps for constant-time duplicate checks.
	deps   []*Dep
	depIDs map[uint64]struct{}

	value any

	// rerun records an invalidation that arrived while this subscriber was
	// on the active stack.
	rerun bool
}

// NewSubscriber creates a subscriber evaluating src against vm.
// Eager subscribers evaluate immediately; an evaluation error is returned
// together with the (still active) subscriber.
func (e *Engine) NewSubscriber(vm any, src Source, opts ...WatchOption) (*Subscriber, error) {
	if src == nil {
		src = FuncSource(nil)
	}
	s := &Subscriber{
		id:     e.nextID(),
		engine: e,
		vm:     vm,
		source: src,
		active: true,
		depIDs: make(map[uint64]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.dirty = s.lazy
	if s.lazy {
		return s, nil
	}
	return s, s.runLoop(false)
}

// RunTracked creates a subscriber for fn with no owning context.
//
// Example:
//
//	s, err := engine.RunTracked(func(any) (any, error) {
//	    return state.Get("count").(int) * 2, nil
//	}, reactive.WithCallback(func(old, cur any) error {
//	    fmt.Println(old, "->", cur)
//	    return nil
//	}))
func (e *Engine) RunTracked(fn Func, opts ...WatchOption) (*Subscriber, error) {
	return e.NewSubscriber(nil, FuncSource(fn), opts...)
}

// Effect creates an eager subscriber for a side effect with no value.
func (e *Engine) Effect(fn func() error, opts ...WatchOption) (*Subscriber, error) {
	return e.NewSubscriber(nil, FuncSource(func(any) (any, error) {
		if fn == nil {
			return nil, nil
		}
		return nil, fn()
	}), opts...)
}

// PathWatch watches a dotted path under root with a user-mode handler.
// The path is re-resolved on every re-run, so replacing an intermediate
// container re-targets the watch.
func (e *Engine) PathWatch(root Accessor, path string, h Handler, opts ...WatchOption) (*Subscriber, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: path watch %q has no root", ErrNotContainer, path)
	}
	opts = append(opts, WithHandler(h))
	return e.NewSubscriber(root, PathSource(path), opts...)
}

// ID returns the unique identifier for this subscriber.
func (s *Subscriber) ID() uint64 {
	return s.id
}

// Source describes what the subscriber evaluates.
func (s *Subscriber) Source() string {
	if s.name != "" {
		return s.name
	}
	return s.source.String()
}

// Value returns the result of the latest evaluation. For lazy subscribers
// it may be stale; see Dirty.
func (s *Subscriber) Value() any {
	return s.value
}

// Dirty reports whether a lazy subscriber's cached value is stale.
func (s *Subscriber) Dirty() bool {
	return s.dirty
}

// Active reports whether the subscriber still participates in tracking.
func (s *Subscriber) Active() bool {
	return s.active
}

// Lazy reports whether evaluation is on demand.
func (s *Subscriber) Lazy() bool {
	return s.lazy
}

// User reports whether the callback is isolated.
func (s *Subscriber) User() bool {
	return s.user
}

// DepCount returns the number of dependency sets currently joined.
func (s *Subscriber) DepCount() int {
	return len(s.deps)
}

// Get evaluates the source with this subscriber as the tracking target and
// returns the result. Previous joins are dropped first, so afterwards the
// subscriber depends on exactly what this evaluation read.
//
// Errors from the computation are returned as-is. The active stack and the
// tracking flag are restored even if the computation panics.
func (s *Subscriber) Get() (value any, err error) {
	e := s.engine
	if !s.active {
		e.PauseTracking()
		defer e.ResetTracking()
		return s.source.eval(s.vm)
	}

	s.cleanup()

	var start time.Time
	if e.probing() {
		start = time.Now()
		e.emit(Event{Kind: EventRunStart, Subscriber: s.id, Source: s.Source(), Lazy: s.lazy})
	}

	e.push(s)
	e.EnableTracking()
	defer func() {
		e.ResetTracking()
		e.pop()
		if e.probing() {
			e.emit(Event{
				Kind:       EventRunEnd,
				Subscriber: s.id,
				Source:     s.Source(),
				Lazy:       s.lazy,
				Duration:   time.Since(start),
				Err:        err,
			})
		}
	}()

	return s.source.eval(s.vm)
}

// AddDep joins d, recording the membership on both sides. Joining a set
// already joined during this evaluation is a no-op.
func (s *Subscriber) AddDep(d *Dep) {
	if !s.active {
		return
	}
	if _, ok := s.depIDs[d.id]; ok {
		return
	}
	s.depIDs[d.id] = struct{}{}
	s.deps = append(s.deps, d)
	d.addSub(s)

	s.engine.emit(Event{Kind: EventTrack, Subscriber: s.id, Source: s.Source(), Lazy: s.lazy, Dep: d.id, Key: d.key})
}

// Update is the default invalidation response: lazy subscribers are marked
// dirty, eager ones re-run.
func (s *Subscriber) Update() error {
	if s.lazy {
		s.dirty = true
		return nil
	}
	return s.Run()
}

// Run re-evaluates the subscriber and invokes its callback when the value
// changed. If the subscriber is already evaluating further up the call
// chain, the re-run is deferred until that evaluation finishes.
func (s *Subscriber) Run() error {
	if !s.active {
		return nil
	}
	if s.engine.onStack(s) {
		s.rerun = true
		s.engine.emit(Event{Kind: EventDeferredRerun, Subscriber: s.id, Source: s.Source(), Lazy: s.lazy})
		return nil
	}
	return s.runLoop(true)
}

// runLoop evaluates, then repeats while the evaluation invalidated the
// subscriber itself. notify is false only for the initial evaluation.
func (s *Subscriber) runLoop(notify bool) error {
	for reruns := 0; ; reruns++ {
		s.rerun = false

		value, err := s.Get()
		if err != nil {
			s.rerun = false
			return err
		}

		old := s.value
		s.value = value
		if notify {
			if err := s.invoke(value, old); err != nil {
				return err
			}
		}

		if !s.rerun || !s.active {
			s.rerun = false
			return nil
		}
		if reruns >= s.engine.maxReruns {
			s.rerun = false
			return fmt.Errorf("%w: watcher %d (%s) after %d re-runs", ErrRerunLimit, s.id, s.Source(), reruns)
		}
		notify = true
	}
}

// invoke calls the callback for a transition from old to value. Plain
// callbacks get (old, value) and their errors propagate. User callbacks get
// (value, old) and their failures are isolated.
func (s *Subscriber) invoke(value, old any) error {
	if s.cb == nil {
		return nil
	}
	if !hasChanged(value, old) && !isContainer(value) {
		return nil
	}
	if !s.user {
		return s.cb(old, value)
	}

	if err := s.isolate(value, old); err != nil {
		s.engine.emit(Event{Kind: EventCallbackError, Subscriber: s.id, Source: s.Source(), Err: err})
		s.engine.HandleError(err)
	}
	return nil
}

func (s *Subscriber) isolate(value, old any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			cause, ok := r.(error)
			if !ok {
				cause = fmt.Errorf("%v", r)
			}
			err = &CallbackError{SubscriberID: s.id, Source: s.Source(), Panicked: true, Err: cause}
		}
	}()

	if cbErr := s.cb(value, old); cbErr != nil {
		return &CallbackError{SubscriberID: s.id, Source: s.Source(), Err: cbErr}
	}
	return nil
}

// Evaluate refreshes a dirty subscriber's cached value. It is a no-op when
// the value is current. On error the subscriber stays dirty, and an
// evaluation that invalidates its own dependencies leaves it dirty too.
// Calling it from inside the subscriber's own evaluation returns ErrCycle.
func (s *Subscriber) Evaluate() error {
	if s.engine.onStack(s) {
		return fmt.Errorf("%w: watcher %d (%s)", ErrCycle, s.id, s.Source())
	}
	if !s.dirty {
		return nil
	}

	s.dirty = false
	value, err := s.Get()
	if err != nil {
		s.dirty = true
		return err
	}
	s.value = value
	return nil
}

// Depend joins every set this subscriber depends on into the current
// tracking target. Reading a computed value from inside another
// subscriber uses this so the outer subscriber is invalidated by the
// computed value's own dependencies.
func (s *Subscriber) Depend() {
	for i := len(s.deps) - 1; i >= 0; i-- {
		s.deps[i].Depend()
	}
}

// Stop deactivates the subscriber and leaves every dependency set. Later
// invalidations are dropped unless a scheduler is configured.
func (s *Subscriber) Stop() {
	if !s.active {
		return
	}
	s.cleanup()
	s.active = false
	s.rerun = false
	if s.onStop != nil {
		s.onStop()
	}
	s.engine.emit(Event{Kind: EventStop, Subscriber: s.id, Source: s.Source(), Lazy: s.lazy})
}

// cleanup leaves every joined set and forgets them.
func (s *Subscriber) cleanup() {
	for _, d := range s.deps {
		d.removeSub(s)
	}
	for i := range s.deps {
		s.deps[i] = nil
	}
	s.deps = s.deps[:0]
	clear(s.depIDs)
}

// dispatch delivers an invalidation to s: to its scheduler when it has one,
// otherwise to Update. Inactive subscribers without a scheduler ignore it.
func (e *Engine) dispatch(s *Subscriber) error {
	if s.scheduler != nil {
		s.scheduler(s)
		return nil
	}
	if !s.active {
		return nil
	}
	return s.Update()
}
