// Package reactive implements fine-grained dependency tracking and
// invalidation.
//
// Subscribers evaluate computations against a mutable data graph. Every
// read made while a subscriber is evaluating joins that subscriber to the
// dependency set of the location read; every write to a location
// invalidates exactly the subscribers joined to it.
//
// # Engine
//
// All state lives in an Engine: the dependency registry, the
// active-subscriber stack and the tracking-enabled flag. An Engine is
// single-threaded and run-to-completion; create one per independent graph
// (and one per test).
//
//	engine := reactive.New(reactive.WithLogger(logger))
//
// # Making data observable
//
// Data is held in *Object values and accessed through the Accessor
// interface. Two strategies make an Object observable:
//
//   - Engine.Define installs interception on the Object itself and, eagerly,
//     on every nested Object. Writes compare by identity.
//   - Engine.Reactive returns a façade; nested Objects are wrapped when read.
//     Writes report add/set/delete and treat NaN as equal to itself.
//
// # Subscribers
//
//	state := engine.Reactive(reactive.ObjectOf(map[string]any{"count": 1}))
//
//	double, _ := engine.RunTracked(func(any) (any, error) {
//	    return state.Get("count").(int) * 2, nil
//	}, reactive.WithCallback(func(old, cur any) error {
//	    fmt.Println(old, "->", cur) // 2 -> 10
//	    return nil
//	}))
//
//	_ = state.Set("count", 5)
//
// Options select lazy evaluation (Lazy), isolated user callbacks (User,
// WithHandler) and custom invalidation scheduling (WithScheduler).
// Computed values are lazy subscribers whose dependencies propagate to the
// subscribers that read them:
//
//	full := engine.Computed(nil, func(any) (any, error) { ... })
//	v, err := full.Value()
//
// # Errors
//
// Computation errors and plain callback errors propagate to the caller:
// from constructors, Run/Evaluate, and from the Set that caused the
// invalidation. User-mode callback failures, including panics, are
// wrapped in *CallbackError and sent to the engine's ErrorHandler instead.
package reactive
