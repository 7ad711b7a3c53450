package reactive

import "errors"

// TriggerOp is the kind of write that dispatched a notification.
type TriggerOp uint8

const (
	// OpSet replaced the value of an existing key.
	OpSet TriggerOp = iota + 1

	// OpAdd created a new key.
	OpAdd

	// OpDelete removed a key.
	OpDelete
)

// String returns a human-readable name for the operation.
func (op TriggerOp) String() string {
	switch op {
	case OpSet:
		return "set"
	case OpAdd:
		return "add"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Reactive is an intercepting façade over an Object (Strategy B). The
// Object itself is not modified; reads and writes made through the façade
// are tracked and triggered against the Object's identity.
//
// Nested Objects are wrapped lazily, when they are read.
type Reactive struct {
	engine *Engine
	target *Object
}

// Reactive returns the façade for o. Repeated calls return the same façade.
func (e *Engine) Reactive(o *Object) *Reactive {
	if o == nil {
		return nil
	}
	if r, ok := e.proxies[o]; ok {
		return r
	}
	r := &Reactive{engine: e, target: o}
	e.proxies[o] = r
	return r
}

// WrapReactive wraps v if it is an Object. A value that is already a
// façade is returned as-is, and non-containers pass through unchanged.
func (e *Engine) WrapReactive(v any) any {
	switch t := v.(type) {
	case *Reactive:
		return t
	case *Object:
		if t == nil {
			return v
		}
		return e.Reactive(t)
	}
	return v
}

// IsReactive reports whether v is a Strategy B façade.
func IsReactive(v any) bool {
	r, ok := v.(*Reactive)
	return ok && r != nil
}

// Raw returns the wrapped Object.
func (r *Reactive) Raw() *Object {
	return r.target
}

// Get returns the value at key, or nil when absent.
func (r *Reactive) Get(key string) any {
	v, _ := r.Lookup(key)
	return v
}

// Lookup tracks (target, key) and returns the value. Nested Objects come
// back wrapped.
func (r *Reactive) Lookup(key string) (any, bool) {
	if p, ok := r.target.props[key]; ok {
		if p.Get == nil {
			return nil, true
		}
		return r.engine.WrapReactive(p.Get()), true
	}

	v, ok := r.target.load(key)
	r.engine.track(r.target, key)
	return r.engine.WrapReactive(v), ok
}

// Has tracks (target, key) and reports whether key exists.
func (r *Reactive) Has(key string) bool {
	_, ok := r.Lookup(key)
	return ok
}

// Set writes value at key. A new key triggers OpAdd; an existing key
// triggers OpSet only if the value changed. Two NaNs are treated as equal.
func (r *Reactive) Set(key string, value any) error {
	if p, ok := r.target.props[key]; ok {
		if p.Set == nil {
			return nil
		}
		return p.Set(value)
	}

	value = ToRaw(value)
	old, had := r.target.load(key)
	r.target.store(key, value)

	if !had {
		return r.engine.trigger(r.target, OpAdd, key, value, nil)
	}
	if hasChanged(value, old) {
		return r.engine.trigger(r.target, OpSet, key, value, old)
	}
	return nil
}

// Delete removes key and triggers OpDelete if it existed.
func (r *Reactive) Delete(key string) error {
	old, had := r.target.load(key)
	if !had {
		return nil
	}
	r.target.remove(key)
	return r.engine.trigger(r.target, OpDelete, key, nil, old)
}

// Keys tracks key enumeration and returns the keys in insertion order.
// Subscribers that enumerate are invalidated when keys are added or removed.
func (r *Reactive) Keys() []string {
	r.engine.track(r.target, iterateKey)
	return r.target.Keys()
}

// Len tracks key enumeration and returns the number of keys.
func (r *Reactive) Len() int {
	r.engine.track(r.target, iterateKey)
	return r.target.Len()
}

// String implements fmt.Stringer.
func (r *Reactive) String() string {
	return "Reactive(" + r.target.String() + ")"
}

// track joins the current tracking target to (target, key).
func (e *Engine) track(target *Object, key string) {
	sub := e.trackingTarget()
	if sub == nil {
		return
	}
	sub.AddDep(e.registry.Dep(target, key))
}

// trigger dispatches every subscriber of (target, key), plus enumeration
// subscribers for adds and deletes. Each subscriber is dispatched once,
// in join order, even if reachable through more than one set.
func (e *Engine) trigger(target *Object, op TriggerOp, key string, newValue, oldValue any) error {
	var subs []*Subscriber
	seen := make(map[*Subscriber]struct{})
	collect := func(d *Dep, ok bool) {
		if !ok {
			return
		}
		for _, s := range d.subs {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			subs = append(subs, s)
		}
	}

	collect(e.registry.Lookup(target, key))
	if op == OpAdd || op == OpDelete {
		collect(e.registry.Lookup(target, iterateKey))
	}
	if len(subs) == 0 {
		return nil
	}

	e.emit(Event{Kind: EventTrigger, Op: op, Key: key, Targets: len(subs), Value: newValue, OldValue: oldValue})

	var errs []error
	for _, s := range subs {
		if err := e.dispatch(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
