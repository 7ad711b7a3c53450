package reactive

// Define makes v observable in place (Strategy A). If v is an *Object,
// interception is installed on it and, eagerly and depth-first, on every
// Object reachable from it; a dependency set is materialised for each key.
// Any other value is returned unchanged. Defining twice is a no-op.
//
// After Define, reads through the Object's Get/Lookup/Has join the current
// subscriber, and Set/Delete notify.
func (e *Engine) Define(v any) any {
	o, ok := ToRaw(v).(*Object)
	if !ok || o == nil {
		return v
	}
	e.observe(o)
	return o
}

func (e *Engine) observe(o *Object) {
	if o.engine != nil {
		// Already defined, either earlier or further up this walk.
		return
	}
	o.engine = e
	for _, k := range o.keys {
		e.registry.Dep(o, k)
		if child, ok := o.slots[k].(*Object); ok && child != nil {
			e.observe(child)
		}
	}
}

// dependOn joins the current tracking target to (o, key).
func (e *Engine) dependOn(o *Object, key string) {
	if e.trackingTarget() == nil {
		return
	}
	e.registry.Dep(o, key).Depend()
}

// defineSet is the write half of Strategy A interception.
func (e *Engine) defineSet(o *Object, key string, value any) error {
	value = ToRaw(value)
	old, had := o.load(key)
	if had && identical(old, value) {
		return nil
	}

	e.Define(value)
	o.store(key, value)

	op := OpSet
	if !had {
		op = OpAdd
	}
	return e.registry.Dep(o, key).notify(Event{Op: op, Value: value, OldValue: old})
}

func (e *Engine) defineDelete(o *Object, key string) error {
	old, had := o.load(key)
	if !had {
		return nil
	}
	o.remove(key)
	return e.registry.Dep(o, key).notify(Event{Op: OpDelete, OldValue: old})
}
