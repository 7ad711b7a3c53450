package reactive

import (
	"fmt"
	"sort"
)

// Accessor is the get/set capability every reactive call site goes
// through. Reads and writes made through an Accessor are what the engine
// can observe; raw field access is not.
type Accessor interface {
	// Get returns the value at key, or nil when absent.
	Get(key string) any

	// Lookup returns the value at key and whether it exists.
	Lookup(key string) (any, bool)

	// Set stores value at key. The error is whatever an invalidated
	// subscriber returned.
	Set(key string, value any) error
}

// Property is an accessor pair installed on an Object key. A nil Set makes
// writes to the key a silent no-op.
type Property struct {
	Get func() any
	Set func(value any) error
}

// Object is a plain aggregate of string-keyed slots owned by application
// code. Keys keep insertion order.
//
// An Object on its own is not observed. Engine.Define installs
// interception on it in place (Strategy A); Engine.Reactive wraps it in a
// façade instead (Strategy B).
type Object struct {
	keys  []string
	slots map[string]any

	// props holds installed accessor pairs; they shadow slots.
	props map[string]Property

	// engine is set once Strategy A interception has been installed.
	engine *Engine
}

var (
	_ Accessor = (*Object)(nil)
	_ Accessor = (*Reactive)(nil)
)

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{slots: make(map[string]any)}
}

// ObjectOf builds an Object from m. Keys are inserted in sorted order and
// nested map[string]any values become nested Objects.
func ObjectOf(m map[string]any) *Object {
	o := NewObject()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := m[k]
		if nested, ok := v.(map[string]any); ok {
			v = ObjectOf(nested)
		}
		o.store(k, v)
	}
	return o
}

// Get returns the value at key, or nil when absent.
func (o *Object) Get(key string) any {
	v, _ := o.Lookup(key)
	return v
}

// Lookup returns the value at key and whether it exists. On a defined
// Object the read is tracked.
func (o *Object) Lookup(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	if p, ok := o.props[key]; ok {
		if p.Get == nil {
			return nil, true
		}
		return p.Get(), true
	}
	if o.engine != nil {
		o.engine.dependOn(o, key)
	}
	return o.load(key)
}

// Has reports whether key exists. On a defined Object the check is tracked.
func (o *Object) Has(key string) bool {
	_, ok := o.Lookup(key)
	return ok
}

// HasProperty reports whether an accessor pair is installed on key. It
// never runs the accessor and is never tracked.
func (o *Object) HasProperty(key string) bool {
	if o == nil {
		return false
	}
	_, ok := o.props[key]
	return ok
}

// Set stores value at key. On a defined Object an identical value is
// ignored and any other value notifies the key's subscribers.
func (o *Object) Set(key string, value any) error {
	if p, ok := o.props[key]; ok {
		if p.Set == nil {
			return nil
		}
		return p.Set(value)
	}
	if o.engine == nil {
		o.store(key, ToRaw(value))
		return nil
	}
	return o.engine.defineSet(o, key, value)
}

// Delete removes key. On a defined Object the key's subscribers are
// notified.
func (o *Object) Delete(key string) error {
	if o.engine == nil {
		o.remove(key)
		return nil
	}
	return o.engine.defineDelete(o, key)
}

// Keys returns the slot keys in insertion order. Installed properties are
// not included.
func (o *Object) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of slots.
func (o *Object) Len() int {
	return len(o.keys)
}

// Defined reports whether Strategy A interception is installed.
func (o *Object) Defined() bool {
	return o.engine != nil
}

// DefineProperty installs an accessor pair on key, shadowing any slot.
func (o *Object) DefineProperty(key string, p Property) {
	if o.props == nil {
		o.props = make(map[string]Property)
	}
	o.props[key] = p
}

// DefineAlias forwards key to sourceKey on source: reading the alias reads
// the backing location and writing it writes there. The alias has no
// tracking state of its own; tracking happens on the source.
func (o *Object) DefineAlias(key string, source Accessor, sourceKey string) {
	o.DefineProperty(key, Property{
		Get: func() any { return source.Get(sourceKey) },
		Set: func(value any) error { return source.Set(sourceKey, value) },
	})
}

// ToMap returns an untracked snapshot of the slots, converting nested
// Objects recursively.
func (o *Object) ToMap() map[string]any {
	return o.toMap(make(map[*Object]bool))
}

func (o *Object) toMap(seen map[*Object]bool) map[string]any {
	seen[o] = true
	defer delete(seen, o)

	out := make(map[string]any, len(o.keys))
	for _, k := range o.keys {
		v := o.slots[k]
		if child, ok := v.(*Object); ok && child != nil {
			if seen[child] {
				v = "<cycle>"
			} else {
				v = child.toMap(seen)
			}
		}
		out[k] = v
	}
	return out
}

// String implements fmt.Stringer without walking nested values.
func (o *Object) String() string {
	if o == nil {
		return "Object(nil)"
	}
	return fmt.Sprintf("Object%v", o.keys)
}

func (o *Object) load(key string) (any, bool) {
	v, ok := o.slots[key]
	return v, ok
}

func (o *Object) store(key string, value any) {
	if o.slots == nil {
		o.slots = make(map[string]any)
	}
	if _, ok := o.slots[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.slots[key] = value
}

func (o *Object) remove(key string) bool {
	if _, ok := o.slots[key]; !ok {
		return false
	}
	delete(o.slots, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
	return true
}
