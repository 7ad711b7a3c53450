package reactive

// iterateKey is the pseudo-key tracked by key enumeration. Adding or
// deleting a key triggers it.
const iterateKey = "\x00iterate"

// Registry maps a container, by identity, and a key within it to the
// dependency set for that location. Sets are created lazily on first use.
type Registry struct {
	engine    *Engine
	targets   map[*Object]map[string]*Dep
	nextDepID uint64
}

func newRegistry(e *Engine) *Registry {
	return &Registry{
		engine:  e,
		targets: make(map[*Object]map[string]*Dep),
	}
}

// Dep returns the dependency set for (target, key), creating it if needed.
// Two containers with identical contents get distinct sets.
func (r *Registry) Dep(target *Object, key string) *Dep {
	keys, ok := r.targets[target]
	if !ok {
		keys = make(map[string]*Dep)
		r.targets[target] = keys
	}
	d, ok := keys[key]
	if !ok {
		r.nextDepID++
		d = &Dep{
			id:     r.nextDepID,
			engine: r.engine,
			target: target,
			key:    key,
		}
		keys[key] = d
	}
	return d
}

// Lookup returns the dependency set for (target, key) without creating it.
func (r *Registry) Lookup(target *Object, key string) (*Dep, bool) {
	keys, ok := r.targets[target]
	if !ok {
		return nil, false
	}
	d, ok := keys[key]
	return d, ok
}

// Release drops every dependency set of target. Subscribers still joined
// to those sets keep their references until their next cleanup.
func (r *Registry) Release(target *Object) {
	delete(r.targets, target)
	delete(r.engine.proxies, target)
}

// Targets returns the number of containers with at least one set.
func (r *Registry) Targets() int {
	return len(r.targets)
}

// Sets returns the number of sets materialised for target.
func (r *Registry) Sets(target *Object) int {
	return len(r.targets[target])
}
