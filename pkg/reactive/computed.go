package reactive

// Computed is a cached derived value backed by a lazy subscriber.
// It recomputes only when read after one of its dependencies changed, and
// a subscriber that reads it inherits its dependencies.
type Computed struct {
	sub *Subscriber
}

// Computed creates a computed value evaluating fn against vm.
//
// Example:
//
//	full := engine.Computed(nil, func(any) (any, error) {
//	    return state.Get("first").(string) + " " + state.Get("last").(string), nil
//	})
func (e *Engine) Computed(vm any, fn Func, opts ...WatchOption) *Computed {
	opts = append(opts, Lazy())
	// Lazy subscribers never evaluate during construction, so there is no
	// error to report here.
	s, _ := e.NewSubscriber(vm, FuncSource(fn), opts...)
	return &Computed{sub: s}
}

// Value returns the computed value, recomputing it first if it is dirty.
// When read while another subscriber is tracking, that subscriber is joined
// to every dependency of this computed value.
func (c *Computed) Value() (any, error) {
	s := c.sub
	if err := s.Evaluate(); err != nil {
		return nil, err
	}
	if s.engine.trackingTarget() != nil {
		s.Depend()
	}
	return s.value, nil
}

// Dirty reports whether the next Value call will recompute.
func (c *Computed) Dirty() bool {
	return c.sub.dirty
}

// Subscriber returns the lazy subscriber backing this value.
func (c *Computed) Subscriber() *Subscriber {
	return c.sub
}

// Stop detaches the computed value from its dependencies.
func (c *Computed) Stop() {
	c.sub.Stop()
}
