package reactive

// Current returns the subscriber at the top of the active stack, or nil
// when nothing is evaluating.
func (e *Engine) Current() *Subscriber {
	if len(e.stack) == 0 {
		return nil
	}
	return e.stack[len(e.stack)-1]
}

// Depth returns the number of subscribers currently evaluating.
func (e *Engine) Depth() int {
	return len(e.stack)
}

// Tracking reports whether reads currently create subscriptions.
func (e *Engine) Tracking() bool {
	return e.shouldTrack && len(e.stack) > 0
}

// trackingTarget returns the subscriber that a read should be attributed to,
// or nil when tracking is paused or nothing is evaluating.
func (e *Engine) trackingTarget() *Subscriber {
	if !e.shouldTrack {
		return nil
	}
	return e.Current()
}

// push makes s the current tracking target.
func (e *Engine) push(s *Subscriber) {
	e.stack = append(e.stack, s)
}

// pop removes the top of the stack; the previous entry, if any, becomes
// current again.
func (e *Engine) pop() {
	n := len(e.stack)
	if n == 0 {
		return
	}
	e.stack[n-1] = nil
	e.stack = e.stack[:n-1]
}

// onStack reports whether s is evaluating anywhere in the current call chain.
func (e *Engine) onStack(s *Subscriber) bool {
	for _, active := range e.stack {
		if active == s {
			return true
		}
	}
	return false
}

// PauseTracking saves the tracking flag and disables dependency discovery.
// Must be balanced by ResetTracking.
func (e *Engine) PauseTracking() {
	e.trackStack = append(e.trackStack, e.shouldTrack)
	e.shouldTrack = false
}

// EnableTracking saves the tracking flag and enables dependency discovery.
// Must be balanced by ResetTracking.
func (e *Engine) EnableTracking() {
	e.trackStack = append(e.trackStack, e.shouldTrack)
	e.shouldTrack = true
}

// ResetTracking restores the flag saved by the matching PauseTracking or
// EnableTracking call. With nothing saved, tracking is enabled.
func (e *Engine) ResetTracking() {
	n := len(e.trackStack)
	if n == 0 {
		e.shouldTrack = true
		return
	}
	e.shouldTrack = e.trackStack[n-1]
	e.trackStack = e.trackStack[:n-1]
}

// PauseAutoTracking suspends dependency discovery for a region of code,
// such as one-time setup, that reads reactive state without subscribing.
// Pair it with ResumeAutoTracking.
func (e *Engine) PauseAutoTracking() {
	e.PauseTracking()
}

// ResumeAutoTracking ends the region started by PauseAutoTracking.
func (e *Engine) ResumeAutoTracking() {
	e.ResetTracking()
}

// Untracked runs fn with dependency discovery paused.
//
// Example:
//
//	engine.Untracked(func() {
//	    // Reading count here won't subscribe the current watcher
//	    fmt.Println("Current value:", state.Get("count"))
//	})
func (e *Engine) Untracked(fn func()) {
	e.PauseTracking()
	defer e.ResetTracking()
	fn()
}
