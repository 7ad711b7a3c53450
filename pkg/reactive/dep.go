package reactive

import "errors"

// Dep is the set of subscribers interested in one mutable location.
// Membership is idempotent and kept in join order, which fixes the order
// in which members are notified.
type Dep struct {
	id     uint64
	engine *Engine

	// target and key identify the location this set belongs to.
	target *Object
	key    string

	subs []*Subscriber
}

// ID returns the unique identifier for this dependency set.
func (d *Dep) ID() uint64 {
	return d.id
}

// Key returns the container key this set tracks.
func (d *Dep) Key() string {
	return d.key
}

// Len returns the number of member subscribers.
func (d *Dep) Len() int {
	return len(d.subs)
}

// Has reports whether s is a member.
func (d *Dep) Has(s *Subscriber) bool {
	for _, sub := range d.subs {
		if sub == s {
			return true
		}
	}
	return false
}

// Subscribers returns a snapshot of the members in join order.
func (d *Dep) Subscribers() []*Subscriber {
	out := make([]*Subscriber, len(d.subs))
	copy(out, d.subs)
	return out
}

// Depend joins the current tracking target to this set, if tracking is
// enabled and a subscriber is evaluating.
func (d *Dep) Depend() {
	if target := d.engine.trackingTarget(); target != nil {
		target.AddDep(d)
	}
}

// Notify dispatches every member. It iterates a snapshot, so members that
// leave or rejoin while another member runs do not disturb the walk.
// A failing member does not stop the others; all failures are joined.
func (d *Dep) Notify() error {
	return d.notify(Event{Op: OpSet})
}

func (d *Dep) notify(ev Event) error {
	subs := d.Subscribers()
	ev.Kind = EventTrigger
	ev.Dep = d.id
	ev.Key = d.key
	ev.Targets = len(subs)
	d.engine.emit(ev)

	var errs []error
	for _, s := range subs {
		if err := d.engine.dispatch(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// addSub is the set-side half of a join. Callers must also record d on s.
func (d *Dep) addSub(s *Subscriber) {
	if d.Has(s) {
		return
	}
	d.subs = append(d.subs, s)
}

// removeSub removes s, preserving the join order of the remaining members.
func (d *Dep) removeSub(s *Subscriber) {
	for i, sub := range d.subs {
		if sub == s {
			copy(d.subs[i:], d.subs[i+1:])
			d.subs[len(d.subs)-1] = nil
			d.subs = d.subs[:len(d.subs)-1]
			return
		}
	}
}
