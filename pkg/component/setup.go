package component

import (
	"fmt"

	"github.com/vango-dev/reactor/pkg/reactive"
)

// Render produces output for a setup-style component.
type Render func() (any, error)

// SetupFunc creates a component's state and returns its render function.
// Reads performed while SetupFunc runs do not subscribe anyone.
type SetupFunc func(e *reactive.Engine) (Render, error)

// Component is a setup-style component definition.
type Component struct {
	Name  string
	Setup SetupFunc
}

// Mounted is a running setup-style component.
type Mounted struct {
	name   string
	host   Host
	render *reactive.Subscriber
}

// Mount runs c.Setup with automatic tracking paused, then creates the
// render subscriber and delivers the first output to host.
//
// Example:
//
//	m, err := component.Mount(engine, component.Component{
//	    Name: "counter",
//	    Setup: func(e *reactive.Engine) (component.Render, error) {
//	        state := e.Reactive(reactive.ObjectOf(map[string]any{"count": 0}))
//	        return func() (any, error) {
//	            return fmt.Sprintf("count: %v", state.Get("count")), nil
//	        }, nil
//	    },
//	}, host)
func Mount(e *reactive.Engine, c Component, host Host) (*Mounted, error) {
	if c.Setup == nil {
		return nil, ErrNoRender
	}
	if host == nil {
		host = discard{}
	}

	render, err := setup(e, c.Setup)
	if err != nil {
		return nil, fmt.Errorf("component %q: setup: %w", c.Name, err)
	}
	if render == nil {
		return nil, ErrNoRender
	}

	name := "render"
	if c.Name != "" {
		name = c.Name + "/render"
	}
	s, err := e.NewSubscriber(nil,
		reactive.FuncSource(func(any) (any, error) { return render() }),
		reactive.WithCallback(host.Patch),
		reactive.Named(name),
	)
	m := &Mounted{name: c.Name, host: host, render: s}
	if err != nil {
		s.Stop()
		return nil, fmt.Errorf("component %q: render: %w", c.Name, err)
	}
	if err := host.Patch(nil, s.Value()); err != nil {
		s.Stop()
		return nil, err
	}
	return m, nil
}

func setup(e *reactive.Engine, fn SetupFunc) (Render, error) {
	e.PauseAutoTracking()
	defer e.ResumeAutoTracking()
	return fn(e)
}

// Name returns the component's name.
func (m *Mounted) Name() string {
	return m.name
}

// Output returns the latest render output.
func (m *Mounted) Output() any {
	return m.render.Value()
}

// RenderSubscriber returns the subscriber that renders the component.
func (m *Mounted) RenderSubscriber() *reactive.Subscriber {
	return m.render
}

// Unmount stops re-rendering.
func (m *Mounted) Unmount() {
	m.render.Stop()
}
