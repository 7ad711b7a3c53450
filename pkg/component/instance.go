package component

import (
	"errors"
	"fmt"
	"sort"

	"github.com/vango-dev/reactor/pkg/reactive"
)

// ErrNoRender is returned when an instance or component has nothing to render.
var ErrNoRender = errors.New("component: no render function")

// ComputedFunc derives a value from instance state.
type ComputedFunc func(vm *Instance) (any, error)

// RenderFunc produces render output from instance state.
type RenderFunc func(vm *Instance) (any, error)

// Options describes an options-style instance.
type Options struct {
	// Name labels the instance's subscribers in logs and probes.
	Name string

	// Data returns the initial state. It is made observable in place and
	// every top-level key is aliased onto the instance.
	Data func(vm *Instance) map[string]any

	// Computed keys are installed on the instance as cached, lazily
	// recomputed properties. A key that collides with a data key is skipped.
	Computed map[string]ComputedFunc

	// Watch maps dotted paths under the instance to user-mode handlers.
	Watch map[string]reactive.Handler

	// Render is evaluated by the instance's render subscriber.
	Render RenderFunc

	// Host receives render output. If nil, output is only kept on the
	// instance.
	Host Host
}

// Instance is an options-style component instance: data made observable
// by interception-on-define, computed properties, path watchers and one
// render subscriber.
//
// Instance implements reactive.Accessor. Reading a data key through the
// instance reads the backing data object; reading a computed key returns
// its cached value.
type Instance struct {
	engine  *reactive.Engine
	options Options

	// data is the observed state; proxy carries the alias and computed
	// properties exposed as the instance's own keys.
	data  *reactive.Object
	proxy *reactive.Object

	computed map[string]*reactive.Computed
	watchers []*reactive.Subscriber
	render   *reactive.Subscriber
}

var _ reactive.Accessor = (*Instance)(nil)

// New initialises state, computed properties and watchers in that order,
// then mounts the render subscriber and delivers the first output to the
// host.
//
// Example:
//
//	vm, err := component.New(engine, component.Options{
//	    Data: func(*component.Instance) map[string]any {
//	        return map[string]any{"first": "Ada", "last": "Lovelace"}
//	    },
//	    Computed: map[string]component.ComputedFunc{
//	        "full": func(vm *component.Instance) (any, error) {
//	            return vm.Get("first").(string) + " " + vm.Get("last").(string), nil
//	        },
//	    },
//	    Render: func(vm *component.Instance) (any, error) {
//	        return "<h1>" + vm.Get("full").(string) + "</h1>", nil
//	    },
//	    Host: host,
//	})
func New(e *reactive.Engine, opts Options) (*Instance, error) {
	if opts.Render == nil {
		return nil, ErrNoRender
	}
	if opts.Host == nil {
		opts.Host = discard{}
	}

	vm := &Instance{
		engine:   e,
		options:  opts,
		proxy:    reactive.NewObject(),
		computed: make(map[string]*reactive.Computed),
	}

	vm.initData()
	vm.initComputed()
	if err := vm.initWatch(); err != nil {
		vm.Unmount()
		return nil, err
	}
	if err := vm.mount(); err != nil {
		vm.Unmount()
		return nil, err
	}
	return vm, nil
}

func (vm *Instance) initData() {
	var initial map[string]any
	if vm.options.Data != nil {
		initial = vm.options.Data(vm)
	}
	vm.data = reactive.ObjectOf(initial)
	vm.engine.Define(vm.data)

	for _, key := range vm.data.Keys() {
		vm.proxy.DefineAlias(key, vm.data, key)
	}
}

func (vm *Instance) initComputed() {
	for _, key := range sortedKeys(vm.options.Computed) {
		if vm.proxy.HasProperty(key) {
			vm.engine.Logger().Warn("component: computed key shadows data key, skipping",
				"component", vm.options.Name, "key", key)
			continue
		}

		fn := vm.options.Computed[key]
		c := vm.engine.Computed(vm, func(any) (any, error) {
			return fn(vm)
		}, reactive.Named(vm.label("computed:"+key)))
		vm.computed[key] = c

		key := key
		vm.proxy.DefineProperty(key, reactive.Property{
			Get: func() any {
				v, err := c.Value()
				if err != nil {
					vm.engine.HandleError(fmt.Errorf("component: computed %q: %w", key, err))
					return nil
				}
				return v
			},
		})
	}
}

func (vm *Instance) initWatch() error {
	for _, path := range sortedKeys(vm.options.Watch) {
		s, err := vm.engine.PathWatch(vm, path, vm.options.Watch[path], reactive.Named(vm.label("watch:"+path)))
		if err != nil {
			return fmt.Errorf("component: watch %q: %w", path, err)
		}
		vm.watchers = append(vm.watchers, s)
	}
	return nil
}

func (vm *Instance) mount() error {
	render := vm.options.Render
	s, err := vm.engine.NewSubscriber(vm,
		reactive.FuncSource(func(any) (any, error) { return render(vm) }),
		reactive.WithCallback(vm.options.Host.Patch),
		reactive.Named(vm.label("render")),
	)
	vm.render = s
	if err != nil {
		return fmt.Errorf("component: render: %w", err)
	}
	return vm.options.Host.Patch(nil, s.Value())
}

// Get returns the value of a data or computed key.
func (vm *Instance) Get(key string) any {
	return vm.proxy.Get(key)
}

// Lookup returns the value of a data or computed key and whether it exists.
func (vm *Instance) Lookup(key string) (any, bool) {
	return vm.proxy.Lookup(key)
}

// Set writes a data key. Writing a computed key is a no-op; writing an
// unknown key adds it to the data object and aliases it. Set never reads
// the key, so a write made while a subscriber runs does not subscribe it.
func (vm *Instance) Set(key string, value any) error {
	if vm.proxy.HasProperty(key) {
		return vm.proxy.Set(key, value)
	}
	vm.proxy.DefineAlias(key, vm.data, key)
	return vm.data.Set(key, value)
}

// Computed returns a computed key's value, surfacing its error.
func (vm *Instance) Computed(key string) (any, error) {
	c, ok := vm.computed[key]
	if !ok {
		return nil, fmt.Errorf("component: unknown computed key %q", key)
	}
	return c.Value()
}

// Data returns the observed state object.
func (vm *Instance) Data() *reactive.Object {
	return vm.data
}

// Output returns the latest render output.
func (vm *Instance) Output() any {
	if vm.render == nil {
		return nil
	}
	return vm.render.Value()
}

// RenderSubscriber returns the subscriber that renders the instance.
func (vm *Instance) RenderSubscriber() *reactive.Subscriber {
	return vm.render
}

// Unmount stops the render subscriber, the watchers and the computed
// properties.
func (vm *Instance) Unmount() {
	if vm.render != nil {
		vm.render.Stop()
	}
	for _, w := range vm.watchers {
		w.Stop()
	}
	for _, c := range vm.computed {
		c.Stop()
	}
}

func (vm *Instance) label(part string) string {
	if vm.options.Name == "" {
		return part
	}
	return vm.options.Name + "/" + part
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
