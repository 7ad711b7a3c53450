package demo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vango-dev/reactor/pkg/component"
	"github.com/vango-dev/reactor/pkg/reactive"
)

func init() {
	register(Scenario{
		Name:        "counter",
		Description: "one counter, both strategies, re-run on every write",
		Run:         runCounter,
	})
	register(Scenario{
		Name:        "nested",
		Description: "replacing a nested container re-targets the subscriber",
		Run:         runNested,
	})
	register(Scenario{
		Name:        "computed",
		Description: "computed values are cached and propagate invalidation",
		Run:         runComputed,
	})
	register(Scenario{
		Name:        "conditional",
		Description: "dependencies follow the branch actually taken",
		Run:         runConditional,
	})
	register(Scenario{
		Name:        "watch",
		Description: "path watchers get (new, old) and their failures are isolated",
		Run:         runWatch,
	})
	register(Scenario{
		Name:        "component",
		Description: "options-style and setup-style components patching a host",
		Run:         runComponent,
	})
	register(Scenario{
		Name:        "ticker",
		Description: "a component re-rendered on every tick until cancelled",
		LongRunning: true,
		Run:         runTicker,
	})
}

func runCounter(_ context.Context, env *Env) error {
	e := env.Engine

	defined := e.Define(reactive.ObjectOf(map[string]any{"count": 0})).(*reactive.Object)
	proxied := e.Reactive(reactive.ObjectOf(map[string]any{"count": 0}))

	for _, target := range []struct {
		name  string
		state reactive.Accessor
	}{{"define", defined}, {"reactive", proxied}} {
		target := target
		_, err := e.RunTracked(func(any) (any, error) {
			return target.state.Get("count"), nil
		}, reactive.Named(target.name), reactive.WithCallback(func(old, cur any) error {
			env.Printf("  [%s] count %v -> %v", target.name, old, cur)
			return nil
		}))
		if err != nil {
			return err
		}
		for i := 1; i <= 2; i++ {
			if err := target.state.Set("count", i); err != nil {
				return err
			}
		}
	}
	return nil
}

func runNested(_ context.Context, env *Env) error {
	e := env.Engine
	state := e.Reactive(reactive.ObjectOf(map[string]any{
		"user": map[string]any{"name": "ada"},
	}))

	_, err := e.RunTracked(func(any) (any, error) {
		return state.Get("user").(*reactive.Reactive).Get("name"), nil
	}, reactive.Named("user.name"), reactive.WithCallback(func(old, cur any) error {
		env.Printf("  user.name %v -> %v", old, cur)
		return nil
	}))
	if err != nil {
		return err
	}

	oldUser := state.Get("user").(*reactive.Reactive)
	if err := state.Set("user", reactive.ObjectOf(map[string]any{"name": "grace"})); err != nil {
		return err
	}
	env.Printf("  writing the replaced container")
	if err := oldUser.Set("name", "nobody"); err != nil {
		return err
	}
	return state.Get("user").(*reactive.Reactive).Set("name", "hopper")
}

func runComputed(_ context.Context, env *Env) error {
	e := env.Engine
	state := e.Define(reactive.ObjectOf(map[string]any{"price": 10, "qty": 2})).(*reactive.Object)

	evaluations := 0
	total := e.Computed(nil, func(any) (any, error) {
		evaluations++
		return state.Get("price").(int) * state.Get("qty").(int), nil
	}, reactive.Named("total"))

	_, err := e.RunTracked(func(any) (any, error) {
		return total.Value()
	}, reactive.Named("summary"), reactive.WithCallback(func(old, cur any) error {
		env.Printf("  total %v -> %v", old, cur)
		return nil
	}))
	if err != nil {
		return err
	}

	for i := 0; i < 3; i++ {
		if _, err := total.Value(); err != nil {
			return err
		}
	}
	env.Printf("  evaluations after repeated reads: %d", evaluations)

	if err := state.Set("qty", 5); err != nil {
		return err
	}
	env.Printf("  evaluations after one write: %d", evaluations)
	return nil
}

func runConditional(_ context.Context, env *Env) error {
	e := env.Engine
	state := e.Reactive(reactive.ObjectOf(map[string]any{"useA": true, "a": "A", "b": "B"}))

	s, err := e.RunTracked(func(any) (any, error) {
		if state.Get("useA").(bool) {
			return state.Get("a"), nil
		}
		return state.Get("b"), nil
	}, reactive.Named("branch"), reactive.WithCallback(func(old, cur any) error {
		env.Printf("  branch %v -> %v", old, cur)
		return nil
	}))
	if err != nil {
		return err
	}

	env.Printf("  dependencies: %d", s.DepCount())
	if err := state.Set("useA", false); err != nil {
		return err
	}
	env.Printf("  dependencies: %d", s.DepCount())
	if err := state.Set("a", "ignored"); err != nil {
		return err
	}
	return state.Set("b", "B2")
}

func runWatch(_ context.Context, env *Env) error {
	e := env.Engine
	state := e.Reactive(reactive.ObjectOf(map[string]any{
		"settings": map[string]any{"theme": "light"},
	}))

	if _, err := e.PathWatch(state, "settings.theme", func(cur, old any) error {
		env.Printf("  theme %v -> %v", old, cur)
		return nil
	}, reactive.Named("theme")); err != nil {
		return err
	}
	if _, err := e.PathWatch(state, "settings.theme", func(any, any) error {
		return errors.New("listener unavailable")
	}, reactive.Named("failing")); err != nil {
		return err
	}

	settings := state.Get("settings").(*reactive.Reactive)
	if err := settings.Set("theme", "dark"); err != nil {
		return err
	}
	return state.Set("settings", reactive.ObjectOf(map[string]any{"theme": "contrast"}))
}

// printHost writes each patch to the scenario trace.
func printHost(env *Env, name string) component.Host {
	return component.HostFunc(func(prev, next any) error {
		if prev == nil {
			env.Printf("  [%s] mount %v", name, next)
			return nil
		}
		env.Printf("  [%s] patch %v -> %v", name, prev, next)
		return nil
	})
}

func runComponent(_ context.Context, env *Env) error {
	e := env.Engine

	card, err := component.New(e, component.Options{
		Name: "card",
		Data: func(*component.Instance) map[string]any {
			return map[string]any{"first": "Ada", "last": "Lovelace"}
		},
		Computed: map[string]component.ComputedFunc{
			"full": func(vm *component.Instance) (any, error) {
				return fmt.Sprintf("%v %v", vm.Get("first"), vm.Get("last")), nil
			},
		},
		Watch: map[string]reactive.Handler{
			"last": func(cur, old any) error {
				env.Printf("  [card] watch last %v -> %v", old, cur)
				return nil
			},
		},
		Render: func(vm *component.Instance) (any, error) {
			return fmt.Sprintf("<h1>%v</h1>", vm.Get("full")), nil
		},
		Host: printHost(env, "card"),
	})
	if err != nil {
		return err
	}
	if err := card.Set("last", "King"); err != nil {
		return err
	}
	card.Unmount()

	var state *reactive.Reactive
	counter, err := component.Mount(e, component.Component{
		Name: "counter",
		Setup: func(e *reactive.Engine) (component.Render, error) {
			state = e.Reactive(reactive.ObjectOf(map[string]any{"count": 0}))
			return func() (any, error) {
				return fmt.Sprintf("<button>%v</button>", state.Get("count")), nil
			}, nil
		},
	}, printHost(env, "counter"))
	if err != nil {
		return err
	}
	defer counter.Unmount()
	return state.Set("count", 1)
}

func runTicker(ctx context.Context, env *Env) error {
	e := env.Engine
	tick := env.Tick
	if tick <= 0 {
		tick = time.Second
	}

	var state *reactive.Reactive
	clock, err := component.Mount(e, component.Component{
		Name: "clock",
		Setup: func(e *reactive.Engine) (component.Render, error) {
			state = e.Reactive(reactive.ObjectOf(map[string]any{"ticks": 0}))
			parity := e.Computed(nil, func(any) (any, error) {
				if state.Get("ticks").(int)%2 == 0 {
					return "even", nil
				}
				return "odd", nil
			}, reactive.Named("parity"))
			return func() (any, error) {
				p, err := parity.Value()
				if err != nil {
					return nil, err
				}
				return fmt.Sprintf("ticks=%v (%v)", state.Get("ticks"), p), nil
			}, nil
		},
	}, printHost(env, "clock"))
	if err != nil {
		return err
	}
	defer clock.Unmount()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n := state.Get("ticks").(int)
			if err := state.Set("ticks", n+1); err != nil {
				env.Logger.Error("tick failed", "error", err)
			}
		}
	}
}
