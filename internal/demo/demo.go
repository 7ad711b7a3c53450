package demo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/reactive"
)

// Env is what a scenario runs against.
type Env struct {
	// Engine is the engine the scenario builds its graph in.
	Engine *reactive.Engine

	// Out receives the scenario's human-readable trace.
	Out io.Writer

	// Logger is used for diagnostics.
	Logger *slog.Logger

	// Tick is the interval between writes for long-running scenarios.
	Tick time.Duration
}

// Printf writes one trace line.
func (env *Env) Printf(format string, args ...any) {
	fmt.Fprintf(env.Out, format+"\n", args...)
}

// Scenario is a named, self-contained use of the engine.
type Scenario struct {
	Name        string
	Description string

	// LongRunning scenarios run until their context is cancelled.
	LongRunning bool

	Run func(ctx context.Context, env *Env) error
}

var scenarios = map[string]Scenario{}

func register(s Scenario) {
	scenarios[s.Name] = s
}

// Lookup returns the scenario registered under name.
func Lookup(name string) (Scenario, bool) {
	s, ok := scenarios[name]
	return s, ok
}

// All returns every scenario, sorted by name.
func All() []Scenario {
	out := make([]Scenario, 0, len(scenarios))
	for _, s := range scenarios {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the names of the scenarios that finish on their own.
func Names() []string {
	var names []string
	for _, s := range All() {
		if !s.LongRunning {
			names = append(names, s.Name)
		}
	}
	return names
}

// Run runs the named scenarios in order against env. The engine must be
// at rest after each one.
func Run(ctx context.Context, env *Env, names ...string) error {
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	if env.Out == nil {
		env.Out = io.Discard
	}

	for _, name := range names {
		s, ok := Lookup(name)
		if !ok {
			return errors.New("X001").WithDetail(fmt.Sprintf("No scenario named %q", name))
		}

		env.Printf("== %s: %s", s.Name, s.Description)
		start := time.Now()
		if err := s.Run(ctx, env); err != nil {
			return errors.FromError(err, "X005").
				WithDetail(fmt.Sprintf("Scenario %q failed", s.Name))
		}
		if err := env.Engine.CheckAtRest(); err != nil {
			return errors.FromError(err, "X005")
		}
		env.Logger.Debug("scenario finished", "scenario", s.Name, "elapsed", time.Since(start))
	}
	return nil
}
