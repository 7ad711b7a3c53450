package demo

import (
	"bytes"
	"context"
	stderrors "errors"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/reactive"
)

func newEnv(handled *[]error) (*Env, *bytes.Buffer) {
	var out bytes.Buffer
	e := reactive.New(reactive.WithErrorHandler(func(err error) {
		*handled = append(*handled, err)
	}))
	return &Env{Engine: e, Out: &out}, &out
}

func lines(out *bytes.Buffer) []string {
	var ls []string
	for _, l := range strings.Split(strings.TrimRight(out.String(), "\n"), "\n") {
		if !strings.HasPrefix(l, "==") {
			ls = append(ls, l)
		}
	}
	return ls
}

func TestScenarioTraces(t *testing.T) {
	tests := []struct {
		name string
		want []string
	}{
		{"counter", []string{
			"  [define] count 0 -> 1",
			"  [define] count 1 -> 2",
			"  [reactive] count 0 -> 1",
			"  [reactive] count 1 -> 2",
		}},
		{"nested", []string{
			"  user.name ada -> grace",
			"  writing the replaced container",
			"  user.name grace -> hopper",
		}},
		{"computed", []string{
			"  evaluations after repeated reads: 1",
			"  total 20 -> 50",
			"  evaluations after one write: 2",
		}},
		{"conditional", []string{
			"  dependencies: 2",
			"  branch A -> B",
			"  dependencies: 2",
			"  branch B -> B2",
		}},
		{"watch", []string{
			"  theme light -> dark",
			"  theme dark -> contrast",
		}},
		{"component", []string{
			"  [card] mount <h1>Ada Lovelace</h1>",
			"  [card] watch last Lovelace -> King",
			"  [card] patch <h1>Ada Lovelace</h1> -> <h1>Ada King</h1>",
			"  [counter] mount <button>0</button>",
			"  [counter] patch <button>0</button> -> <button>1</button>",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var handled []error
			env, out := newEnv(&handled)
			if err := Run(context.Background(), env, tt.name); err != nil {
				t.Fatalf("Run(%s) error: %v", tt.name, err)
			}
			if got := lines(out); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("trace =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(tt.want, "\n"))
			}
		})
	}
}

func TestWatchScenarioIsolatesFailures(t *testing.T) {
	var handled []error
	env, _ := newEnv(&handled)
	if err := Run(context.Background(), env, "watch"); err != nil {
		t.Fatalf("Run(watch) error: %v", err)
	}

	if len(handled) != 2 {
		t.Fatalf("expected 2 handled errors, got %d", len(handled))
	}
	var cbErr *reactive.CallbackError
	if !stderrors.As(handled[0], &cbErr) {
		t.Fatalf("handled error %T is not *reactive.CallbackError", handled[0])
	}
	if cbErr.Source != "failing" {
		t.Errorf("Source = %q, want failing", cbErr.Source)
	}
}

func TestRunAllNamedScenarios(t *testing.T) {
	var handled []error
	env, out := newEnv(&handled)
	if err := Run(context.Background(), env, Names()...); err != nil {
		t.Fatalf("Run(all) error: %v", err)
	}

	for _, name := range Names() {
		if !strings.Contains(out.String(), "== "+name+":") {
			t.Errorf("output missing header for %s", name)
		}
	}
	if slices.Contains(Names(), "ticker") {
		t.Error("long-running scenarios should not be listed in Names()")
	}
}

func TestRunUnknownScenario(t *testing.T) {
	var handled []error
	env, _ := newEnv(&handled)
	err := Run(context.Background(), env, "missing")

	var re *errors.ReactorError
	if !stderrors.As(err, &re) {
		t.Fatalf("Run(missing) error = %v, want *ReactorError", err)
	}
	if re.Code != "X001" {
		t.Errorf("Code = %s, want X001", re.Code)
	}
}

func TestTickerRunsUntilCancelled(t *testing.T) {
	var handled []error
	env, out := newEnv(&handled)
	env.Tick = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	if err := Run(ctx, env, "ticker"); err != nil {
		t.Fatalf("Run(ticker) error: %v", err)
	}

	got := lines(out)
	if len(got) < 2 {
		t.Fatalf("expected a mount and at least one patch, got %q", got)
	}
	if got[0] != "  [clock] mount ticks=0 (even)" {
		t.Errorf("first line = %q", got[0])
	}
	if got[1] != "  [clock] patch ticks=0 (even) -> ticks=1 (odd)" {
		t.Errorf("second line = %q", got[1])
	}
}

func TestAllIsSorted(t *testing.T) {
	all := All()
	if len(all) == 0 {
		t.Fatal("no scenarios registered")
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Name >= all[i].Name {
			t.Errorf("scenarios out of order: %s before %s", all[i-1].Name, all[i].Name)
		}
	}
	s, ok := Lookup("ticker")
	if !ok {
		t.Fatal("ticker scenario not registered")
	}
	if !s.LongRunning {
		t.Error("ticker should be long-running")
	}
}
