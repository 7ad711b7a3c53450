package config

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/reactive"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func reactorError(t *testing.T, err error) *errors.ReactorError {
	t.Helper()
	var re *errors.ReactorError
	if !stderrors.As(err, &re) {
		t.Fatalf("error %v (%T) is not a *ReactorError", err, err)
	}
	return re
}

func codeOf(t *testing.T, err error) string {
	t.Helper()
	return reactorError(t, err).Code
}

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Engine.MaxReruns != reactive.DefaultMaxReruns {
		t.Errorf("Engine.MaxReruns = %d, want %d", cfg.Engine.MaxReruns, reactive.DefaultMaxReruns)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want text", cfg.Log.Format)
	}
	if cfg.Metrics.Namespace != DefaultNamespace {
		t.Errorf("Metrics.Namespace = %q, want %q", cfg.Metrics.Namespace, DefaultNamespace)
	}
	if cfg.Serve.Addr != DefaultAddr {
		t.Errorf("Serve.Addr = %q, want %q", cfg.Serve.Addr, DefaultAddr)
	}
	if cfg.Serve.InspectPath != "/inspect" {
		t.Errorf("Serve.InspectPath = %q, want /inspect", cfg.Serve.InspectPath)
	}
	if cfg.Serve.MetricsPath != "/metrics" {
		t.Errorf("Serve.MetricsPath = %q, want /metrics", cfg.Serve.MetricsPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}

	tick, err := cfg.TickInterval()
	if err != nil {
		t.Fatalf("TickInterval() error: %v", err)
	}
	if tick != time.Second {
		t.Errorf("TickInterval() = %s, want 1s", tick)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir)
	if code := codeOf(t, err); code != "C001" {
		t.Errorf("missing config code = %s, want C001", code)
	}

	writeFile(t, dir, JSONFileName, `{
  "engine": {"maxReruns": 7},
  "log": {"level": "debug", "format": "json"},
  "serve": {"addr": ":8080", "tick": "250ms"},
  "record": {"bucket": "traces-bucket"}
}
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Engine.MaxReruns != 7 {
		t.Errorf("Engine.MaxReruns = %d, want 7", cfg.Engine.MaxReruns)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
	if cfg.Serve.Addr != ":8080" {
		t.Errorf("Serve.Addr = %q, want :8080", cfg.Serve.Addr)
	}
	// Defaults fill unset fields.
	if cfg.Serve.MetricsPath != "/metrics" {
		t.Errorf("Serve.MetricsPath = %q, want /metrics", cfg.Serve.MetricsPath)
	}
	if cfg.Record.Bucket != "traces-bucket" {
		t.Errorf("Record.Bucket = %q", cfg.Record.Bucket)
	}
	if cfg.Record.Region != "us-east-1" {
		t.Errorf("Record.Region = %q, want us-east-1", cfg.Record.Region)
	}
	if cfg.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", cfg.Dir(), dir)
	}

	level, err := cfg.LogLevel()
	if err != nil {
		t.Fatalf("LogLevel() error: %v", err)
	}
	if level != slog.LevelDebug {
		t.Errorf("LogLevel() = %v, want debug", level)
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, TOMLFileName, `
[engine]
maxReruns = 3

[metrics]
namespace = "app"
subsystem = "ui"

[serve]
tick = "2s"
`)

	if !Exists(dir) {
		t.Fatal("Exists() = false for a directory with reactor.toml")
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Engine.MaxReruns != 3 {
		t.Errorf("Engine.MaxReruns = %d, want 3", cfg.Engine.MaxReruns)
	}
	if cfg.Metrics.Namespace != "app" || cfg.Metrics.Subsystem != "ui" {
		t.Errorf("Metrics = %+v, want app/ui", cfg.Metrics)
	}

	tick, err := cfg.TickInterval()
	if err != nil {
		t.Fatalf("TickInterval() error: %v", err)
	}
	if tick != 2*time.Second {
		t.Errorf("TickInterval() = %s, want 2s", tick)
	}
}

func TestLoadPrefersJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, JSONFileName, `{"metrics": {"namespace": "from_json"}}`)
	writeFile(t, dir, TOMLFileName, "[metrics]\nnamespace = \"from_toml\"\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Metrics.Namespace != "from_json" {
		t.Errorf("Metrics.Namespace = %q, want from_json", cfg.Metrics.Namespace)
	}
}

func TestLoadReportsParseLocation(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"bad.json", "{\n  \"engine\": {\n    \"maxReruns\": \"x\"\n  }\n}\n"},
		{"bad.toml", "[engine]\nmaxReruns = 1\n[log\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeFile(t, dir, tt.name, tt.content))
			re := reactorError(t, err)
			if re.Code != "C002" {
				t.Errorf("Code = %s, want C002", re.Code)
			}
			if re.Location == nil {
				t.Fatal("expected a source location")
			}
			if re.Location.Line != 3 {
				t.Errorf("Location.Line = %d, want 3", re.Location.Line)
			}
		})
	}

	_, err := LoadFile(filepath.Join(dir, "bad.json"))
	if re := reactorError(t, err); len(re.Context) == 0 {
		t.Error("expected source context for a JSON parse error")
	}
}

func TestLoadFileRejectsUnknownFormat(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "reactor.yaml"))
	if code := codeOf(t, err); code != "C004" {
		t.Errorf("code = %s, want C004", code)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative reruns", func(c *Config) { c.Engine.MaxReruns = -1 }},
		{"negative buffer", func(c *Config) { c.Record.Buffer = -5 }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad tick", func(c *Config) { c.Serve.Tick = "soon" }},
		{"zero tick", func(c *Config) { c.Serve.Tick = "0s" }},
		{"relative path", func(c *Config) { c.Serve.MetricsPath = "metrics" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			if code := codeOf(t, cfg.Validate()); code != "C003" {
				t.Errorf("code = %s, want C003", code)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := New()
	cfg.Engine.MaxReruns = 42
	cfg.Record.Bucket = "b"

	for _, name := range []string{JSONFileName, TOMLFileName} {
		path := filepath.Join(dir, name)
		if err := cfg.SaveTo(path); err != nil {
			t.Fatalf("SaveTo(%s) error: %v", name, err)
		}
		if cfg.Path() != path {
			t.Errorf("Path() = %q, want %q", cfg.Path(), path)
		}

		loaded, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile(%s) error: %v", name, err)
		}
		if loaded.Engine.MaxReruns != 42 || loaded.Record.Bucket != "b" {
			t.Errorf("%s round trip = %+v / %+v", name, loaded.Engine, loaded.Record)
		}
	}

	if code := codeOf(t, cfg.SaveTo(filepath.Join(dir, "reactor.ini"))); code != "C004" {
		t.Errorf("code = %s, want C004", code)
	}
	if err := New().Save(); err == nil {
		t.Error("Save() without a path should fail")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := New()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "key", "v")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "shown" || line["key"] != "v" {
		t.Errorf("log line = %v", line)
	}
}

func TestEngineOptions(t *testing.T) {
	cfg := New()
	cfg.Engine.MaxReruns = 2
	e := reactive.New(cfg.EngineOptions(slog.Default())...)
	state := e.Reactive(reactive.ObjectOf(map[string]any{"n": 0}))

	_, err := e.Effect(func() error {
		return state.Set("n", state.Get("n").(int)+1)
	})
	if !stderrors.Is(err, reactive.ErrRerunLimit) {
		t.Errorf("Effect() error = %v, want ErrRerunLimit", err)
	}
	if got := state.Get("n"); got != 3 {
		t.Errorf("n = %v, want 3", got)
	}
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, TOMLFileName, "")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	found, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatalf("FindProjectRoot() error: %v", err)
	}
	want, err := filepath.Abs(root)
	if err != nil {
		t.Fatal(err)
	}
	if found != want {
		t.Errorf("FindProjectRoot() = %q, want %q", found, want)
	}
}
