package main

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/reactor/internal/config"
	"github.com/vango-dev/reactor/internal/demo"
	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/inspect"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func codeOf(t *testing.T, err error) string {
	t.Helper()
	var re *errors.ReactorError
	if !stderrors.As(err, &re) {
		t.Fatalf("error %v (%T) is not a *ReactorError", err, err)
	}
	return re.Code
}

func newTestInspector(t *testing.T) (*inspector, *config.Config, *demo.Env) {
	t.Helper()
	cfg := config.New()
	in, metrics := newInspector(cfg, quietLogger())
	env, err := newDemoEnv(cfg, quietLogger(), io.Discard, metrics, in.recorder)
	if err != nil {
		t.Fatalf("newDemoEnv() error: %v", err)
	}
	return in, cfg, env
}

func get(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthz(t *testing.T) {
	in, cfg, _ := newTestInspector(t)
	rr := get(t, in.router(cfg), http.MethodGet, "/healthz")
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if rr.Body.String() != "ok\n" {
		t.Errorf("body = %q, want ok", rr.Body.String())
	}
}

func TestRouterMetrics(t *testing.T) {
	in, cfg, env := newTestInspector(t)
	if err := demo.Run(context.Background(), env, "counter"); err != nil {
		t.Fatalf("demo.Run() error: %v", err)
	}

	rr := get(t, in.router(cfg), http.MethodGet, cfg.Serve.MetricsPath)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"reactor_runs_total", "reactor_triggers_total", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestRouterRecords(t *testing.T) {
	in, cfg, env := newTestInspector(t)
	if err := demo.Run(context.Background(), env, "counter"); err != nil {
		t.Fatalf("demo.Run() error: %v", err)
	}
	h := in.router(cfg)

	rr := get(t, h, http.MethodGet, "/records")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var trace inspect.Trace
	if err := json.Unmarshal(rr.Body.Bytes(), &trace); err != nil {
		t.Fatalf("records are not valid JSON: %v", err)
	}
	if len(trace.Records) == 0 {
		t.Error("expected recorded events")
	}

	rr = get(t, h, http.MethodDelete, "/records")
	if rr.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want 204", rr.Code)
	}
	if n := len(in.recorder.Records()); n != 0 {
		t.Errorf("DELETE left %d records", n)
	}
}

func TestRunServeUnknownScenario(t *testing.T) {
	err := runServe(config.New(), quietLogger(), "missing")
	if code := codeOf(t, err); code != "X001" {
		t.Errorf("code = %s, want X001", code)
	}
}

func TestNewDemoEnvRejectsBadTick(t *testing.T) {
	cfg := config.New()
	cfg.Serve.Tick = "bogus"

	env, err := newDemoEnv(cfg, quietLogger(), io.Discard)
	if env != nil {
		t.Error("expected no environment for an invalid tick")
	}
	if code := codeOf(t, err); code != "C003" {
		t.Errorf("code = %s, want C003", code)
	}

	cfg.Serve.Tick = "250ms"
	env, err = newDemoEnv(cfg, quietLogger(), io.Discard)
	if err != nil {
		t.Fatalf("newDemoEnv() error: %v", err)
	}
	if env.Tick != 250*time.Millisecond {
		t.Errorf("Tick = %s, want 250ms", env.Tick)
	}
}

func TestRunInit(t *testing.T) {
	dir := t.TempDir()

	path, err := runInit(dir, "toml", false)
	if err != nil {
		t.Fatalf("runInit() error: %v", err)
	}
	if want := filepath.Join(dir, config.TOMLFileName); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.Serve.Addr != config.DefaultAddr {
		t.Errorf("Serve.Addr = %q, want %q", cfg.Serve.Addr, config.DefaultAddr)
	}

	_, err = runInit(dir, "toml", false)
	if code := codeOf(t, err); code != "C005" {
		t.Errorf("existing file code = %s, want C005", code)
	}

	if _, err := runInit(dir, "toml", true); err != nil {
		t.Errorf("forced runInit() error: %v", err)
	}

	_, err = runInit(dir, "yaml", false)
	if code := codeOf(t, err); code != "C004" {
		t.Errorf("unknown format code = %s, want C004", code)
	}
}

type fakeUploader struct {
	name    string
	records int
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, name string, rec *inspect.Recorder) (string, error) {
	f.name = name
	f.records = len(rec.Records())
	if f.err != nil {
		return "", f.err
	}
	return "traces/" + name + ".json", nil
}

func newRecordEnv(t *testing.T) (*config.Config, *demo.Env, *inspect.Recorder) {
	t.Helper()
	cfg := config.New()
	rec := inspect.NewRecorder(0)
	env, err := newDemoEnv(cfg, quietLogger(), io.Discard, rec)
	if err != nil {
		t.Fatalf("newDemoEnv() error: %v", err)
	}
	return cfg, env, rec
}

func TestRunRecordToStdout(t *testing.T) {
	cfg, env, rec := newRecordEnv(t)
	var out bytes.Buffer

	if err := runRecord(context.Background(), cfg, env, rec, nil, recordOptions{}, []string{"computed"}, &out); err != nil {
		t.Fatalf("runRecord() error: %v", err)
	}

	var trace inspect.Trace
	if err := json.Unmarshal(out.Bytes(), &trace); err != nil {
		t.Fatalf("stdout is not a JSON trace: %v", err)
	}
	if len(trace.Records) == 0 {
		t.Error("expected recorded events")
	}
}

func TestRunRecordToFileAndUploader(t *testing.T) {
	cfg, env, rec := newRecordEnv(t)
	path := filepath.Join(t.TempDir(), "trace.json")
	up := &fakeUploader{}

	opts := recordOptions{out: path}
	if err := runRecord(context.Background(), cfg, env, rec, up, opts, []string{"counter", "nested"}, io.Discard); err != nil {
		t.Fatalf("runRecord() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var trace inspect.Trace
	if err := json.Unmarshal(data, &trace); err != nil {
		t.Fatalf("trace file is not valid JSON: %v", err)
	}

	if up.name != "counter+nested" {
		t.Errorf("upload name = %q, want counter+nested", up.name)
	}
	if up.records != len(trace.Records) {
		t.Errorf("uploaded %d records, file has %d", up.records, len(trace.Records))
	}
}

func TestRunRecordUploadFailure(t *testing.T) {
	cfg, env, rec := newRecordEnv(t)
	up := &fakeUploader{err: io.ErrUnexpectedEOF}

	err := runRecord(context.Background(), cfg, env, rec, up, recordOptions{}, []string{"counter"}, io.Discard)
	if code := codeOf(t, err); code != "X003" {
		t.Errorf("code = %s, want X003", code)
	}
	if !stderrors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("error %v should wrap the upload failure", err)
	}
}

func TestRunRecordStopsLongRunning(t *testing.T) {
	cfg, env, rec := newRecordEnv(t)
	env.Tick = 5 * time.Millisecond
	var out bytes.Buffer

	opts := recordOptions{duration: 30 * time.Millisecond}
	if err := runRecord(context.Background(), cfg, env, rec, nil, opts, []string{"ticker"}, &out); err != nil {
		t.Fatalf("runRecord() error: %v", err)
	}
	if !strings.Contains(out.String(), `"kind": "run-start"`) {
		t.Errorf("trace missing run-start records:\n%s", out.String())
	}
}

func TestVersionShort(t *testing.T) {
	cmd := versionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--short"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if out.String() != version+"\n" {
		t.Errorf("output = %q, want %q", out.String(), version+"\n")
	}
}
