package config

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/reactive"
)

const (
	// JSONFileName is the name of the JSON configuration file.
	JSONFileName = "reactor.json"

	// TOMLFileName is the name of the TOML configuration file.
	TOMLFileName = "reactor.toml"

	// DefaultAddr is the default listen address for reactor serve.
	DefaultAddr = "localhost:9464"

	// DefaultTick is the default interval between ticker scenario writes.
	DefaultTick = "1s"

	// DefaultNamespace is the default Prometheus namespace.
	DefaultNamespace = "reactor"
)

// Config represents the complete reactor configuration.
type Config struct {
	// Engine contains engine settings.
	Engine EngineConfig `json:"engine" toml:"engine"`

	// Log contains logging settings.
	Log LogConfig `json:"log" toml:"log"`

	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `json:"metrics" toml:"metrics"`

	// Serve contains settings for reactor serve.
	Serve ServeConfig `json:"serve" toml:"serve"`

	// Record contains settings for reactor record.
	Record RecordConfig `json:"record" toml:"record"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// EngineConfig contains engine settings.
type EngineConfig struct {
	// MaxReruns bounds deferred self re-runs of one watcher.
	MaxReruns int `json:"maxReruns,omitempty" toml:"maxReruns,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" toml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" toml:"format,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Namespace is the metrics namespace.
	Namespace string `json:"namespace,omitempty" toml:"namespace,omitempty"`

	// Subsystem is the metrics subsystem.
	Subsystem string `json:"subsystem,omitempty" toml:"subsystem,omitempty"`
}

// ServeConfig contains settings for reactor serve.
type ServeConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty" toml:"addr,omitempty"`

	// InspectPath is the WebSocket path of the event stream.
	InspectPath string `json:"inspectPath,omitempty" toml:"inspectPath,omitempty"`

	// MetricsPath is the path of the Prometheus endpoint.
	MetricsPath string `json:"metricsPath,omitempty" toml:"metricsPath,omitempty"`

	// Tick is the interval between ticker writes (e.g., "1s").
	Tick string `json:"tick,omitempty" toml:"tick,omitempty"`
}

// RecordConfig contains settings for reactor record.
type RecordConfig struct {
	// Buffer is the number of events kept by the recorder.
	Buffer int `json:"buffer,omitempty" toml:"buffer,omitempty"`

	// Bucket is the S3 bucket recordings are uploaded to.
	Bucket string `json:"bucket,omitempty" toml:"bucket,omitempty"`

	// Prefix is the key prefix for uploaded recordings.
	Prefix string `json:"prefix,omitempty" toml:"prefix,omitempty"`

	// Region is the AWS region of the bucket.
	Region string `json:"region,omitempty" toml:"region,omitempty"`

	// Endpoint selects an S3-compatible service instead of AWS.
	Endpoint string `json:"endpoint,omitempty" toml:"endpoint,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads configuration from the specified directory. It looks for
// reactor.json first, then reactor.toml.
func Load(dir string) (*Config, error) {
	for _, name := range []string{JSONFileName, TOMLFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("C001").
		WithDetail("No " + JSONFileName + " or " + TOMLFileName + " found in " + dir)
}

// LoadFile reads configuration from the specified file path. The format
// is chosen by extension.
func LoadFile(path string) (*Config, error) {
	format := formatOf(path)
	if format == "" {
		return nil, errors.New("C004").WithDetail("Cannot read " + path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("C001").WithDetail("No config file at " + path)
		}
		return nil, errors.New("C002").Wrap(err)
	}

	cfg := &Config{}
	if format == "toml" {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, parseError(path, data, err)
	}

	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseError builds a C002 error pointing at the offending position.
func parseError(path string, data []byte, err error) error {
	re := errors.New("C002").Wrap(err)

	var tomlErr toml.ParseError
	if stderrors.As(err, &tomlErr) {
		return re.WithLocation(path, tomlErr.Position.Line, tomlErr.Position.Col)
	}

	var offset int64 = -1
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case stderrors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case stderrors.As(err, &typeErr):
		offset = typeErr.Offset
	}
	if offset >= 0 && offset <= int64(len(data)) {
		line, col := lineCol(data[:offset])
		return re.WithLocation(path, line, col)
	}
	return re
}

func lineCol(prefix []byte) (line, col int) {
	line = bytes.Count(prefix, []byte("\n")) + 1
	col = len(prefix) - bytes.LastIndexByte(prefix, '\n')
	return line, col
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".toml":
		return "toml"
	default:
		return ""
	}
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to path in the format its extension
// names.
func (c *Config) SaveTo(path string) error {
	var buf bytes.Buffer
	switch formatOf(path) {
	case "json":
		data, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return errors.New("C005").Wrap(err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	case "toml":
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return errors.New("C005").Wrap(err)
		}
	default:
		return errors.New("C004").WithDetail("Cannot write " + path)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return errors.New("C005").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Engine.MaxReruns == 0 {
		c.Engine.MaxReruns = reactive.DefaultMaxReruns
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}

	if c.Serve.Addr == "" {
		c.Serve.Addr = DefaultAddr
	}
	if c.Serve.InspectPath == "" {
		c.Serve.InspectPath = "/inspect"
	}
	if c.Serve.MetricsPath == "" {
		c.Serve.MetricsPath = "/metrics"
	}
	if c.Serve.Tick == "" {
		c.Serve.Tick = DefaultTick
	}

	if c.Record.Region == "" {
		c.Record.Region = "us-east-1"
	}
	if c.Record.Prefix == "" {
		c.Record.Prefix = "traces/"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Engine.MaxReruns < 1 {
		return errors.New("C003").
			WithDetail("engine.maxReruns must be at least 1")
	}
	if c.Record.Buffer < 0 {
		return errors.New("C003").
			WithDetail("record.buffer must not be negative")
	}
	if _, err := c.LogLevel(); err != nil {
		return errors.New("C003").
			WithDetail("log.level must be one of debug, info, warn, error").
			Wrap(err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("C003").
			WithDetail(fmt.Sprintf("log.format must be text or json, got %q", c.Log.Format))
	}
	if _, err := c.TickInterval(); err != nil {
		return errors.New("C003").
			WithDetail("serve.tick must be a positive duration such as \"500ms\"").
			Wrap(err)
	}
	for _, p := range []string{c.Serve.InspectPath, c.Serve.MetricsPath} {
		if !strings.HasPrefix(p, "/") {
			return errors.New("C003").
				WithDetail(fmt.Sprintf("serve paths must start with '/', got %q", p))
		}
	}
	return nil
}

// TickInterval returns serve.tick as a duration.
func (c *Config) TickInterval() (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(c.Serve.Tick))
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("tick %s is not positive", d)
	}
	return d, nil
}

// LogLevel returns log.level as a slog level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.Log.Level))
	return level, err
}

// NewLogger builds a logger writing to w as configured by the log section.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.LogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// EngineOptions returns the engine options the config selects.
func (c *Config) EngineOptions(logger *slog.Logger) []reactive.Option {
	return []reactive.Option{
		reactive.WithLogger(logger),
		reactive.WithMaxReruns(c.Engine.MaxReruns),
	}
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range []string{JSONFileName, TOMLFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the nearest directory
// holding a config file.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("C001").
				WithDetail("No config file found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the nearest config file at
// or above the working directory. If none exists, defaults are returned.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return New(), nil
	}

	return Load(root)
}
