package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactor/internal/config"
	"github.com/vango-dev/reactor/internal/demo"
	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/reactive"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.Fprint(os.Stderr, err)
		os.Exit(1)
	}
}

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:   "reactor",
		Short: "Fine-grained reactive dependency tracking",
		Long: `reactor runs, serves and records reactive dependency graphs.

Subscribers read observable data and are re-run when exactly the
locations they read are written. The command runs the bundled
scenarios, exposes engine metrics and a live event stream, and records
event traces to a file or S3.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file (default: nearest reactor.json or reactor.toml)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override log.level")

	rootCmd.AddCommand(
		demoCmd(&flags),
		serveCmd(&flags),
		recordCmd(&flags),
		initCmd(),
		versionCmd(),
	)

	return rootCmd
}

// setup loads the config and builds the logger every command runs with.
func (f *globalFlags) setup() (*config.Config, *slog.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.LoadFromWorkingDir()
	}
	if err != nil {
		return nil, nil, err
	}

	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}

	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// newEngine creates an engine configured by cfg with the given probes.
func newEngine(cfg *config.Config, logger *slog.Logger, probes ...reactive.Probe) *reactive.Engine {
	opts := cfg.EngineOptions(logger)
	for _, p := range probes {
		opts = append(opts, reactive.WithProbe(p))
	}
	return reactive.New(opts...)
}

// newDemoEnv builds the scenario environment for cfg, writing scenario
// output to out.
func newDemoEnv(cfg *config.Config, logger *slog.Logger, out io.Writer, probes ...reactive.Probe) (*demo.Env, error) {
	tick, err := cfg.TickInterval()
	if err != nil {
		return nil, errors.New("C003").Wrap(err)
	}
	return &demo.Env{
		Engine: newEngine(cfg, logger, probes...),
		Out:    out,
		Logger: logger,
		Tick:   tick,
	}, nil
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
