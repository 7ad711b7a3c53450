package main

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vango-dev/reactor/internal/config"
	"github.com/vango-dev/reactor/internal/demo"
	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/inspect"
	"github.com/vango-dev/reactor/pkg/instrument"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		addr     string
		scenario string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a live scenario and serve metrics and the event stream",
		Long: `Run a long-running scenario and expose the engine over HTTP.

Endpoints:
  • <metricsPath>   Prometheus metrics (default /metrics)
  • <inspectPath>   WebSocket stream of engine events (default /inspect)
  • /records        JSON trace of the buffered events
  • /healthz        Liveness check

Examples:
  reactor serve
  reactor serve --addr=:9464
  reactor serve --scenario=ticker`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.setup()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Serve.Addr = addr
			}
			return runServe(cfg, logger, scenario)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config)")
	cmd.Flags().StringVarP(&scenario, "scenario", "s", "ticker", "Scenario to run while serving")

	return cmd
}

// inspector bundles what the HTTP surface exposes.
type inspector struct {
	registry *prometheus.Registry
	recorder *inspect.Recorder
	hub      *inspect.Hub
	logger   *slog.Logger
}

func newInspector(cfg *config.Config, logger *slog.Logger) (*inspector, *instrument.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := instrument.NewMetrics(
		instrument.WithRegistry(reg),
		instrument.WithNamespace(cfg.Metrics.Namespace),
		instrument.WithSubsystem(cfg.Metrics.Subsystem),
	)

	hub := inspect.NewHub(logger)
	return &inspector{
		registry: reg,
		recorder: inspect.NewRecorder(cfg.Record.Buffer, hub),
		hub:      hub,
		logger:   logger,
	}, metrics
}

// router builds the HTTP surface.
func (in *inspector) router(cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok\n")
	})
	r.Method(http.MethodGet, cfg.Serve.MetricsPath, promhttp.HandlerFor(in.registry, promhttp.HandlerOpts{}))
	r.Handle(cfg.Serve.InspectPath, in.hub)

	r.Route("/records", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := in.recorder.WriteJSON(w); err != nil {
				in.logger.Warn("write records", "error", err)
			}
		})
		r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
			in.recorder.Reset()
			in.hub.NotifyReset()
			w.WriteHeader(http.StatusNoContent)
		})
	})

	return r
}

func runServe(cfg *config.Config, logger *slog.Logger, scenario string) error {
	s, ok := demo.Lookup(scenario)
	if !ok {
		return errors.New("X001").WithDetail("No scenario named " + scenario)
	}

	in, metrics := newInspector(cfg, logger)
	env, err := newDemoEnv(cfg, logger, io.Discard, metrics, in.recorder, instrument.NewTracing())
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Serve.Addr,
		Handler:           in.router(cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	success("Serving on http://%s", cfg.Serve.Addr)
	info("metrics: %s", cfg.Serve.MetricsPath)
	info("events:  %s (websocket)", cfg.Serve.InspectPath)
	info("running scenario %q every %s", s.Name, env.Tick)

	runErr := make(chan error, 1)
	go func() {
		runErr <- demo.Run(ctx, env, s.Name)
	}()

	select {
	case err := <-serveErr:
		stop()
		<-runErr
		if err != nil {
			return errors.New("X004").Wrap(err)
		}
		return nil
	case err := <-runErr:
		if err != nil {
			warn("scenario stopped: %v", err)
		}
		stop()
	case <-ctx.Done():
		<-runErr
	}

	info("Shutting down...")
	in.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.New("X004").Wrap(err)
	}
	return nil
}
