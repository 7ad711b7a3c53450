// Package instrument provides reactive.Probe implementations that export
// engine activity to Prometheus and OpenTelemetry.
//
// Probes are installed when the engine is created:
//
//	reg := prometheus.NewRegistry()
//	engine := reactive.New(
//	    reactive.WithProbe(instrument.NewMetrics(instrument.WithRegistry(reg))),
//	    reactive.WithProbe(instrument.NewTracing(instrument.WithTracerName("my-app"))),
//	)
//
// Both probes observe events synchronously on the engine's goroutine.
package instrument
