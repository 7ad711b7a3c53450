// Package config provides configuration parsing for the reactor command.
//
// The configuration is stored in reactor.json or reactor.toml. This
// package handles loading, saving, and validating configuration.
//
// # Configuration File Structure
//
//	[engine]
//	maxReruns = 100
//
//	[log]
//	level = "debug"
//	format = "json"
//
//	[metrics]
//	namespace = "reactor"
//
//	[serve]
//	addr = "localhost:9464"
//	inspectPath = "/inspect"
//	metricsPath = "/metrics"
//	tick = "500ms"
//
//	[record]
//	buffer = 4096
//	bucket = "my-traces"
//	prefix = "traces/"
//	region = "eu-west-1"
//
// The JSON form uses the same keys.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	engine := reactive.New(cfg.EngineOptions(cfg.NewLogger(os.Stderr))...)
package config
