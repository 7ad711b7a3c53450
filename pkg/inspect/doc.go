// Package inspect captures engine events for debugging.
//
// A Recorder is installed as a reactive.Probe and keeps a bounded history
// of events. Each captured Record is forwarded to the recorder's sinks: a
// Hub streams them to WebSocket clients, and an S3Uploader stores a
// finished trace as a JSON object.
//
//	hub := inspect.NewHub(logger)
//	rec := inspect.NewRecorder(0, hub)
//	engine := reactive.New(reactive.WithProbe(rec))
//	http.Handle("/inspect", hub)
package inspect
