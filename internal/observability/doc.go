// Package observability provides logging, stats and tracing for the
// admin and diagnostics servers.
//
// # Logging
//
// The Logger interface provides structured logging backed by zap:
//
//	logger, err := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("request processed",
//	    observability.String("path", "/stats.json"),
//	    observability.Int("status", 200),
//	)
//
// # Stats
//
// StatsReceiver records dispatch and request statistics. The admin server
// uses a Prometheus-backed receiver; the diagnostics server uses NopStats
// so that nothing is recorded on the liveness path.
//
// # Tracing
//
// Tracer wraps an OpenTelemetry tracer provider with optional OTLP export.
// NewNopTracer returns a tracer whose spans are never recorded.
package observability
