// Package telemetry provides observability instrumentation for lazyval.
//
// The telemetry package integrates structured logging (zerolog), distributed
// tracing (OpenTelemetry) and metrics (Prometheus) into one system for
// monitoring source loads and value renders.
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with context propagation:
//
//	logger := tel.Logger.NewComponentLogger("engine")
//	logger = logger.WithSessionID(id).WithSource("default.star", "starlark")
//	logger.Info("Rendering value")
//	logger.WithError(err).Error("Load failed")
//
// Log levels: trace, debug, info, warn, error, fatal, disabled.
// Logs go to stderr by default so they never mix with rendered output.
//
// # Distributed Tracing
//
//	ctx, span := tel.Tracer.StartRenderSpan(ctx, sessionID, "a.b")
//	defer span.End()
//
//	span.SetAttributes(telemetry.AttrElided.Int(stats.Elided))
//	telemetry.RecordError(span, err)
//
// Supported exporters: "otlp" (gRPC), "stdout" (pretty printed to stderr)
// and "none".
//
// # Metrics
//
// Key metrics exposed:
//
//   - lazyval_renders_total{format,status}
//   - lazyval_render_duration_seconds{format}
//   - lazyval_render_eval_errors_total{format}
//   - lazyval_render_elisions_total{format}
//   - lazyval_render_repeated_total{format}
//   - lazyval_loads_total{format,status}
//   - lazyval_load_duration_seconds{format}
//   - lazyval_derivations_registered_total
//   - lazyval_active_sessions
//
// Metrics are served over HTTP only when MetricsConfig.ListenAddress is set.
package telemetry
