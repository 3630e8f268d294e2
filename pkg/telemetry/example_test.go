package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/openfroyo/lazyval/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = "1.0.0"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	// Start metrics server (no-op without a listen address)
	if err := tel.StartMetricsServer(); err != nil {
		panic(err)
	}

	ctx := tel.WithContext(context.Background())

	logger := telemetry.FromContext(ctx)
	logger.Info("Application started")

	// Output can vary, so we don't specify output for this example
}

// Example_structuredLogging demonstrates structured logging features.
func Example_structuredLogging() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Tracing.Enabled = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	logger := tel.Logger.NewComponentLogger("engine").
		WithSessionID("9b2f6a4e-0c1d-4e6b-8f3a-2d5c7e9a1b0f").
		WithSource("default.star", "starlark")

	logger.Debug("Loading source")
	logger.WithAttrPath("packages.hello").Info("Rendering value")

	err := fmt.Errorf("attribute 'hello' missing")
	logger.WithError(err).Error("Selection failed")

	// Output varies, no output specified
}

// Example_metricsCollection demonstrates metrics collection.
func Example_metricsCollection() {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = true

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	tel.Metrics.SessionOpened()
	tel.Metrics.RecordLoad("cue", telemetry.StatusOK, 3*time.Millisecond)
	tel.Metrics.RecordRender("cue", telemetry.StatusOK, 250*time.Microsecond, 1, 2, 0)
	tel.Metrics.RecordDerivation()
	tel.Metrics.SessionClosed()

	fmt.Println("Metrics recorded successfully")
	// Output: Metrics recorded successfully
}

// Example_instrumentedOperation demonstrates using the InstrumentedContext helper.
func Example_instrumentedOperation() {
	tel := telemetry.NewNopTelemetry()
	ctx := tel.WithContext(context.Background())

	ic := telemetry.StartOperation(ctx, "select_attr",
		attribute.String("render.attr_path", "a.b.c"),
	)
	defer ic.End(nil)

	ic.Logger.Info("Selecting attribute")

	fmt.Println("Operation instrumentation complete")
	// Output: Operation instrumentation complete
}
