package main

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// setupMetrics wires the global OTel MeterProvider to a stdout exporter
// writing to stderr, so the instruments registered in internal/verify/checker
// actually go somewhere. It returns a shutdown func that flushes and prints
// the final snapshot; callers must defer it. When disabled, the global
// provider stays the default no-op and every Record/Add call is free.
func setupMetrics(enabled bool) func(context.Context) error {
	if !enabled {
		return func(context.Context) error { return nil }
	}

	exporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(os.Stderr),
		stdoutmetric.WithoutTimestamps(),
	)
	if err != nil {
		return func(context.Context) error { return nil }
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	otel.SetMeterProvider(provider)
	return provider.Shutdown
}
