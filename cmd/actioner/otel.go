package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Configures an OTLP HTTP trace exporter, if OTEL_EXPORTER_OTLP_ENDPOINT is set (eg, http://localhost:4318). Other exporter settings come from the standard OTEL_* environment variables.
//
// ACTIONER_TRACE_SAMPLE_RATIO (0.0 to 1.0) samples root spans; child spans follow their parent.
func configOTEL(serviceName string) (shutdown func()) {
	noop := func() {}
	ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if ep == "" {
		return noop
	}

	ratio := 1.0
	if raw := os.Getenv("ACTIONER_TRACE_SAMPLE_RATIO"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || r < 0 || r > 1 {
			slog.Warn("ignoring invalid trace sample ratio", "value", raw)
		} else {
			ratio = r
		}
	}

	slog.Info("setting up trace exporter", "endpoint", ep, "sampleRatio", ratio)
	exp, err := otlptracehttp.New(context.Background())
	if err != nil {
		slog.Error("failed to create trace exporter", "error", err)
		return noop
	}

	env := os.Getenv("ENVIRONMENT")
	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(ratio))),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			attribute.String("env", env),         // DataDog
			attribute.String("environment", env), // Others
			attribute.String("version", versioninfo.Short()),
		)),
	)
	otel.SetTracerProvider(tp)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			slog.Error("failed to flush and shutdown trace provider", "error", err)
		}
	}
}
