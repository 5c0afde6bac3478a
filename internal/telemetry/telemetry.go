// Package telemetry wires OpenTelemetry trace and log export over OTLP/HTTP.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"primefinder/internal/config"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Provider holds the exporters started by Setup.
type Provider struct {
	// LogHandler forwards slog records to the OTLP log pipeline. Nil when
	// export is disabled.
	LogHandler slog.Handler
	shutdown   []func(context.Context) error
}

// Setup starts trace and log export when an OTLP endpoint is configured.
// Without one it returns a Provider whose Shutdown is a no-op and leaves the
// global no-op tracer in place.
func Setup(ctx context.Context, cfg config.TelemetryConfig) (*Provider, error) {
	p := &Provider{}
	endpoint := strings.TrimRight(cfg.OTLPEndpoint, "/")
	if endpoint == "" {
		return p, nil
	}
	name := cfg.ServiceName
	if name == "" {
		name = "primefinder"
	}
	res := resource.NewSchemaless(attribute.String("service.name", name))

	traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint+"/v1/traces"))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	p.shutdown = append(p.shutdown, tp.Shutdown)

	logExporter, err := otlploghttp.New(ctx, otlploghttp.WithEndpointURL(endpoint+"/v1/logs"))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create log exporter: %w", err), p.Shutdown(ctx))
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(lp)
	p.shutdown = append(p.shutdown, lp.Shutdown)
	p.LogHandler = otelslog.NewHandler(name, otelslog.WithLoggerProvider(lp))

	return p, nil
}

// Enabled reports whether anything is being exported.
func (p *Provider) Enabled() bool {
	return len(p.shutdown) > 0
}

// Shutdown flushes and stops every exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(p.shutdown) - 1; i >= 0; i-- {
		errs = append(errs, p.shutdown[i](ctx))
	}
	p.shutdown = nil
	return errors.Join(errs...)
}
