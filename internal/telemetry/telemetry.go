// Package telemetry wires the OpenTelemetry SDK for the CLI.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ErrUnknownExporter is returned for exporter names Init does not support.
var ErrUnknownExporter = errors.New("unknown trace exporter")

// Config selects the span exporter.
type Config struct {
	// Exporter is "stdout" or "none".
	Exporter    string
	ServiceName string
	// Writer receives stdout spans; defaults to os.Stderr so JSON output on
	// stdout stays parseable.
	Writer io.Writer
}

// Provider owns the tracer provider installed by Init.
type Provider struct {
	provider trace.TracerProvider
	shutdown func(context.Context) error
}

// Init builds a tracer provider for cfg and installs it globally.
func Init(_ context.Context, cfg Config) (*Provider, error) {
	switch cfg.Exporter {
	case "", "none":
		tp := noop.NewTracerProvider()
		return &Provider{provider: tp, shutdown: func(context.Context) error { return nil }}, nil
	case "stdout":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.Exporter)
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}
	name := cfg.ServiceName
	if name == "" {
		name = "plantingcore"
	}
	res := resource.NewWithAttributes("", attribute.String("service.name", name))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return &Provider{provider: tp, shutdown: tp.Shutdown}, nil
}

// Tracer returns a named tracer from the provider.
func (p *Provider) Tracer(name string) trace.Tracer { return p.provider.Tracer(name) }

// Shutdown flushes and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error { return p.shutdown(ctx) }
