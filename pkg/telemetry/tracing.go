// Package telemetry owns the process tracer provider.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/user/hostcomply/pkg/version"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// InstrumentationName names the tracer every hostcomply span is started on.
const InstrumentationName = "github.com/user/hostcomply"

// ExporterEnv is the standard OpenTelemetry variable consulted when no
// trace output is configured. "console" and "stdout" write spans to stderr.
const ExporterEnv = "OTEL_TRACES_EXPORTER"

// Provider is an installed tracer provider and the output it writes to.
type Provider struct {
	provider trace.TracerProvider
	sdk      *sdktrace.TracerProvider
	out      io.Closer
}

// Setup builds a provider for output and installs it as the global provider.
// output is a file path, "-" for stderr, or "none". An empty output falls
// back to OTEL_TRACES_EXPORTER and is disabled when that is unset.
func Setup(output string) (*Provider, error) {
	p, err := New(output)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(p.provider)
	return p, nil
}

// New builds a provider without installing it.
func New(output string, opts ...sdktrace.TracerProviderOption) (*Provider, error) {
	if output == "" {
		switch env := strings.ToLower(os.Getenv(ExporterEnv)); env {
		case "", "none":
			output = "none"
		case "console", "stdout":
			output = "-"
		default:
			return nil, fmt.Errorf("unsupported %s value '%s'", ExporterEnv, env)
		}
	}
	if output == "none" {
		return &Provider{provider: noop.NewTracerProvider()}, nil
	}

	var w io.Writer = os.Stderr
	var closer io.Closer
	if output != "-" {
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace output: %w", err)
		}
		w, closer = f, f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	opts = append([]sdktrace.TracerProviderOption{
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "hostcomply"),
			attribute.String("service.version", version.Version),
		)),
	}, opts...)
	sdk := sdktrace.NewTracerProvider(opts...)
	return &Provider{provider: sdk, sdk: sdk, out: closer}, nil
}

// Tracer returns the hostcomply tracer of this provider.
func (p *Provider) Tracer() trace.Tracer {
	return p.provider.Tracer(InstrumentationName)
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p.sdk != nil
}

// Shutdown flushes pending spans and closes the output.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.sdk == nil {
		return nil
	}
	err := p.sdk.Shutdown(ctx)
	if p.out != nil {
		if cerr := p.out.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
