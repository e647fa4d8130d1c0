// Package observability registers an OTLP trace exporter with Genkit's
// tracer provider so embedding and generation spans reach a local
// collector.
package observability

import (
	"context"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/hannadev/blogsearch/internal/log"
)

// Setup wires an OTLP HTTP exporter for the given collector endpoint.
// An empty endpoint disables tracing. Exporter construction failures also
// disable tracing rather than failing startup.
//
// The returned shutdown function flushes pending spans.
func Setup(ctx context.Context, endpoint string, logger log.Logger) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if logger == nil {
		logger = log.NewNop()
	}
	if endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("failed to create trace exporter, tracing disabled", "error", err)
		return noop, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled", "endpoint", endpoint)
	return tracing.TracerProvider().Shutdown, nil
}
