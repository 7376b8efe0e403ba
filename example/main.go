package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/hasura/goenvconf"
	"github.com/prometheus/common/model"
	authdigest "github.com/srgoldman/auth-digest"
	"github.com/srgoldman/auth-digest/authc"
	"github.com/srgoldman/auth-digest/authc/digestauth"
	"go.opentelemetry.io/contrib/propagators/b3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

var tracer = otel.Tracer("authdigest-example")

// Fetches a resource protected by the digest authentication.
// The endpoint and credentials are read from DIGEST_URL, DIGEST_ROUTE, DIGEST_USERNAME and DIGEST_PASSWORD.
func main() {
	traceProvider := setupTraceProvider(context.Background())
	defer func() {
		_ = traceProvider.Shutdown(context.Background())
	}()

	otel.SetTracerProvider(traceProvider)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		// Level: slog.LevelDebug,
	}))

	timeout := model.Duration(10 * time.Second)

	client, err := authdigest.NewDigestClientFromConfig(
		authdigest.RestyConfig{
			Timeout: &timeout,
			Authentication: authc.NewRestlyAuthConfig(digestauth.NewDigestAuthConfig(
				goenvconf.NewEnvStringVariable("DIGEST_USERNAME"),
				goenvconf.NewEnvStringVariable("DIGEST_PASSWORD"),
			)),
		},
		authdigest.WithLogger(logger),
		authdigest.WithTracer(tracer),
		authdigest.WithMeter(otel.Meter("authdigest-example")),
	)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = client.Close()
	}()

	ctx, span := tracer.Start(context.Background(), "fetchResource")
	defer span.End()

	done := make(chan struct{})

	_, _ = client.MakeDigestRequest(ctx, authdigest.DigestRequest{
		URL:   os.Getenv("DIGEST_URL"),
		Route: os.Getenv("DIGEST_ROUTE"),
		Async: true,
		OnSuccess: func(body string) {
			defer close(done)

			logger.Info("fetched resource", slog.Int("size", len(body)))
		},
		OnFailure: func(_ *authdigest.Result, err error) {
			defer close(done)

			logger.Error("failed to fetch resource", slog.String("error", err.Error()))
		},
	})

	<-done
}

func setupTraceProvider(ctx context.Context) *trace.TracerProvider {
	propagator := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		b3.New(b3.WithInjectEncoding(b3.B3MultipleHeader)),
	)

	otel.SetTextMapPropagator(propagator)

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint("localhost:4317"),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		panic(err)
	}

	resources := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName("authdigest-example"),
	)

	return trace.NewTracerProvider(trace.WithResource(resources), trace.WithBatcher(traceExporter))
}
