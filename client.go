// Package authdigest sends HTTP GET requests to resources protected by the digest access
// authentication, on top of a configurable [resty] client.
//
// [resty]: https://resty.dev
package authdigest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/srgoldman/auth-digest/authc/digestauth"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"resty.dev/v3"
)

// NewClientFromConfig creates a resty client with configuration.
func NewClientFromConfig(config RestyConfig, options ...Option) (*resty.Client, error) {
	opts := newClientOptions(options...)

	transport, err := config.ToTransport()
	if err != nil {
		return nil, err
	}

	isDebug := opts.Logger.Enabled(context.TODO(), slog.LevelDebug)

	client := resty.New().
		SetTransport(transport).
		SetDebug(isDebug).
		SetDebugLogFormatter(nil).
		OnDebugLog(createDebugLogCallback(opts.Logger)).
		SetLogger(&slogWrapper{Logger: opts.Logger})

	err = addTelemetryMiddlewares(client, opts)
	if err != nil {
		return nil, err
	}

	if !isDebug {
		client = client.AddResponseMiddleware(createResponseLoggingMiddleware(opts.Logger))
	}

	if config.TLS != nil {
		err = addTLSCertificates(client, config.TLS)
		if err != nil {
			return nil, err
		}
	}

	if config.Timeout != nil && *config.Timeout > 0 {
		client = client.SetTimeout(time.Duration(*config.Timeout))
	}

	return addContentDecompresser(client), nil
}

// NewDigestClientFromConfig creates a DigestClient backed by a resty client.
// The authentication config must use the digest scheme.
func NewDigestClientFromConfig(config RestyConfig, options ...Option) (*DigestClient, error) {
	digestConfig, ok := config.Authentication.DigestAuth()
	if !ok {
		return nil, errDigestAuthRequired
	}

	credential, err := digestauth.NewCredential(digestConfig)
	if err != nil {
		return nil, err
	}

	if config.Digest != nil {
		options = append([]Option{WithMaxRetries(config.Digest.GetMaxRetries())}, options...)
	}

	client, err := NewClientFromConfig(config, options...)
	if err != nil {
		return nil, err
	}

	result, err := NewDigestClient(NewRestyTransport(client), *credential, options...)
	if err != nil {
		return nil, errors.Join(err, client.Close())
	}

	return result, nil
}

var defaultRestyClient = sync.OnceValues(func() (*resty.Client, error) {
	return NewClientFromConfig(RestyConfig{})
})

// MakeDigestRequest sends a GET request with a default client, retrying once
// with the digest Authorization header when the server responds 401.
// Every call shares the process-wide nonce counter.
//
//   - url: the fully qualified path to the resource.
//   - route: the path without the domain, used as the digest uri.
//   - async: run the request in the background. If true, the result is only delivered to callbacks.
func MakeDigestRequest(
	ctx context.Context,
	url string,
	route string,
	async bool,
	onSuccess func(body string),
	onFailure func(result *Result, err error),
	username string,
	password string,
) (*Result, error) {
	client, err := defaultRestyClient()
	if err != nil {
		return nil, err
	}

	dc, err := NewDigestClient(NewRestyTransport(client), digestauth.Credential{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	return dc.MakeDigestRequest(ctx, DigestRequest{
		URL:       url,
		Route:     route,
		Async:     async,
		OnSuccess: onSuccess,
		OnFailure: onFailure,
	})
}

type clientOptions struct {
	Logger                    *slog.Logger
	Tracer                    trace.Tracer
	Meter                     metric.Meter
	TraceHighCardinalityPath  bool
	MetricHighCardinalityPath bool
	CustomAttributesFunc      CustomAttributesFunc
	NonceCounter              digestauth.NonceCounter
	MaxRetries                int
}

func newClientOptions(options ...Option) *clientOptions {
	opts := &clientOptions{
		Logger:     slog.Default(),
		MaxRetries: DefaultMaxRetries,
	}

	for _, option := range options {
		option(opts)
	}

	return opts
}

// CustomAttributesFunc abstracts a function to add custom attributes to spans and metrics.
type CustomAttributesFunc func(*resty.Response) []attribute.KeyValue

// Option abstracts a function to modify client options.
type Option func(*clientOptions)

// WithLogger create an option to set the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(co *clientOptions) {
		if logger != nil {
			co.Logger = logger
		}
	}
}

// WithTracer create an option to set the tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(co *clientOptions) {
		co.Tracer = tracer
	}
}

// WithMeter create an option to set the meter for metrics.
func WithMeter(meter metric.Meter) Option {
	return func(co *clientOptions) {
		co.Meter = meter
	}
}

// WithTraceHighCardinalityPath enables high cardinality path on traces.
func WithTraceHighCardinalityPath(enabled bool) Option {
	return func(co *clientOptions) {
		co.TraceHighCardinalityPath = enabled
	}
}

// WithMetricHighCardinalityPath enables high cardinality path on metrics.
func WithMetricHighCardinalityPath(enabled bool) Option {
	return func(co *clientOptions) {
		co.MetricHighCardinalityPath = enabled
	}
}

// WithCustomAttributesFunc set the function to add custom attributes to spans and metrics.
func WithCustomAttributesFunc(fn CustomAttributesFunc) Option {
	return func(co *clientOptions) {
		co.CustomAttributesFunc = fn
	}
}

// WithNonceCounter sets the counter of the nc directive.
// Clients share the process-wide counter by default.
func WithNonceCounter(counter digestauth.NonceCounter) Option {
	return func(co *clientOptions) {
		co.NonceCounter = counter
	}
}

// WithMaxRetries sets the number of authenticated retries after a 401 response. Defaults to 1.
func WithMaxRetries(count int) Option {
	return func(co *clientOptions) {
		co.MaxRetries = count
	}
}
