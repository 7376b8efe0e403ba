package authdigest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/relychan/goutils"
	"github.com/srgoldman/auth-digest/authc/digestauth"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DigestClient sends GET requests to resources protected by the digest authentication.
// The first request is sent without credentials. A 401 response with a digest
// challenge is answered by one authenticated retry.
type DigestClient struct {
	transport    Transport
	credential   digestauth.Credential
	counter      digestauth.NonceCounter
	maxRetries   int
	logger       *slog.Logger
	tracer       trace.Tracer
	retryCounter metric.Int64Counter

	highCardinalityPath bool
}

// NewDigestClient creates a DigestClient from a transport and a credential.
func NewDigestClient(
	transport Transport,
	credential digestauth.Credential,
	options ...Option,
) (*DigestClient, error) {
	if transport == nil {
		return nil, errTransportRequired
	}

	opts := newClientOptions(options...)

	err := (&DigestRetryConfig{MaxRetries: &opts.MaxRetries}).Validate()
	if err != nil {
		return nil, err
	}

	if opts.NonceCounter == nil {
		opts.NonceCounter = digestauth.DefaultNonceCounter()
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}

	meter := opts.Meter
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	retryCounter, err := meter.Int64Counter(
		"digest.client.retries",
		metric.WithDescription("Number of requests reissued with a digest Authorization header."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &DigestClient{
		transport:    transport,
		credential:   credential,
		counter:      opts.NonceCounter,
		maxRetries:   opts.MaxRetries,
		logger:       opts.Logger,
		tracer:       tracer,
		retryCounter: retryCounter,

		highCardinalityPath: opts.TraceHighCardinalityPath,
	}, nil
}

// Close releases the resources of the transport.
func (dc *DigestClient) Close() error {
	closer, ok := dc.transport.(io.Closer)
	if !ok {
		return nil
	}

	return closer.Close()
}

// Do sends the request and blocks until the final result.
// The url is the fully qualified resource URL and the route is the path used as the digest uri.
func (dc *DigestClient) Do(ctx context.Context, url string, route string) (*Result, error) {
	return dc.run(ctx, Target{URL: url, Route: route})
}

// Go sends the request in the background. The result is delivered to the returned Future.
func (dc *DigestClient) Go(ctx context.Context, url string, route string) *Future {
	future := newFuture()

	go func() {
		result, err := dc.Do(ctx, url, route)
		future.resolve(result, err)
	}()

	return future
}

// DigestRequest represents the arguments of a digest call.
type DigestRequest struct {
	// The fully qualified resource URL.
	URL string
	// The path without the domain, used as the digest uri directive.
	Route string
	// Run the request in the background. The result is only delivered to callbacks.
	Async bool
	// Called with the response body when the call succeeds.
	OnSuccess func(body string)
	// Called with the last transport result and the error when the call fails.
	// The failure is logged instead if the callback is nil.
	OnFailure func(result *Result, err error)
}

// MakeDigestRequest sends the request, retrying once with the digest Authorization header on 401.
// In synchronous mode, the final result is also returned. In asynchronous mode,
// it returns immediately with nil values and the result is only delivered to callbacks.
// Either OnSuccess or OnFailure is called, at most once.
func (dc *DigestClient) MakeDigestRequest(ctx context.Context, req DigestRequest) (*Result, error) {
	if !req.Async {
		result, err := dc.Do(ctx, req.URL, req.Route)
		dc.complete(ctx, req, result, err)

		return result, err
	}

	future := dc.Go(ctx, req.URL, req.Route)

	go func() {
		<-future.Done()

		result, err := future.Result()
		dc.complete(ctx, req, result, err)
	}()

	return nil, nil
}

func (dc *DigestClient) complete(ctx context.Context, req DigestRequest, result *Result, err error) {
	if err == nil {
		if req.OnSuccess != nil {
			req.OnSuccess(result.String())
		}

		return
	}

	if req.OnFailure != nil {
		req.OnFailure(result, err)

		return
	}

	attrs := []slog.Attr{
		slog.String("url", req.URL),
		slog.String("error", err.Error()),
	}

	if result != nil {
		attrs = append(attrs, slog.Int("status_code", result.StatusCode))
	}

	dc.logger.LogAttrs(ctx, slog.LevelError, "digest request failed", attrs...)
}

func (dc *DigestClient) run(ctx context.Context, target Target) (*Result, error) {
	if target.URL == "" {
		return nil, errURLRequired
	}

	if _, err := goutils.ParseRelativeOrHTTPURL(target.URL); err != nil {
		return nil, fmt.Errorf("%w: invalid url: %w", ErrTransport, err)
	}

	callID := uuid.NewString()
	logger := dc.logger.With(slog.String("call_id", callID))

	spanName := "digest"
	if dc.highCardinalityPath {
		spanName += " " + target.Route
	}

	ctx, span := dc.tracer.Start(
		ctx,
		spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("digest.call_id", callID),
			attribute.String("digest.route", target.Route),
		),
	)
	defer span.End()

	var (
		result   *Result
		finalErr error
		action   Action
	)

	state := RetryState{}
	header := http.Header{}
	attempt := 0
	phase := StateInitial

	for phase != StateDone {
		switch phase {
		case StateInitial, StateRetrying:
			attempt++

			res, err := dc.transport.Get(ctx, target.URL, header)
			if err != nil {
				logger.Debug(
					"digest request transport failure",
					slog.Int("attempt", attempt),
					slog.String("error", err.Error()),
				)

				result, finalErr = nil, err
				phase = StateDone

				continue
			}

			if res == nil {
				result, finalErr = nil, fmt.Errorf("%w: %w", ErrTransport, errNilTransportResponse)
				phase = StateDone

				continue
			}

			result = res
			phase = StateAwaitingResponse
		case StateAwaitingResponse:
			action = NextAction(result.StatusCode, result.Header, target, state, dc.maxRetries)

			switch action.Kind {
			case ActionSucceed:
				phase = StateDone
			case ActionRetry:
				authorization, err := digestauth.NewDigestContext(action.Challenge, action.Target.Route, dc.counter).
					Authorization(dc.credential)
				if err != nil {
					finalErr = newStatusError(result, attempt, err)
					phase = StateDone

					continue
				}

				logAttrs := []any{
					slog.Int("attempt", attempt),
					slog.String("url", action.Target.URL),
					slog.Any("directives", action.Challenge.Keys()),
				}

				if state.PriorChallenge != nil {
					logAttrs = append(
						logAttrs,
						slog.Bool("nonce_changed", nonceChanged(state.PriorChallenge, action.Challenge)),
					)
				}

				logger.Debug("received digest challenge, retrying", logAttrs...)

				dc.retryCounter.Add(ctx, 1)

				state = RetryState{
					Attempts:       state.Attempts + 1,
					PriorChallenge: action.Challenge,
				}
				target = action.Target
				header = http.Header{}
				header.Set("Authorization", authorization)
				phase = StateRetrying
			default:
				finalErr = newStatusError(result, attempt, action.Err)
				phase = StateDone
			}
		}
	}

	span.SetAttributes(attribute.Int("digest.attempts", attempt))

	if finalErr != nil {
		span.SetStatus(codes.Error, finalErr.Error())
		span.RecordError(finalErr)

		return result, finalErr
	}

	span.SetStatus(codes.Ok, "")

	return result, nil
}

// nonceChanged reports whether the server issued a fresh nonce since the previous challenge.
func nonceChanged(prior, next *digestauth.Challenge) bool {
	return prior.Unquoted(digestauth.DirectiveNonce) != next.Unquoted(digestauth.DirectiveNonce)
}

func newStatusError(result *Result, attempt int, err error) error {
	return &StatusError{
		StatusCode: result.StatusCode,
		Status:     result.Status,
		Attempt:    attempt,
		Err:        err,
	}
}

// Future is the pending result of a request running in the background.
type Future struct {
	done   chan struct{}
	result *Result
	err    error
}

func newFuture() *Future {
	return &Future{
		done: make(chan struct{}),
	}
}

func (f *Future) resolve(result *Result, err error) {
	f.result = result
	f.err = err
	close(f.done)
}

// Done returns a channel that is closed when the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the result. It must be called after Done is closed.
func (f *Future) Result() (*Result, error) {
	return f.result, f.err
}

// Wait blocks until the result is available or the context is done.
func (f *Future) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
