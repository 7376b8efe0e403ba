package authdigest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/semconv/v1.37.0/httpconv"
	"go.opentelemetry.io/otel/trace"
	"resty.dev/v3"
)

const instrumentationName = "github.com/srgoldman/auth-digest"

// clientMetrics holds the instruments recorded for every round trip of the resty client.
type clientMetrics struct {
	activeRequests     httpconv.ClientActiveRequests
	connectionDuration httpconv.ClientConnectionDuration
	requestBodySize    httpconv.ClientRequestBodySize
	requestDuration    httpconv.ClientRequestDuration
	responseBodySize   httpconv.ClientResponseBodySize

	idleConnectionDuration metric.Float64Histogram
	dnsLookupDuration      metric.Float64Histogram
	serverDuration         metric.Float64Histogram
	responseDuration       metric.Float64Histogram
	tcpConnectionDuration  metric.Float64Histogram
	tlsHandshakeDuration   metric.Float64Histogram
}

func newClientMetrics(meter metric.Meter) (*clientMetrics, error) {
	var (
		result clientMetrics
		err    error
	)

	result.activeRequests, err = httpconv.NewClientActiveRequests(meter)
	if err != nil {
		return nil, err
	}

	result.connectionDuration, err = httpconv.NewClientConnectionDuration(meter)
	if err != nil {
		return nil, err
	}

	result.requestBodySize, err = httpconv.NewClientRequestBodySize(meter)
	if err != nil {
		return nil, err
	}

	result.requestDuration, err = httpconv.NewClientRequestDuration(meter)
	if err != nil {
		return nil, err
	}

	result.responseBodySize, err = httpconv.NewClientResponseBodySize(meter)
	if err != nil {
		return nil, err
	}

	histograms := []struct {
		target      *metric.Float64Histogram
		name        string
		description string
	}{
		{
			target:      &result.idleConnectionDuration,
			name:        "http.client.idle_connection.duration",
			description: "The duration of how long the connection was previously idle.",
		},
		{
			target:      &result.dnsLookupDuration,
			name:        "http.client.dns_lookup.duration",
			description: "The duration of the transport took to perform DNS lookup.",
		},
		{
			target:      &result.serverDuration,
			name:        "http.client.server.duration",
			description: "The duration of the server for responding to the first byte.",
		},
		{
			target:      &result.responseDuration,
			name:        "http.client.response.duration",
			description: "The duration since the first response byte from the server to request completion.",
		},
		{
			target:      &result.tcpConnectionDuration,
			name:        "http.client.tcp_connection.duration",
			description: "The duration of the TCP connection establishment.",
		},
		{
			target:      &result.tlsHandshakeDuration,
			name:        "http.client.tls_handshake.duration",
			description: "The duration of the TLS handshake.",
		},
	}

	for _, histogram := range histograms {
		*histogram.target, err = meter.Float64Histogram(
			histogram.name,
			metric.WithDescription(histogram.description),
			metric.WithUnit("s"),
		)
		if err != nil {
			return nil, err
		}
	}

	return &result, nil
}

func addTelemetryMiddlewares(c *resty.Client, opts *clientOptions) error {
	if opts.Tracer == nil && opts.Meter == nil {
		return nil
	}

	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(instrumentationName)
	}

	if opts.Meter == nil {
		opts.Meter = otel.Meter(instrumentationName)
	}

	metrics, err := newClientMetrics(opts.Meter)
	if err != nil {
		return err
	}

	c.AddRequestMiddleware(createTelemetryRequestMiddleware(opts, metrics))
	c.AddResponseMiddleware(createTelemetryResponseMiddleware(opts, metrics))

	return nil
}

func createTelemetryRequestMiddleware(
	opts *clientOptions,
	metrics *clientMetrics,
) resty.RequestMiddleware {
	return func(client *resty.Client, req *resty.Request) error {
		spanName := req.Method

		reqURL, err := url.Parse(req.URL)
		if err != nil {
			client.Logger().
				Warnf("", fmt.Sprintf("failed to parse url %s: %s", req.URL, err.Error()))

			reqURL = &url.URL{}
		} else if opts.TraceHighCardinalityPath {
			spanName += " " + reqURL.Path
		}

		ctx, span := opts.Tracer.Start(
			req.Context(),
			spanName,
			trace.WithSpanKind(trace.SpanKindClient),
		)

		hostname, port, err := ParseHostNameAndPortFromURL(reqURL)
		if err != nil {
			client.Logger().
				Warnf("", fmt.Sprintf("failed to parse hostname and port from host %s: %s", reqURL.Host, err.Error()))
		}

		commonAttrs := []attribute.KeyValue{
			semconv.ServerAddress(hostname),
			semconv.ServerPort(port),
			httpRequestMethodAttr(req.Method),
		}

		span.SetAttributes(commonAttrs...)
		span.SetAttributes(
			semconv.URLFull(req.URL),
			semconv.NetworkProtocolName("http"),
		)

		if req.Timeout > 0 {
			span.SetAttributes(attribute.String("http.request.timeout", req.Timeout.String()))
		}

		SetSpanHeaderAttributes(span, "http.request.header.", req.Header)

		metricAttrs := commonAttrs
		if opts.MetricHighCardinalityPath {
			metricAttrs = append(metricAttrs, semconv.URLPath(reqURL.Path))
		}

		metrics.activeRequests.Add(ctx, 1, hostname, port, metricAttrs...)

		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
		req.SetContext(ctx)

		return nil
	}
}

func createTelemetryResponseMiddleware(
	opts *clientOptions,
	metrics *clientMetrics,
) resty.ResponseMiddleware {
	return func(client *resty.Client, resp *resty.Response) error {
		ctx := resp.Request.Context()
		span := trace.SpanFromContext(ctx)
		rawURL := resp.Request.RawRequest.URL

		hostname, port, err := ParseHostNameAndPortFromURL(rawURL)
		if err != nil {
			client.Logger().
				Warnf("", fmt.Sprintf("failed to parse hostname and port from host %s: %s", rawURL.Host, err.Error()))
		}

		commonAttrs := []attribute.KeyValue{
			semconv.ServerAddress(hostname),
			semconv.ServerPort(port),
			semconv.URLScheme(rawURL.Scheme),
		}

		metricAttrs := append([]attribute.KeyValue{}, commonAttrs...)
		metricAttrs = append(metricAttrs, httpRequestMethodAttr(resp.Request.Method))

		if opts.MetricHighCardinalityPath {
			metricAttrs = append(metricAttrs, semconv.URLPath(rawURL.Path))
		}

		metrics.activeRequests.Add(ctx, -1, hostname, port, metricAttrs...)

		if !span.IsRecording() {
			return nil
		}

		statusCode := resp.StatusCode()
		statusCodeAttr := semconv.HTTPResponseStatusCode(statusCode)
		protocolVersionAttr := semconv.NetworkProtocolVersion(
			fmt.Sprintf("%d.%d", resp.RawResponse.ProtoMajor, resp.RawResponse.ProtoMinor),
		)

		metricAttrs = append(
			metricAttrs,
			statusCodeAttr,
			protocolVersionAttr,
			semconv.NetworkProtocolName("http"),
		)

		span.SetAttributes(statusCodeAttr, protocolVersionAttr)

		if opts.CustomAttributesFunc != nil {
			customAttrs := opts.CustomAttributesFunc(resp)
			metricAttrs = append(metricAttrs, customAttrs...)
			span.SetAttributes(customAttrs...)
		}

		SetSpanHeaderAttributes(span, "http.response.header.", resp.Header())

		requestMethod := httpconv.RequestMethodAttr(resp.Request.Method)

		if contentLength := resp.Request.RawRequest.ContentLength; contentLength > 0 {
			metrics.requestBodySize.Record(ctx, contentLength, requestMethod, hostname, port, metricAttrs...)
			span.SetAttributes(semconv.HTTPRequestBodySize(int(contentLength)))
		}

		responseSize := resp.RawResponse.ContentLength
		if resp.IsRead {
			responseSize = resp.Size()
		}

		metrics.responseBodySize.Record(ctx, responseSize, requestMethod, hostname, port, metricAttrs...)
		span.SetAttributes(semconv.HTTPResponseBodySize(int(responseSize)))

		if resp.Request.IsTrace {
			traceInfo := resp.Request.TraceInfo()

			metrics.requestDuration.Record(
				ctx,
				traceInfo.TotalTime.Seconds(),
				requestMethod,
				hostname,
				port,
				metricAttrs...,
			)
			metrics.connectionDuration.Record(ctx, traceInfo.ConnTime.Seconds(), hostname, port, commonAttrs...)
			metrics.recordTraceInfo(ctx, traceInfo, commonAttrs, metricAttrs)
			setSpanTraceInfo(client, span, traceInfo)
		}

		switch {
		case statusCode == http.StatusUnauthorized && hasDigestChallenge(resp.Header()):
			// the challenge round trip of the digest handshake.
			span.SetAttributes(attribute.Bool("http.auth.digest_challenge", true))
		case statusCode >= 400:
			span.SetStatus(codes.Error, http.StatusText(statusCode))
			span.SetAttributes(attribute.String("http.response.body", resp.String()))
		default:
			span.SetStatus(codes.Ok, "")
		}

		span.End()

		return nil
	}
}

func (cm *clientMetrics) recordTraceInfo(
	ctx context.Context,
	traceInfo resty.TraceInfo,
	commonAttrs []attribute.KeyValue,
	metricAttrs []attribute.KeyValue,
) {
	commonAttrsSet := metric.WithAttributeSet(attribute.NewSet(commonAttrs...))
	metricAttrsSet := metric.WithAttributeSet(attribute.NewSet(metricAttrs...))

	cm.dnsLookupDuration.Record(ctx, traceInfo.DNSLookup.Seconds(), commonAttrsSet)
	cm.tcpConnectionDuration.Record(ctx, traceInfo.TCPConnTime.Seconds(), commonAttrsSet)
	cm.tlsHandshakeDuration.Record(ctx, traceInfo.TLSHandshake.Seconds(), commonAttrsSet)
	cm.serverDuration.Record(ctx, traceInfo.ServerTime.Seconds(), metricAttrsSet)
	cm.responseDuration.Record(ctx, traceInfo.ResponseTime.Seconds(), metricAttrsSet)

	if traceInfo.IsConnWasIdle {
		cm.idleConnectionDuration.Record(ctx, traceInfo.ConnIdleTime.Seconds(), commonAttrsSet)
	}
}

func setSpanTraceInfo(client *resty.Client, span trace.Span, traceInfo resty.TraceInfo) {
	peerAddress, peerPort, err := splitHostPort(traceInfo.RemoteAddr)
	if err != nil {
		client.Logger().
			Warnf("", fmt.Sprintf("failed to split hostname and port from remote address %s: %s", traceInfo.RemoteAddr, err.Error()))
	}

	if peerAddress != "" {
		span.SetAttributes(semconv.NetworkPeerAddress(peerAddress))

		if peerPort > 0 {
			span.SetAttributes(semconv.NetworkPeerPort(peerPort))
		}
	}

	if traceInfo.IsConnWasIdle {
		span.SetAttributes(
			attribute.Int64("http.stats.connection_idle_time_ms", traceInfo.ConnIdleTime.Milliseconds()),
		)
	}

	span.SetAttributes(
		semconv.HTTPRequestResendCount(traceInfo.RequestAttempt),
		attribute.Int64("http.stats.connection_time_ms", traceInfo.ConnTime.Milliseconds()),
		attribute.Int64("http.stats.dns_lookup_time_ms", traceInfo.DNSLookup.Milliseconds()),
		attribute.Int64("http.stats.response_time_ms", traceInfo.ResponseTime.Milliseconds()),
		attribute.Int64("http.stats.server_time_ms", traceInfo.ServerTime.Milliseconds()),
		attribute.Int64("http.stats.tcp_connection_time_ms", traceInfo.TCPConnTime.Milliseconds()),
		attribute.Int64("http.stats.tls_handshake_time_ms", traceInfo.TLSHandshake.Milliseconds()),
		attribute.Bool("http.stats.is_connection_reused", traceInfo.IsConnReused),
		attribute.Bool("http.stats.is_connection_was_idle", traceInfo.IsConnWasIdle),
	)
}

func httpRequestMethodAttr(method string) attribute.KeyValue {
	return attribute.String("http.request.method", method)
}
