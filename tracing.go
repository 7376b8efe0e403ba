package authdigest

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var sensitiveHeaderRegex = regexp.MustCompile(`auth|key|secret|token|cookie`)

// SetSpanHeaderAttributes sets header attributes to the otel span.
// Values of sensitive headers, such as Authorization and WWW-Authenticate, are masked.
func SetSpanHeaderAttributes(
	span trace.Span,
	prefix string,
	httpHeaders http.Header,
	allowedHeaders ...string,
) {
	headers := NewTelemetryHeaders(httpHeaders, allowedHeaders...)

	for key, values := range headers {
		span.SetAttributes(attribute.StringSlice(prefix+strings.ToLower(key), values))
	}
}

// NewTelemetryHeaders creates a new header map with sensitive values masked.
func NewTelemetryHeaders(httpHeaders http.Header, allowedHeaders ...string) http.Header {
	result := http.Header{}

	if len(allowedHeaders) > 0 {
		for _, key := range allowedHeaders {
			value := httpHeaders.Get(key)

			if value == "" {
				continue
			}

			if IsSensitiveHeader(key) {
				result.Set(strings.ToLower(key), MaskString(value))
			} else {
				result.Set(strings.ToLower(key), value)
			}
		}

		return result
	}

	for key, headers := range httpHeaders {
		if len(headers) == 0 {
			continue
		}

		values := headers
		if IsSensitiveHeader(key) {
			values = make([]string, len(headers))
			for i, header := range headers {
				values[i] = MaskString(header)
			}
		}

		result[key] = values
	}

	return result
}

// IsSensitiveHeader checks if the header name may carry credentials.
func IsSensitiveHeader(name string) bool {
	return sensitiveHeaderRegex.MatchString(strings.ToLower(name))
}

// MaskString keeps the leading characters of a secret value and masks the rest.
// Values of up to 8 characters are masked entirely.
func MaskString(input string) string {
	switch inputLength := len(input); {
	case inputLength <= 8:
		return strings.Repeat("*", inputLength)
	case inputLength < 16:
		return input[:2] + strings.Repeat("*", inputLength-2)
	default:
		return input[:4] + strings.Repeat("*", 8) + "(" + strconv.Itoa(inputLength) + ")"
	}
}
