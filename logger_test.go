package authdigest

import (
	"log/slog"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseLogLevel(t *testing.T) {
	testCases := []struct {
		Name       string
		StatusCode int
		Header     http.Header
		Expected   slog.Level
	}{
		{
			Name:       "ok",
			StatusCode: http.StatusOK,
			Expected:   slog.LevelInfo,
		},
		{
			Name:       "digest_challenge",
			StatusCode: http.StatusUnauthorized,
			Header:     challengeHeader(testChallenge),
			Expected:   slog.LevelDebug,
		},
		{
			Name:       "lower_case_scheme",
			StatusCode: http.StatusUnauthorized,
			Header:     challengeHeader(`digest realm="test", nonce="abc"`),
			Expected:   slog.LevelDebug,
		},
		{
			Name:       "basic_challenge",
			StatusCode: http.StatusUnauthorized,
			Header:     challengeHeader(`Basic realm="test"`),
			Expected:   slog.LevelError,
		},
		{
			Name:       "server_error",
			StatusCode: http.StatusInternalServerError,
			Header:     challengeHeader(testChallenge),
			Expected:   slog.LevelError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			assert.Equal(t, tc.Expected, responseLogLevel(tc.StatusCode, tc.Header))
		})
	}
}

func TestNewTelemetryHeaders(t *testing.T) {
	header := http.Header{}
	header.Set("Authorization", `Digest username="u", response="6629fae49393a05397450978507c4ef1"`)
	header.Set("WWW-Authenticate", testChallenge)
	header.Set("Content-Type", "text/plain")

	result := NewTelemetryHeaders(header)
	assert.Equal(t, "text/plain", result.Get("Content-Type"))
	assert.NotContains(t, result.Get("Authorization"), "6629fae4")
	assert.NotContains(t, result.Get("WWW-Authenticate"), "abc123")

	result = NewTelemetryHeaders(header, "Content-Type", "X-Missing")
	assert.Len(t, result, 1)
	assert.Equal(t, "text/plain", result.Get("content-type"))
}

func TestMaskString(t *testing.T) {
	assert.Equal(t, "", MaskString(""))
	assert.Equal(t, "******", MaskString("secret"))
	assert.Equal(t, "ab*********", MaskString("abcdefghijk"))
	assert.Equal(t, "abcd********(20)", MaskString("abcdefghijklmnopqrst"))
	assert.True(t, IsSensitiveHeader("Authorization"))
	assert.True(t, IsSensitiveHeader("X-Api-Key"))
	assert.False(t, IsSensitiveHeader("Accept"))
}

func TestParseHostNameAndPortFromURL(t *testing.T) {
	testCases := []struct {
		URL          string
		ExpectedHost string
		ExpectedPort int
	}{
		{URL: "http://example.com/a", ExpectedHost: "example.com", ExpectedPort: 80},
		{URL: "https://example.com/a", ExpectedHost: "example.com", ExpectedPort: 443},
		{URL: "http://127.0.0.1:8080/a", ExpectedHost: "127.0.0.1", ExpectedPort: 8080},
		{URL: "https://[::1]:8443/a", ExpectedHost: "::1", ExpectedPort: 8443},
		{URL: "https://[::1]/a", ExpectedHost: "::1", ExpectedPort: 443},
	}

	for _, tc := range testCases {
		t.Run(tc.URL, func(t *testing.T) {
			endpoint, err := url.Parse(tc.URL)
			require.NoError(t, err)

			host, port, err := ParseHostNameAndPortFromURL(endpoint)
			require.NoError(t, err)
			assert.Equal(t, tc.ExpectedHost, host)
			assert.Equal(t, tc.ExpectedPort, port)
		})
	}
}
