package digestauth

import (
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixed nonce counter for deterministic tests.
type fixedNonceCounter string

func (f fixedNonceCounter) Next() string {
	return string(f)
}

func rfc2617Challenge(t *testing.T) *Challenge {
	t.Helper()

	challenge, err := ParseChallenge(
		`Digest realm="testrealm@host.com", qop="auth,auth-int", nonce="dcd98b7102dd2f0e8b11d0f600bfb0c093", opaque="5ccc069c403ebaf9f0171e9517f40e41"`,
	)
	require.NoError(t, err)

	return challenge
}

func md5String(value string) string {
	sum := md5.Sum([]byte(value)) //nolint:gosec

	return hex.EncodeToString(sum[:])
}

func TestComputeResponseRFC2617(t *testing.T) {
	challenge := rfc2617Challenge(t)

	response, err := ComputeResponse(
		challenge,
		"/dir/index.html",
		"00000001",
		"0a4f113b",
		"Mufasa",
		"Circle Of Life",
	)
	require.NoError(t, err)
	assert.Equal(t, "6629fae49393a05397450978507c4ef1", response)
}

func TestComputeResponseIsDeterministic(t *testing.T) {
	challenge, err := ParseChallenge(`Digest realm="test", nonce="abc123", qop="auth"`)
	require.NoError(t, err)

	first, err := ComputeResponse(challenge, "/api/status", "00000007", "0123456789ABCDEF", "user", "pass")
	require.NoError(t, err)

	second, err := ComputeResponse(challenge, "/api/status", "00000007", "0123456789ABCDEF", "user", "pass")
	require.NoError(t, err)

	assert.Equal(t, first, second)

	ha1 := md5String("user:test:pass")
	ha2 := md5String("GET:/api/status")
	assert.Equal(t, md5String(ha1+":abc123:00000007:0123456789ABCDEF:auth:"+ha2), first)

	other, err := ComputeResponse(challenge, "/api/status", "00000008", "0123456789ABCDEF", "user", "pass")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestComputeResponseMissingDirective(t *testing.T) {
	challenge, err := ParseChallenge(`Digest realm="test", nonce="abc123"`)
	require.NoError(t, err)

	_, err = ComputeResponse(challenge, "/", "00000001", "0123456789ABCDEF", "user", "pass")
	require.ErrorIs(t, err, ErrMissingDirective)
	assert.Contains(t, err.Error(), DirectiveQop)

	_, err = ComputeResponse(nil, "/", "00000001", "0123456789ABCDEF", "user", "pass")
	assert.ErrorIs(t, err, ErrMalformedChallenge)
}

func TestRenderAuthorizationHeader(t *testing.T) {
	challenge := rfc2617Challenge(t)

	header := RenderAuthorizationHeader(
		"Mufasa",
		"/dir/index.html",
		challenge,
		"00000001",
		"0a4f113b",
		"6629fae49393a05397450978507c4ef1",
	)

	assert.Equal(
		t,
		`Digest username="Mufasa", realm="testrealm@host.com", nonce="dcd98b7102dd2f0e8b11d0f600bfb0c093", uri="/dir/index.html", response="6629fae49393a05397450978507c4ef1", qop=auth, nc=00000001, cnonce="0a4f113b"`,
		header,
	)
}

func TestRenderAuthorizationHeaderUnquotedChallenge(t *testing.T) {
	challenge, err := ParseChallenge(`Digest realm=test, nonce=abc123, qop=auth`)
	require.NoError(t, err)

	header := RenderAuthorizationHeader("user", "/a?b=c", challenge, "00000002", "ABCDEF0123456789", "deadbeef")

	assert.Equal(
		t,
		`Digest username="user", realm=test, nonce=abc123, uri="/a?b=c", response="deadbeef", qop=auth, nc=00000002, cnonce="ABCDEF0123456789"`,
		header,
	)
}

func TestDigestContextAuthorization(t *testing.T) {
	challenge, err := ParseChallenge(`Digest realm="test", nonce="abc123", qop="auth"`)
	require.NoError(t, err)

	dc := NewDigestContext(challenge, "/protected", fixedNonceCounter("00000005"))
	assert.Equal(t, "00000005", dc.NonceCount)
	assert.Regexp(t, regexp.MustCompile(`^[A-F0-9]{16}$`), dc.ClientNonce)
	assert.Equal(t, "/protected", dc.URI)

	credential := Credential{Username: "user", Password: "pass"}

	header, err := dc.Authorization(credential)
	require.NoError(t, err)

	response, err := ComputeResponse(challenge, "/protected", "00000005", dc.ClientNonce, "user", "pass")
	require.NoError(t, err)

	assert.Equal(
		t,
		`Digest username="user", realm="test", nonce="abc123", uri="/protected", response="`+response+`", qop=auth, nc=00000005, cnonce="`+dc.ClientNonce+`"`,
		header,
	)
	assert.NotContains(t, header, "pass\"")
}

func TestDigestContextDrawsFreshValues(t *testing.T) {
	challenge, err := ParseChallenge(`Digest realm="test", nonce="abc123", qop="auth"`)
	require.NoError(t, err)

	counter := NewNonceCounter()
	first := NewDigestContext(challenge, "/", counter)
	second := NewDigestContext(challenge, "/", counter)

	assert.Equal(t, "00000001", first.NonceCount)
	assert.Equal(t, "00000002", second.NonceCount)
	assert.NotEqual(t, first.ClientNonce, second.ClientNonce)
}

func TestDigestContextMissingQop(t *testing.T) {
	challenge, err := ParseChallenge(`Digest realm="test", nonce="abc123"`)
	require.NoError(t, err)

	counter := NewNonceCounter()
	dc := NewDigestContext(challenge, "/", counter)

	_, err = dc.Authorization(Credential{Username: "user", Password: "pass"})
	require.ErrorIs(t, err, ErrMissingDirective)

	// the count is never rolled back.
	assert.Equal(t, "00000002", counter.Next())
}
