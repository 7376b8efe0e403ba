package digestauth

import (
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"strings"
)

// HashMethod is the method token of HA2. It is always GET, whatever the verb
// of the request is. Servers have been tested against this exact value.
const HashMethod = "GET"

// ComputeResponse computes the digest response of the qop=auth variant with MD5:
//
//	HA1 = MD5(username:realm:password)
//	HA2 = MD5(GET:uri)
//	response = MD5(HA1:nonce:nc:cnonce:qop:HA2)
//
// The uri is the request path exactly as supplied by the caller.
func ComputeResponse(
	challenge *Challenge,
	uri string,
	nonceCount string,
	clientNonce string,
	username string,
	password string,
) (string, error) {
	if challenge == nil {
		return "", ErrMalformedChallenge
	}

	err := challenge.Require(DirectiveRealm, DirectiveNonce, DirectiveQop)
	if err != nil {
		return "", err
	}

	ha1 := md5Hex(username, challenge.Unquoted(DirectiveRealm), password)
	ha2 := md5Hex(HashMethod, uri)

	return md5Hex(
		ha1,
		challenge.Unquoted(DirectiveNonce),
		nonceCount,
		clientNonce,
		challenge.Unquoted(DirectiveQop),
		ha2,
	), nil
}

// RenderAuthorizationHeader builds the value of the Authorization header.
// The username, uri, response and cnonce are always quoted. The realm and
// nonce keep the quoting of the challenge while qop is always unquoted.
func RenderAuthorizationHeader(
	username string,
	uri string,
	challenge *Challenge,
	nonceCount string,
	clientNonce string,
	response string,
) string {
	realm, _ := challenge.Get(DirectiveRealm)
	nonce, _ := challenge.Get(DirectiveNonce)

	var sb strings.Builder

	sb.WriteString(SchemeName)
	sb.WriteString(` username="`)
	sb.WriteString(username)
	sb.WriteString(`", realm=`)
	sb.WriteString(realm)
	sb.WriteString(`, nonce=`)
	sb.WriteString(nonce)
	sb.WriteString(`, uri="`)
	sb.WriteString(uri)
	sb.WriteString(`", response="`)
	sb.WriteString(response)
	sb.WriteString(`", qop=`)
	sb.WriteString(challenge.Unquoted(DirectiveQop))
	sb.WriteString(`, nc=`)
	sb.WriteString(nonceCount)
	sb.WriteString(`, cnonce="`)
	sb.WriteString(clientNonce)
	sb.WriteString(`"`)

	return sb.String()
}

// DigestContext is the state of one answer to a challenge.
// It is created for a single retry attempt and must not be reused.
type DigestContext struct {
	ClientNonce string
	NonceCount  string
	Challenge   *Challenge
	URI         string
}

// NewDigestContext creates a DigestContext with a fresh client nonce and the next nonce count.
func NewDigestContext(challenge *Challenge, uri string, counter NonceCounter) *DigestContext {
	if counter == nil {
		counter = DefaultNonceCounter()
	}

	return &DigestContext{
		ClientNonce: GenerateClientNonce(ClientNonceLength),
		NonceCount:  counter.Next(),
		Challenge:   challenge,
		URI:         uri,
	}
}

// Authorization computes the response and renders the Authorization header value.
func (dc *DigestContext) Authorization(credential Credential) (string, error) {
	response, err := ComputeResponse(
		dc.Challenge,
		dc.URI,
		dc.NonceCount,
		dc.ClientNonce,
		credential.Username,
		credential.Password,
	)
	if err != nil {
		return "", err
	}

	return RenderAuthorizationHeader(
		credential.Username,
		dc.URI,
		dc.Challenge,
		dc.NonceCount,
		dc.ClientNonce,
		response,
	), nil
}

func md5Hex(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, ":"))) //nolint:gosec

	return hex.EncodeToString(sum[:])
}
