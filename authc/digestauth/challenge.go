package digestauth

import (
	"errors"
	"fmt"
	"strings"
)

// SchemeName is the authentication scheme token of the digest challenge.
const SchemeName = "Digest"

// Names of the challenge directives used to compute the response.
const (
	DirectiveRealm = "realm"
	DirectiveNonce = "nonce"
	DirectiveQop   = "qop"
)

var (
	// ErrMalformedChallenge occurs when the WWW-Authenticate header is missing, empty or can not be parsed.
	ErrMalformedChallenge = errors.New("malformed digest challenge")
	// ErrMissingDirective occurs when a directive required to compute the response is absent.
	ErrMissingDirective = errors.New("missing digest directive")
)

// Challenge holds the directives of a WWW-Authenticate header for the digest scheme.
// Values are stored exactly as received, surrounding quotes included.
type Challenge struct {
	scheme     string
	keys       []string
	directives map[string]string
}

// ParseChallenge parses the raw value of a WWW-Authenticate header.
// The header must start with the Digest scheme token followed by a space and
// a comma-separated list of key=value directives.
func ParseChallenge(headerValue string) (*Challenge, error) {
	headerValue = strings.TrimSpace(headerValue)
	if headerValue == "" {
		return nil, fmt.Errorf("%w: header is empty", ErrMalformedChallenge)
	}

	scheme, rawDirectives, ok := strings.Cut(headerValue, " ")
	if !ok {
		return nil, fmt.Errorf("%w: scheme token not found", ErrMalformedChallenge)
	}

	if !strings.EqualFold(scheme, SchemeName) {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrMalformedChallenge, scheme)
	}

	challenge := &Challenge{
		scheme:     scheme,
		directives: map[string]string{},
	}

	for segment := range strings.SplitSeq(rawDirectives, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(segment), "=")
		if !ok || key == "" {
			continue
		}

		challenge.set(key, value)
	}

	if challenge.Len() == 0 {
		return nil, fmt.Errorf("%w: no directive found", ErrMalformedChallenge)
	}

	for _, key := range []string{DirectiveRealm, DirectiveNonce} {
		if _, ok := challenge.Get(key); !ok {
			return nil, fmt.Errorf("%w: %w", ErrMalformedChallenge, newMissingDirectiveError(key))
		}
	}

	return challenge, nil
}

// Scheme returns the scheme token as received.
func (c *Challenge) Scheme() string {
	return c.scheme
}

// Get returns the raw value of the directive.
func (c *Challenge) Get(key string) (string, bool) {
	if c == nil {
		return "", false
	}

	value, ok := c.directives[key]

	return value, ok
}

// Unquoted returns the value of the directive with surrounding quotes stripped.
func (c *Challenge) Unquoted(key string) string {
	value, _ := c.Get(key)

	return Unquote(value)
}

// Keys returns directive names in the order they were received.
func (c *Challenge) Keys() []string {
	return c.keys
}

// Len returns the number of directives.
func (c *Challenge) Len() int {
	return len(c.directives)
}

// Require checks that all given directives exist.
func (c *Challenge) Require(keys ...string) error {
	var errs []error

	for _, key := range keys {
		if _, ok := c.Get(key); !ok {
			errs = append(errs, newMissingDirectiveError(key))
		}
	}

	return errors.Join(errs...)
}

// the last value wins for duplicated keys.
func (c *Challenge) set(key, value string) {
	if _, ok := c.directives[key]; !ok {
		c.keys = append(c.keys, key)
	}

	c.directives[key] = value
}

// Unquote strips all leading and trailing double-quote characters.
func Unquote(value string) string {
	return strings.Trim(value, `"`)
}

func newMissingDirectiveError(key string) error {
	return fmt.Errorf("%w: %s", ErrMissingDirective, key)
}
