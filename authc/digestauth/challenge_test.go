package digestauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChallenge(t *testing.T) {
	challenge, err := ParseChallenge(
		`Digest realm="testrealm@host.com", qop="auth,auth-int", nonce="dcd98b7102dd2f0e8b11d0f600bfb0c093", opaque="5ccc069c403ebaf9f0171e9517f40e41"`,
	)
	require.NoError(t, err)

	assert.Equal(t, "Digest", challenge.Scheme())
	assert.Equal(t, []string{"realm", "qop", "nonce", "opaque"}, challenge.Keys())

	realm, ok := challenge.Get(DirectiveRealm)
	assert.True(t, ok)
	assert.Equal(t, `"testrealm@host.com"`, realm)
	assert.Equal(t, "testrealm@host.com", challenge.Unquoted(DirectiveRealm))

	// the comma inside the quoted qop value splits the directive.
	qop, ok := challenge.Get(DirectiveQop)
	assert.True(t, ok)
	assert.Equal(t, `"auth`, qop)
	assert.Equal(t, "auth", challenge.Unquoted(DirectiveQop))

	opaque, _ := challenge.Get("opaque")
	assert.Equal(t, `"5ccc069c403ebaf9f0171e9517f40e41"`, opaque)
}

func TestParseChallengeKeepsQuoting(t *testing.T) {
	challenge, err := ParseChallenge(`Digest realm=test, nonce="abc123", qop=auth, algorithm=MD5`)
	require.NoError(t, err)

	for key, expected := range map[string]string{
		DirectiveRealm: "test",
		DirectiveNonce: `"abc123"`,
		DirectiveQop:   "auth",
		"algorithm":    "MD5",
	} {
		value, ok := challenge.Get(key)
		assert.True(t, ok, key)
		assert.Equal(t, expected, value, key)
	}

	_, ok := challenge.Get("stale")
	assert.False(t, ok)
	assert.Equal(t, 4, challenge.Len())
	assert.Equal(t, []string{"realm", "nonce", "qop", "algorithm"}, challenge.Keys())
}

func TestParseChallengeSplitsOnFirstEqualSign(t *testing.T) {
	challenge, err := ParseChallenge(`Digest realm="a=b", nonce="bm9uY2U=", qop="auth"`)
	require.NoError(t, err)

	assert.Equal(t, "a=b", challenge.Unquoted(DirectiveRealm))
	assert.Equal(t, "bm9uY2U=", challenge.Unquoted(DirectiveNonce))
}

func TestParseChallengeErrors(t *testing.T) {
	testCases := []struct {
		Name      string
		Header    string
		Directive bool
	}{
		{Name: "empty", Header: ""},
		{Name: "blank", Header: "   "},
		{Name: "no_scheme", Header: `realm="test"`},
		{Name: "basic", Header: `Basic realm="test", nonce="abc"`},
		{Name: "no_directive", Header: "Digest foo, bar"},
		{Name: "missing_nonce", Header: `Digest realm="test", qop="auth"`, Directive: true},
		{Name: "missing_realm", Header: `Digest nonce="abc", qop="auth"`, Directive: true},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			challenge, err := ParseChallenge(tc.Header)
			assert.Nil(t, challenge)
			require.ErrorIs(t, err, ErrMalformedChallenge)

			if tc.Directive {
				assert.ErrorIs(t, err, ErrMissingDirective)
			} else {
				assert.NotErrorIs(t, err, ErrMissingDirective)
			}
		})
	}
}

func TestParseChallengeSchemeIsCaseInsensitive(t *testing.T) {
	challenge, err := ParseChallenge(`digest realm="test", nonce="abc"`)
	require.NoError(t, err)
	assert.Equal(t, "digest", challenge.Scheme())
}

func TestUnquote(t *testing.T) {
	assert.Equal(t, "abc", Unquote(`"abc"`))
	assert.Equal(t, "abc", Unquote("abc"))
	assert.Equal(t, "abc", Unquote(Unquote(`"abc"`)))
	assert.Equal(t, "abc", Unquote(`""abc"""`))
	assert.Equal(t, `a"b`, Unquote(`"a"b"`))
	assert.Empty(t, Unquote(`""`))
	assert.Empty(t, Unquote(""))
}
