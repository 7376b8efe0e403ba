package authscheme

import (
	"errors"
	"testing"
)

func TestParseHTTPClientAuthType(t *testing.T) {
	result, err := ParseHTTPClientAuthType("digest")
	if err != nil {
		t.Fatalf("expected no error, got: %s", err)
	}

	if result != DigestAuthScheme {
		t.Errorf("expected %s, got: %s", DigestAuthScheme, result)
	}

	for _, value := range []string{"", "basic", "Digest", "oauth2"} {
		_, err := ParseHTTPClientAuthType(value)
		if err == nil {
			t.Errorf("expected error for auth type %q, got nil", value)
		}
	}
}

func TestSecuritySchemeErrors(t *testing.T) {
	err := NewRequiredSecurityFieldError(DigestAuthScheme, "username")
	if !errors.Is(err, ErrRequiredSecurityField) {
		t.Errorf("expected ErrRequiredSecurityField, got: %s", err)
	}

	expectedMessage := "required field username for the digest client auth scheme"
	if err.Error() != expectedMessage {
		t.Errorf("expected %q, got: %q", expectedMessage, err.Error())
	}

	err = NewUnmatchedSecuritySchemeError(DigestAuthScheme, "basic")
	if !errors.Is(err, ErrUnmatchedSecurityScheme) {
		t.Errorf("expected ErrUnmatchedSecurityScheme, got: %s", err)
	}
}
