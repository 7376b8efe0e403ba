package authscheme

import (
	"errors"
	"fmt"
)

var (
	// ErrUnmatchedSecurityScheme occurs when the type of a config does not match its definition.
	ErrUnmatchedSecurityScheme = errors.New("client auth type does not match")
	// ErrRequiredSecurityField occurs when a required field of the security scheme is empty.
	ErrRequiredSecurityField = errors.New("required field")
)

// NewRequiredSecurityFieldError creates an error for required field in the security scheme config.
func NewRequiredSecurityFieldError(scheme HTTPClientAuthType, name string) error {
	return fmt.Errorf("%w %s for the %s client auth scheme", ErrRequiredSecurityField, name, scheme)
}

// NewUnmatchedSecuritySchemeError creates an error for unexpected security scheme type.
func NewUnmatchedSecuritySchemeError(expected HTTPClientAuthType, got HTTPClientAuthType) error {
	return fmt.Errorf("%w, expected `%s`, got `%s`", ErrUnmatchedSecurityScheme, expected, got)
}
