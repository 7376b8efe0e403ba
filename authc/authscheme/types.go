// Package authscheme defines types and interfaces for security schemes.
package authscheme

import (
	"fmt"
	"slices"
)

// HTTPClientAuthDefinition abstracts an interface of the HTTP client authentication config.
type HTTPClientAuthDefinition interface {
	// GetType gets the type of security scheme.
	GetType() HTTPClientAuthType
	// Validate checks if the instance is valid.
	Validate(strict bool) error
}

// HTTPClientAuthType represents the authentication scheme enum.
type HTTPClientAuthType string

const (
	DigestAuthScheme HTTPClientAuthType = "digest"
)

var enumValueHTTPClientAuthTypes = []HTTPClientAuthType{
	DigestAuthScheme,
}

var errInvalidHTTPClientAuthType = fmt.Errorf(
	"invalid HTTPClientAuthType. Expected %v",
	enumValueHTTPClientAuthTypes,
)

// Validate checks if the security scheme type is valid.
func (j HTTPClientAuthType) Validate() error {
	if !slices.Contains(GetSupportedHTTPClientAuthTypes(), j) {
		return fmt.Errorf(
			"%w, got <%s>",
			errInvalidHTTPClientAuthType,
			j,
		)
	}

	return nil
}

// ParseHTTPClientAuthType parses SecurityScheme from string.
func ParseHTTPClientAuthType(value string) (HTTPClientAuthType, error) {
	result := HTTPClientAuthType(value)

	return result, result.Validate()
}

// GetSupportedHTTPClientAuthTypes get the list of supported security scheme types.
func GetSupportedHTTPClientAuthTypes() []HTTPClientAuthType {
	return enumValueHTTPClientAuthTypes
}
