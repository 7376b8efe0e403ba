// Package authc contains the authentication configuration of the client.
package authc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/srgoldman/auth-digest/authc/authscheme"
	"github.com/srgoldman/auth-digest/authc/digestauth"
)

var (
	errSecuritySchemeDefinitionRequired = errors.New("security scheme definition is required")
	errUnsupportedSecurityScheme        = errors.New("unsupported security scheme")
)

// RestlyAuthConfig contains authentication configurations.
// The type field selects the scheme. Only the digest scheme is supported.
type RestlyAuthConfig struct {
	authscheme.HTTPClientAuthDefinition
}

type rawRestlyAuthConfig struct {
	Type authscheme.HTTPClientAuthType `json:"type" yaml:"type"`
}

// NewRestlyAuthConfig creates a new RestlyAuthConfig instance.
func NewRestlyAuthConfig(definition authscheme.HTTPClientAuthDefinition) *RestlyAuthConfig {
	return &RestlyAuthConfig{
		HTTPClientAuthDefinition: definition,
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *RestlyAuthConfig) UnmarshalJSON(b []byte) error {
	var rawScheme rawRestlyAuthConfig

	err := json.Unmarshal(b, &rawScheme)
	if err != nil {
		return err
	}

	err = rawScheme.Type.Validate()
	if err != nil {
		return fmt.Errorf("%w: %w", errUnsupportedSecurityScheme, err)
	}

	switch rawScheme.Type {
	case authscheme.DigestAuthScheme:
		var config digestauth.DigestAuthConfig

		err := json.Unmarshal(b, &config)
		if err != nil {
			return err
		}

		j.HTTPClientAuthDefinition = &config
	default:
		return fmt.Errorf("%w: %s", errUnsupportedSecurityScheme, rawScheme.Type)
	}

	return nil
}

// MarshalJSON implements json.Marshaler.
func (j RestlyAuthConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.HTTPClientAuthDefinition)
}

// Validate if the current instance is valid.
func (ss *RestlyAuthConfig) Validate(strict bool) error {
	if ss.HTTPClientAuthDefinition == nil {
		return errSecuritySchemeDefinitionRequired
	}

	return ss.HTTPClientAuthDefinition.Validate(strict)
}

// IsZero if the current instance is empty.
func (ss *RestlyAuthConfig) IsZero() bool {
	return ss == nil || ss.HTTPClientAuthDefinition == nil
}

// DigestAuth returns the digest configuration if the scheme is digest.
func (ss *RestlyAuthConfig) DigestAuth() (*digestauth.DigestAuthConfig, bool) {
	if ss.IsZero() {
		return nil, false
	}

	config, ok := ss.HTTPClientAuthDefinition.(*digestauth.DigestAuthConfig)

	return config, ok
}
