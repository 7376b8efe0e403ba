package digestauth

import (
	"fmt"
	"log/slog"
)

const redactedValue = "[REDACTED]"

// Credential represents the username and password pair of the digest authentication.
type Credential struct {
	Username string
	Password string
}

var _ slog.LogValuer = Credential{}

// NewCredential creates a new Credential instance from the configuration.
func NewCredential(config *DigestAuthConfig) (*Credential, error) {
	user, err := config.Username.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to create digest credential. Invalid username: %w", err)
	}

	password, err := config.Password.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to create digest credential. Invalid password: %w", err)
	}

	return &Credential{
		Username: user,
		Password: password,
	}, nil
}

// String implements fmt.Stringer. The password is never printed.
func (c Credential) String() string {
	return c.Username + ":" + redactedValue
}

// LogValue implements slog.LogValuer. The password is never logged.
func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", c.Username),
		slog.String("password", redactedValue),
	)
}
