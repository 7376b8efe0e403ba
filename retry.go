package authdigest

import "fmt"

const (
	// MinDigestRetryCount is the minimum number of authenticated retries.
	MinDigestRetryCount = 1
	// MaxDigestRetryCount is the maximum number of authenticated retries.
	MaxDigestRetryCount = 3
)

// DigestRetryConfig represents the retry policy of the digest handshake.
// Transport failures and statuses other than 401 are never retried.
type DigestRetryConfig struct {
	// Number of authenticated retries after a 401 response. Defaults to 1.
	MaxRetries *int `json:"max_retries,omitempty" jsonschema:"nullable,min=1,max=3" mapstructure:"max_retries" yaml:"max_retries,omitempty"`
}

// GetMaxRetries returns the configured number of retries or the default value.
func (conf *DigestRetryConfig) GetMaxRetries() int {
	if conf == nil || conf.MaxRetries == nil {
		return DefaultMaxRetries
	}

	return *conf.MaxRetries
}

// Validate if the current instance is valid.
func (conf *DigestRetryConfig) Validate() error {
	count := conf.GetMaxRetries()

	if count < MinDigestRetryCount || count > MaxDigestRetryCount {
		return fmt.Errorf(
			"%w: expected %d-%d, got %d",
			errInvalidRetryCount,
			MinDigestRetryCount,
			MaxDigestRetryCount,
			count,
		)
	}

	return nil
}
