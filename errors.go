package authdigest

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthenticationExhausted occurs when the server still responds 401 after the retry budget is spent.
	ErrAuthenticationExhausted = errors.New("repeated failures to authenticate, please check your credentials")
	// ErrUnexpectedStatus occurs when the server responds a status other than 200 or 401.
	ErrUnexpectedStatus = errors.New("unexpected response status")
	// ErrTransport occurs when the request can not be sent or the response can not be read.
	ErrTransport = errors.New("transport error")

	errURLRequired          = errors.New("request url is required")
	errTransportRequired    = errors.New("transport is required")
	errInvalidRetryCount    = errors.New("invalid digest retry count")
	errDigestAuthRequired   = errors.New("digest authentication config is required")
	errNilTransportResponse = errors.New("transport returned neither a response nor an error")
)

// StatusError is the error of a logical call that ends with an unexpected status.
type StatusError struct {
	// The status code of the last response.
	StatusCode int
	// The status text of the last response.
	Status string
	// The number of requests sent, including the last one.
	Attempt int
	// The error class.
	Err error
}

// Error implements the error interface.
func (se *StatusError) Error() string {
	status := se.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", se.StatusCode, http.StatusText(se.StatusCode))
	}

	return fmt.Sprintf("%s: %s (attempt %d)", se.Err.Error(), status, se.Attempt)
}

// Unwrap returns the error class.
func (se *StatusError) Unwrap() error {
	return se.Err
}
