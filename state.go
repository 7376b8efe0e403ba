package authdigest

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/srgoldman/auth-digest/authc/digestauth"
)

// DefaultMaxRetries is the number of authenticated retries after the first 401.
const DefaultMaxRetries = 1

// State is a step of the digest call.
type State int

const (
	StateInitial State = iota
	StateAwaitingResponse
	StateRetrying
	StateDone
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateRetrying:
		return "retrying"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// ActionKind represents what the driver does after a response.
type ActionKind int

const (
	// ActionSucceed ends the call with the response body.
	ActionSucceed ActionKind = iota
	// ActionRetry reissues the request with an Authorization header.
	ActionRetry
	// ActionFail ends the call with an error.
	ActionFail
)

// String implements fmt.Stringer.
func (ak ActionKind) String() string {
	switch ak {
	case ActionSucceed:
		return "succeed"
	case ActionRetry:
		return "retry"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Target is the destination of a request.
type Target struct {
	// The fully qualified resource URL.
	URL string
	// The path-only component of the URL, used as the digest uri directive.
	Route string
}

// RetryState is the state of one logical call. It is never shared across calls.
type RetryState struct {
	// Number of authenticated retries already sent.
	Attempts int
	// The challenge answered by the last retry.
	PriorChallenge *digestauth.Challenge
}

// Action is the decision of the state machine.
type Action struct {
	Kind ActionKind
	// The challenge to answer. Set for ActionRetry only.
	Challenge *digestauth.Challenge
	// The destination of the retry. Set for ActionRetry only.
	Target Target
	// The reason of the failure. Set for ActionFail only.
	Err error
}

// NextAction decides the next step of a digest call from the response status and headers.
// It is a pure function: the driver owns the transport and the retry state.
func NextAction(
	status int,
	header http.Header,
	target Target,
	state RetryState,
	maxRetries int,
) Action {
	switch status {
	case http.StatusOK:
		return Action{Kind: ActionSucceed}
	case http.StatusUnauthorized:
		if state.Attempts >= maxRetries {
			return Action{Kind: ActionFail, Err: ErrAuthenticationExhausted}
		}

		challenge, err := FindChallenge(header)
		if err != nil {
			return Action{Kind: ActionFail, Err: err}
		}

		return Action{
			Kind:      ActionRetry,
			Challenge: challenge,
			Target:    retryTarget(target),
		}
	default:
		return Action{Kind: ActionFail, Err: ErrUnexpectedStatus}
	}
}

// FindChallenge parses the first digest challenge of the WWW-Authenticate headers.
func FindChallenge(header http.Header) (*digestauth.Challenge, error) {
	values := header.Values("WWW-Authenticate")
	if len(values) == 0 {
		return digestauth.ParseChallenge("")
	}

	var firstErr error

	for _, value := range values {
		challenge, err := digestauth.ParseChallenge(value)
		if err == nil {
			return challenge, nil
		}

		if firstErr == nil {
			firstErr = err
		}
	}

	return nil, firstErr
}

// Requests of the method-override convention get redirected (303) after the
// update. Some clients drop the Authorization header across the redirect and
// end up resending the operation, so the query string is removed before the retry.
func retryTarget(target Target) Target {
	if !hasMethodOverride(target.URL) {
		return target
	}

	return Target{
		URL:   stripQuery(target.URL),
		Route: stripQuery(target.Route),
	}
}

// hasMethodOverride matches a _method query value of put or execute, ignoring case.
func hasMethodOverride(rawURL string) bool {
	_, rawQuery, ok := strings.Cut(rawURL, "?")
	if !ok {
		return false
	}

	rawQuery, _, _ = strings.Cut(rawQuery, "#")

	// ParseQuery still returns the valid pairs on error.
	query, _ := url.ParseQuery(rawQuery)

	for _, method := range query["_method"] {
		if strings.EqualFold(method, "put") || strings.EqualFold(method, "execute") {
			return true
		}
	}

	return false
}

func stripQuery(value string) string {
	result, _, _ := strings.Cut(value, "?")

	return result
}
