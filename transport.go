package authdigest

import (
	"context"
	"fmt"
	"net/http"

	"resty.dev/v3"
)

// Transport abstracts the HTTP client that sends the GET requests of a digest call.
type Transport interface {
	// Get sends a GET request to the url with the extra headers.
	// The returned error is reserved for transport-level failures. A response
	// with any status code is a successful round trip.
	Get(ctx context.Context, url string, header http.Header) (*Result, error)
}

// Result is the outcome of one round trip.
type Result struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	// The raw resty response. Nil if the transport is not backed by resty.
	Response *resty.Response
}

// String returns the response body as string.
func (r *Result) String() string {
	if r == nil {
		return ""
	}

	return string(r.Body)
}

type restyTransport struct {
	client *resty.Client
}

var _ Transport = (*restyTransport)(nil)

// NewRestyTransport creates a Transport from the resty client.
func NewRestyTransport(client *resty.Client) Transport {
	return &restyTransport{
		client: client,
	}
}

// Close closes the underlying resty client.
func (rt *restyTransport) Close() error {
	return rt.client.Close()
}

// Get sends a GET request to the url with the extra headers.
func (rt *restyTransport) Get(ctx context.Context, url string, header http.Header) (*Result, error) {
	req := rt.client.R().SetContext(ctx)

	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := req.Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	if resp == nil || resp.RawResponse == nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, errNilTransportResponse)
	}

	return &Result{
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
		Header:     resp.Header(),
		Body:       resp.Bytes(),
		Response:   resp,
	}, nil
}
