package remoteresource

import (
	"context"
	"time"

	"github.com/jpalmerr/remoteresource/internal/poller"
)

// Response is the outcome of a single [Transport] call.
type Response = poller.Response

// Transport issues the HTTP GET behind every poll.
//
// Implementations must honour ctx cancellation and must be safe for
// concurrent use: several polls of one resource may be in flight at once.
// Transport failures are reported through Response.Err rather than a
// second return value.
type Transport interface {
	Get(ctx context.Context, url string, headers map[string]string) Response
}

// TransportFunc adapts an ordinary function to the [Transport] interface.
type TransportFunc func(ctx context.Context, url string, headers map[string]string) Response

// Get calls f(ctx, url, headers).
func (f TransportFunc) Get(ctx context.Context, url string, headers map[string]string) Response {
	return f(ctx, url, headers)
}

// NewHTTPTransport returns the default [Transport], backed by a pooled
// net/http client. Each request is bounded by timeout.
func NewHTTPTransport(timeout time.Duration) Transport {
	return &httpTransport{client: poller.NewClient(), timeout: timeout}
}

type httpTransport struct {
	client  *poller.Client
	timeout time.Duration
}

func (t *httpTransport) Get(ctx context.Context, url string, headers map[string]string) Response {
	return t.client.Fetch(ctx, url, headers, t.timeout)
}

// closeTransport releases idle connections held by the default transport.
func closeTransport(t Transport) {
	if ht, ok := t.(*httpTransport); ok {
		ht.client.Close()
	}
}

// succeeded reports whether a response is an accepted success.
// Only 2xx responses count; redirects have already been followed by the client.
func succeeded(resp Response) bool {
	return resp.Err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300
}
