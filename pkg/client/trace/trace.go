// Package trace extends the httptrace.ClientTrace and adds additional HTTPRequest hooks.
// A custom ClientTrace definition can be registered in the client.Client by the AndTrace method.
package trace

import (
	"context"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/plmrlnsnts/http-extended/pkg/request"
)

// Factory creates ClientTrace hooks for a request.
// The returned context is used for the rest of the request, it can contain, for example, a tracing span.
// The returned ClientTrace may be nil.
type Factory func(ctx context.Context, request request.HTTPRequest) (context.Context, *ClientTrace)

// ClientTrace is a set of hooks to run at various stages of an outgoing HTTPRequest.
type ClientTrace struct {
	httptrace.ClientTrace // native, low level trace
	// HTTPRequestStart is called when the request begins. It includes redirects and retries.
	HTTPRequestStart func(request *http.Request)
	// HTTPRequestDone is called when the response headers are received or an error occurred. It includes redirects and retries.
	HTTPRequestDone func(response *http.Response, err error)
	// HTTPRequestRetry is called before retry delay.
	HTTPRequestRetry func(attempt int, delay time.Duration)
	// RequestProcessed is called when Client.Send method is done, the response body is not read yet.
	RequestProcessed func(response *http.Response, err error)
	// ResponseBodyDone is called when the body of the final response is read and closed.
	ResponseBodyDone func(response *http.Response, bytes int64, err error)
}

// Compose modifies t such that hooks registered in old are called first, then the hooks of t.
// The embedded httptrace.ClientTrace is not composed, use httptrace.WithClientTrace to compose native hooks.
func (t *ClientTrace) Compose(old *ClientTrace) {
	if old == nil {
		return
	}
	t.HTTPRequestStart = compose1(old.HTTPRequestStart, t.HTTPRequestStart)
	t.HTTPRequestDone = compose2(old.HTTPRequestDone, t.HTTPRequestDone)
	t.HTTPRequestRetry = compose2(old.HTTPRequestRetry, t.HTTPRequestRetry)
	t.RequestProcessed = compose2(old.RequestProcessed, t.RequestProcessed)
	t.ResponseBodyDone = compose3(old.ResponseBodyDone, t.ResponseBodyDone)
}

func compose1[A any](first, second func(A)) func(A) {
	switch {
	case first == nil:
		return second
	case second == nil:
		return first
	}
	return func(a A) {
		first(a)
		second(a)
	}
}

func compose2[A, B any](first, second func(A, B)) func(A, B) {
	switch {
	case first == nil:
		return second
	case second == nil:
		return first
	}
	return func(a A, b B) {
		first(a, b)
		second(a, b)
	}
}

func compose3[A, B, C any](first, second func(A, B, C)) func(A, B, C) {
	switch {
	case first == nil:
		return second
	case second == nil:
		return first
	}
	return func(a A, b B, c C) {
		first(a, b, c)
		second(a, b, c)
	}
}
