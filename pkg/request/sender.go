package request

import (
	"context"
	"net/http"
)

// Sender represents an HTTP transport, the client.Client is a default implementation using the standard net/http package.
type Sender interface {
	// Send method sends the request and returns the raw response.
	// The response body is read and closed by the caller.
	// Both response and error may be returned, for example, if the sender is configured to treat HTTP status >= 400 as an error.
	Send(ctx context.Context, request HTTPRequest) (rawResponse *http.Response, err error)
}

// Sendable is a request ready to be sent, for example by a RunGroup or WaitGroup.
// See PendingRequest.Sendable.
type Sendable interface {
	SendOrErr(ctx context.Context) error
}

// SendableFunc adapts a function to the Sendable interface.
type SendableFunc func(ctx context.Context) error

func (fn SendableFunc) SendOrErr(ctx context.Context) error {
	return fn(ctx)
}

type sendable struct {
	request *PendingRequest
	method  string
}

func (v sendable) SendOrErr(ctx context.Context) error {
	_, err := v.request.Execute(ctx, v.method)
	return err
}
