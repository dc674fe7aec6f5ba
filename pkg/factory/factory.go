// Package factory provides Factory, an entry point creating a fresh request.PendingRequest per call.
//
// The Factory holds only the configuration shared by produced builders:
// the sender, the wrapper registry, the default body format and default headers.
// It is safe for concurrent use, builders are not.
//
//	f := factory.New(factory.WithClient(client.New().WithBaseURL("https://api.example.com")))
//	f.Register("api-key", func() any { return &APIKey{} })
//	res, err := f.WithQuery("page", 1).Get(ctx, "/users", nil)
//
// In tests, the Fake method replaces the sender by a client.Fake, no request reaches the network.
package factory

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/plmrlnsnts/http-extended/pkg/client"
	"github.com/plmrlnsnts/http-extended/pkg/request"
)

// Factory creates new PendingRequest builders.
type Factory struct {
	lock       *sync.RWMutex
	client     client.Client
	sender     request.Sender
	registry   *request.Registry
	bodyFormat request.BodyFormat
	header     http.Header
	fake       *client.Fake
}

// Option for the New function.
type Option func(f *Factory)

// WithClient sets the client used to send requests, it is also the base of the Fake sender.
func WithClient(c client.Client) Option {
	return func(f *Factory) {
		f.client = c
		f.sender = c
	}
}

// WithSender sets a custom request.Sender.
func WithSender(sender request.Sender) Option {
	return func(f *Factory) {
		f.sender = sender
	}
}

// WithRegistry sets the registry of named wrappers, it is shared by all builders.
func WithRegistry(registry *request.Registry) Option {
	return func(f *Factory) {
		f.registry = registry
	}
}

// WithBodyFormat sets the default body format of new builders.
func WithBodyFormat(format request.BodyFormat) Option {
	return func(f *Factory) {
		f.bodyFormat = format
	}
}

// WithHeader sets a default header of new builders.
func WithHeader(key, value string) Option {
	return func(f *Factory) {
		f.header.Set(key, value)
	}
}

// New creates a Factory, by default requests are sent by client.New().
func New(opts ...Option) *Factory {
	c := client.New()
	f := &Factory{
		lock:       &sync.RWMutex{},
		client:     c,
		sender:     c,
		registry:   request.NewRegistry(),
		bodyFormat: request.FormatJSON,
		header:     make(http.Header),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.sender == nil {
		panic(fmt.Errorf("sender cannot be nil"))
	}
	return f
}

// Registry returns the registry of named wrappers.
func (f *Factory) Registry() *request.Registry {
	return f.registry
}

// Register the wrapper constructor under the name, see request.Registry.Register.
func (f *Factory) Register(name string, fn request.Constructor) *Factory {
	f.registry.Register(name, fn)
	return f
}

// Fake replaces the sender by a client.Fake for all subsequently created builders.
// The fake is created once from the client set by WithClient, later calls return the same instance.
func (f *Factory) Fake() *client.Fake {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.fake == nil {
		f.fake = client.NewFake(f.client)
		f.sender = f.fake
	}
	return f.fake
}

// NewRequest creates an empty builder with the Factory defaults.
func (f *Factory) NewRequest() *request.PendingRequest {
	f.lock.RLock()
	sender := f.sender
	f.lock.RUnlock()

	r := request.NewPendingRequest(sender).WithRegistry(f.registry).BodyFormat(f.bodyFormat)
	for k, values := range f.header {
		for _, v := range values {
			r.Header().Add(k, v)
		}
	}
	return r
}

// Get creates a builder and sends GET request.
func (f *Factory) Get(ctx context.Context, url string, query map[string]any) (*request.Response, error) {
	return f.NewRequest().Get(ctx, url, query)
}

// Head creates a builder and sends HEAD request.
func (f *Factory) Head(ctx context.Context, url string, query map[string]any) (*request.Response, error) {
	return f.NewRequest().Head(ctx, url, query)
}

// Post creates a builder and sends POST request.
func (f *Factory) Post(ctx context.Context, url string, data map[string]any) (*request.Response, error) {
	return f.NewRequest().Post(ctx, url, data)
}

// Put creates a builder and sends PUT request.
func (f *Factory) Put(ctx context.Context, url string, data map[string]any) (*request.Response, error) {
	return f.NewRequest().Put(ctx, url, data)
}

// Patch creates a builder and sends PATCH request.
func (f *Factory) Patch(ctx context.Context, url string, data map[string]any) (*request.Response, error) {
	return f.NewRequest().Patch(ctx, url, data)
}

// Delete creates a builder and sends DELETE request.
func (f *Factory) Delete(ctx context.Context, url string, data map[string]any) (*request.Response, error) {
	return f.NewRequest().Delete(ctx, url, data)
}

// Send creates a builder and sends a request with the method to the URL.
func (f *Factory) Send(ctx context.Context, method, url string) (*request.Response, error) {
	return f.NewRequest().Send(ctx, method, url)
}

// Execute creates an empty builder and executes it with the method, see request.PendingRequest.Execute.
func (f *Factory) Execute(ctx context.Context, method string) (*request.Response, error) {
	return f.NewRequest().Execute(ctx, method)
}

// Prepare creates a builder with the wrapper attached, a nil wrapper is ignored.
func (f *Factory) Prepare(wrapper request.Wrapper) *request.PendingRequest {
	return f.NewRequest().Prepare(wrapper)
}

// PrepareNamed creates a builder with the named wrapper attached, an empty name is ignored.
func (f *Factory) PrepareNamed(name string) (*request.PendingRequest, error) {
	return f.NewRequest().PrepareNamed(name)
}

// WithWrapper creates a builder with the wrapper attached.
func (f *Factory) WithWrapper(wrapper request.Wrapper) *request.PendingRequest {
	return f.NewRequest().WithWrapper(wrapper)
}

// WithNamedWrapper creates a builder with the wrapper registered under the name attached.
func (f *Factory) WithNamedWrapper(name string) (*request.PendingRequest, error) {
	return f.NewRequest().WithNamedWrapper(name)
}

// WithURL creates a builder with the URL set.
func (f *Factory) WithURL(url string) *request.PendingRequest {
	return f.NewRequest().WithURL(url)
}

// WithQuery creates a builder with the query parameter set at the path.
func (f *Factory) WithQuery(path string, value any) *request.PendingRequest {
	return f.NewRequest().WithQuery(path, value)
}

// WithQueryMap creates a builder with the query parameters merged.
func (f *Factory) WithQueryMap(values map[string]any) *request.PendingRequest {
	return f.NewRequest().WithQueryMap(values)
}

// WithBody creates a builder with the body parameter set at the path.
func (f *Factory) WithBody(path string, value any) *request.PendingRequest {
	return f.NewRequest().WithBody(path, value)
}

// WithBodyMap creates a builder with the body parameters merged.
func (f *Factory) WithBodyMap(values map[string]any) *request.PendingRequest {
	return f.NewRequest().WithBodyMap(values)
}

// WithHeader creates a builder with the header set.
func (f *Factory) WithHeader(header, value string) *request.PendingRequest {
	return f.NewRequest().WithHeader(header, value)
}

// WithHeaders creates a builder with the headers set.
func (f *Factory) WithHeaders(headers map[string]string) *request.PendingRequest {
	return f.NewRequest().WithHeaders(headers)
}

// BeforeSending creates a builder with the "before" callback registered.
func (f *Factory) BeforeSending(fn request.BeforeSendingFunc) *request.PendingRequest {
	return f.NewRequest().BeforeSending(fn)
}

// AfterSending creates a builder with the "after" callback set.
func (f *Factory) AfterSending(fn request.AfterSendingFunc) *request.PendingRequest {
	return f.NewRequest().AfterSending(fn)
}

// BodyFormat creates a builder with the body format set.
func (f *Factory) BodyFormat(format request.BodyFormat) *request.PendingRequest {
	return f.NewRequest().BodyFormat(format)
}

// AsJSON creates a builder sending a JSON body.
func (f *Factory) AsJSON() *request.PendingRequest {
	return f.NewRequest().AsJSON()
}

// AsForm creates a builder sending a form body.
func (f *Factory) AsForm() *request.PendingRequest {
	return f.NewRequest().AsForm()
}

// AsMultipart creates a builder sending a multipart body.
func (f *Factory) AsMultipart() *request.PendingRequest {
	return f.NewRequest().AsMultipart()
}

// Accept creates a builder with the Accept header set.
func (f *Factory) Accept(contentType string) *request.PendingRequest {
	return f.NewRequest().Accept(contentType)
}

// AcceptJSON creates a builder accepting JSON responses.
func (f *Factory) AcceptJSON() *request.PendingRequest {
	return f.NewRequest().AcceptJSON()
}

// ContentType creates a builder with the Content-Type header set.
func (f *Factory) ContentType(contentType string) *request.PendingRequest {
	return f.NewRequest().ContentType(contentType)
}

// Timeout creates a builder with the request timeout set.
func (f *Factory) Timeout(timeout time.Duration) *request.PendingRequest {
	return f.NewRequest().Timeout(timeout)
}

// Attach creates a multipart builder with the file attached.
func (f *Factory) Attach(name string, contents []byte, filename string) *request.PendingRequest {
	return f.NewRequest().Attach(name, contents, filename)
}
