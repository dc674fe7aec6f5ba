package request

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/plmrlnsnts/http-extended/pkg/pathmap"
)

// BeforeSendingFunc is invoked before the request is sent, the PendingRequest can still be modified.
// If an error is returned, the request is not sent.
type BeforeSendingFunc func(ctx context.Context, r *PendingRequest) error

// AfterSendingFunc is invoked after the request is completed, before Execute returns.
// The returned error is returned from Execute.
type AfterSendingFunc func(ctx context.Context, r *PendingRequest, response *Response) error

// PendingRequest is a mutable HTTP request builder.
//
// All configuration methods modify the builder and return it for chaining.
// Execute may be called repeatedly, each call sends the current state.
//
// PendingRequest is not safe for concurrent use.
type PendingRequest struct {
	sender      Sender
	registry    *Registry
	url         string
	query       *pathmap.PathMap
	body        *pathmap.PathMap
	bodyFormat  BodyFormat
	header      http.Header
	attachments []Attachment
	timeout     time.Duration
	wrapper     Wrapper
	before      []BeforeSendingFunc
	after       AfterSendingFunc
}

// NewPendingRequest creates an empty request sent by the sender.
func NewPendingRequest(sender Sender) *PendingRequest {
	if sender == nil {
		panic(fmt.Errorf("sender cannot be nil"))
	}
	return &PendingRequest{
		sender:     sender,
		query:      pathmap.New(),
		body:       pathmap.New(),
		bodyFormat: FormatJSON,
		header:     make(http.Header),
	}
}

// WithRegistry sets the registry used by WithNamedWrapper.
func (r *PendingRequest) WithRegistry(registry *Registry) *PendingRequest {
	r.registry = registry
	return r
}

// Prepare attaches the wrapper, see WithWrapper. A nil wrapper is ignored.
func (r *PendingRequest) Prepare(wrapper Wrapper) *PendingRequest {
	if wrapper == nil {
		return r
	}
	return r.WithWrapper(wrapper)
}

// PrepareNamed attaches the wrapper registered under the name, see WithNamedWrapper.
// An empty name is ignored.
func (r *PendingRequest) PrepareNamed(name string) (*PendingRequest, error) {
	if name == "" {
		return r, nil
	}
	return r.WithNamedWrapper(name)
}

// WithWrapper attaches the wrapper and immediately invokes its Boot method.
// Configuration applied after this call may override changes made by the wrapper.
func (r *PendingRequest) WithWrapper(wrapper Wrapper) *PendingRequest {
	if wrapper == nil {
		panic(fmt.Errorf("wrapper cannot be nil"))
	}
	r.wrapper = wrapper
	r.wrapper.Boot(r)
	return r
}

// WithNamedWrapper creates the wrapper registered under the name in the Registry and attaches it, see WithWrapper.
// A *ConfigurationError is returned if the wrapper cannot be resolved, in that case the request is not modified.
func (r *PendingRequest) WithNamedWrapper(name string) (*PendingRequest, error) {
	if r.registry == nil {
		return r, &ConfigurationError{Name: name, err: ErrUnknownWrapper}
	}
	wrapper, err := r.registry.Resolve(name)
	if err != nil {
		return r, err
	}
	return r.WithWrapper(wrapper), nil
}

// Wrapper returns the attached wrapper, if any.
func (r *PendingRequest) Wrapper() Wrapper {
	return r.wrapper
}

// WithURL sets the request URL, a previous value is replaced.
// The URL may contain a query, the accumulated query parameters are appended to it.
func (r *PendingRequest) WithURL(url string) *PendingRequest {
	r.url = url
	return r
}

// URL returns the request URL.
func (r *PendingRequest) URL() string {
	return r.url
}

// WithQuery sets the query parameter at the dot-delimited path, see pathmap.PathMap.Set.
func (r *PendingRequest) WithQuery(path string, value any) *PendingRequest {
	r.query.Set(path, value)
	return r
}

// WithQueryMap merges top-level query parameters, see pathmap.PathMap.Merge.
func (r *PendingRequest) WithQueryMap(values map[string]any) *PendingRequest {
	r.query.Merge(values)
	return r
}

// Query returns the query parameter at the path or the def value.
func (r *PendingRequest) Query(path string, def any) any {
	return r.query.Get(path, def)
}

// QueryMap returns a copy of all query parameters.
func (r *PendingRequest) QueryMap() map[string]any {
	return r.query.ToMap()
}

// IncrementQuery adds the delta to the numeric query parameter, see pathmap.PathMap.Increment.
func (r *PendingRequest) IncrementQuery(path string, delta any) error {
	return r.query.Increment(path, delta)
}

// WithBody sets the body parameter at the dot-delimited path, see pathmap.PathMap.Set.
func (r *PendingRequest) WithBody(path string, value any) *PendingRequest {
	r.body.Set(path, value)
	return r
}

// WithBodyMap merges top-level body parameters, see pathmap.PathMap.Merge.
func (r *PendingRequest) WithBodyMap(values map[string]any) *PendingRequest {
	r.body.Merge(values)
	return r
}

// Body returns the body parameter at the path or the def value.
func (r *PendingRequest) Body(path string, def any) any {
	return r.body.Get(path, def)
}

// BodyMap returns a copy of all body parameters.
func (r *PendingRequest) BodyMap() map[string]any {
	return r.body.ToMap()
}

// IncrementBody adds the delta to the numeric body parameter, see pathmap.PathMap.Increment.
func (r *PendingRequest) IncrementBody(path string, delta any) error {
	return r.body.Increment(path, delta)
}

// BodyFormat sets format of the body.
func (r *PendingRequest) BodyFormat(format BodyFormat) *PendingRequest {
	r.bodyFormat = format
	return r
}

// Format returns format of the body.
func (r *PendingRequest) Format() BodyFormat {
	return r.bodyFormat
}

// AsJSON is shortcut for BodyFormat(FormatJSON).
func (r *PendingRequest) AsJSON() *PendingRequest {
	return r.BodyFormat(FormatJSON)
}

// AsForm is shortcut for BodyFormat(FormatForm).
func (r *PendingRequest) AsForm() *PendingRequest {
	return r.BodyFormat(FormatForm)
}

// AsMultipart is shortcut for BodyFormat(FormatMultipart).
func (r *PendingRequest) AsMultipart() *PendingRequest {
	return r.BodyFormat(FormatMultipart)
}

// Attach adds a file to the multipart body and switches the body format to multipart.
func (r *PendingRequest) Attach(name string, contents []byte, filename string) *PendingRequest {
	r.attachments = append(r.attachments, Attachment{Name: name, Contents: contents, Filename: filename})
	return r.AsMultipart()
}

// WithHeader sets a single header field and its value.
func (r *PendingRequest) WithHeader(header, value string) *PendingRequest {
	r.header.Set(header, value)
	return r
}

// WithHeaders sets multiple header fields.
func (r *PendingRequest) WithHeaders(headers map[string]string) *PendingRequest {
	for k, v := range headers {
		r.header.Set(k, v)
	}
	return r
}

// Header returns request headers.
func (r *PendingRequest) Header() http.Header {
	return r.header
}

// ContentType sets the Content-Type header, it overrides type derived from the body format.
func (r *PendingRequest) ContentType(contentType string) *PendingRequest {
	return r.WithHeader("Content-Type", contentType)
}

// Accept sets the Accept header.
func (r *PendingRequest) Accept(contentType string) *PendingRequest {
	return r.WithHeader("Accept", contentType)
}

// AcceptJSON is shortcut for Accept("application/json").
func (r *PendingRequest) AcceptJSON() *PendingRequest {
	return r.Accept("application/json")
}

// Timeout sets the request timeout, zero means the Sender default.
func (r *PendingRequest) Timeout(timeout time.Duration) *PendingRequest {
	r.timeout = timeout
	return r
}

// BeforeSending registers a callback invoked before the request is sent.
// Callbacks are invoked in the registration order.
func (r *PendingRequest) BeforeSending(fn BeforeSendingFunc) *PendingRequest {
	r.before = append(r.before, fn)
	return r
}

// AfterSending sets the callback invoked after the request is completed.
// Only one callback is stored, a previous callback is replaced.
func (r *PendingRequest) AfterSending(fn AfterSendingFunc) *PendingRequest {
	r.after = fn
	return r
}

// Get sets the URL, merges query parameters and executes GET request.
func (r *PendingRequest) Get(ctx context.Context, url string, query map[string]any) (*Response, error) {
	return r.WithURL(url).WithQueryMap(query).Execute(ctx, http.MethodGet)
}

// Head sets the URL, merges query parameters and executes HEAD request.
func (r *PendingRequest) Head(ctx context.Context, url string, query map[string]any) (*Response, error) {
	return r.WithURL(url).WithQueryMap(query).Execute(ctx, http.MethodHead)
}

// Post sets the URL, merges body parameters and executes POST request.
func (r *PendingRequest) Post(ctx context.Context, url string, data map[string]any) (*Response, error) {
	return r.WithURL(url).WithBodyMap(data).Execute(ctx, http.MethodPost)
}

// Put sets the URL, merges body parameters and executes PUT request.
func (r *PendingRequest) Put(ctx context.Context, url string, data map[string]any) (*Response, error) {
	return r.WithURL(url).WithBodyMap(data).Execute(ctx, http.MethodPut)
}

// Patch sets the URL, merges body parameters and executes PATCH request.
func (r *PendingRequest) Patch(ctx context.Context, url string, data map[string]any) (*Response, error) {
	return r.WithURL(url).WithBodyMap(data).Execute(ctx, http.MethodPatch)
}

// Delete sets the URL, merges body parameters and executes DELETE request.
func (r *PendingRequest) Delete(ctx context.Context, url string, data map[string]any) (*Response, error) {
	return r.WithURL(url).WithBodyMap(data).Execute(ctx, http.MethodDelete)
}

// Send sets the URL and executes the request, see Execute.
func (r *PendingRequest) Send(ctx context.Context, method, url string) (*Response, error) {
	return r.WithURL(url).Execute(ctx, method)
}

// Sendable returns the request as a Sendable, the request is executed by the method on SendOrErr call.
func (r *PendingRequest) Sendable(method string) Sendable {
	return sendable{request: r, method: method}
}

// Execute sends the request and returns the response.
//
// The method is normalized to upper case.
// Query parameters are always sent, body parameters are omitted for GET and HEAD methods.
// A Sender error is returned unchanged and the AfterSending callback is not invoked.
// Otherwise, the AfterSending callback is invoked with the response and its error is returned together with the response.
func (r *PendingRequest) Execute(ctx context.Context, method string) (*Response, error) {
	// Stop if context has been cancelled
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return nil, fmt.Errorf("request method is not set")
	}

	// Invoke "before" callbacks
	for _, fn := range r.before {
		if err := fn(ctx, r); err != nil {
			return nil, err
		}
	}

	def, err := r.snapshot(method)
	if err != nil {
		return nil, err
	}

	// Send request
	rawResponse, err := r.sender.Send(ctx, def)
	if err != nil {
		if rawResponse == nil {
			return nil, err
		}
		// Response is returned together with the error, so the caller can inspect it
		if response, readErr := NewResponse(def, rawResponse); readErr == nil {
			return response, err
		}
		return nil, err
	}

	response, err := NewResponse(def, rawResponse)
	if err != nil {
		return nil, err
	}

	// Invoke "after" callback
	if r.after != nil {
		if err := r.after(ctx, r, response); err != nil {
			return response, err
		}
	}

	return response, nil
}

// snapshot creates an immutable copy of the current state.
func (r *PendingRequest) snapshot(method string) (HTTPRequest, error) {
	reqURL, err := url.Parse(r.url)
	if err != nil {
		return nil, fmt.Errorf(`url "%s" is not valid: %w`, r.url, err)
	}

	out := httpRequest{
		method:     method,
		url:        reqURL,
		header:     r.header.Clone(),
		query:      r.query.Clone(),
		bodyFormat: r.bodyFormat,
		timeout:    r.timeout,
	}
	if hasBody(method) {
		out.body = r.body.Clone()
		out.attachments = append([]Attachment(nil), r.attachments...)
	}
	return out, nil
}
