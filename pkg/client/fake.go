package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"sync"

	"github.com/jarcoal/httpmock"
	"github.com/tidwall/gjson"

	"github.com/plmrlnsnts/http-extended/pkg/request"
)

// SentRequest is a request recorded by the Fake sender.
type SentRequest struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// Query returns the sent query parameters.
func (r SentRequest) Query() url.Values {
	return r.URL.Query()
}

// JSON returns value at the path in the sent JSON body, the syntax is described in the gjson package.
func (r SentRequest) JSON(path string) gjson.Result {
	if path == "" {
		return gjson.ParseBytes(r.Body)
	}
	return gjson.GetBytes(r.Body, path)
}

// Form returns fields of the sent form or multipart body.
func (r SentRequest) Form() (url.Values, error) {
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf(`cannot parse Content-Type: %w`, err)
	}
	if mediaType != "multipart/form-data" {
		return url.ParseQuery(string(r.Body))
	}
	form, err := multipart.NewReader(bytes.NewReader(r.Body), params["boundary"]).ReadForm(int64(len(r.Body)) + 1)
	if err != nil {
		return nil, fmt.Errorf(`cannot parse multipart body: %w`, err)
	}
	defer func() { _ = form.RemoveAll() }()
	return form.Value, nil
}

// Fake is a request.Sender for tests, requests are not sent to the network.
//
// Responses are defined by the httpmock.MockTransport, see the Mock method.
// Requests without a registered responder get an empty 200 OK response.
// All sent requests are recorded, including retries.
type Fake struct {
	client Client
	mock   *httpmock.MockTransport
	lock   *sync.Mutex
	sent   []SentRequest
}

// NewFake creates a Fake sender from the Client, its configuration (base URL, headers, ...) is kept.
func NewFake(c Client) *Fake {
	mock := httpmock.NewMockTransport()
	mock.RegisterNoResponder(httpmock.NewStringResponder(http.StatusOK, ""))
	f := &Fake{mock: mock, lock: &sync.Mutex{}}
	f.client = c.WithTransport(f).WithRetry(TestingRetry())
	return f
}

// Mock returns the mocked transport, it can be used to register responders.
func (f *Fake) Mock() *httpmock.MockTransport {
	return f.mock
}

// Client returns the Client used by the Fake.
func (f *Fake) Client() Client {
	return f.client
}

// Send method implements the request.Sender interface.
func (f *Fake) Send(ctx context.Context, reqDef request.HTTPRequest) (*http.Response, error) {
	return f.client.Send(ctx, reqDef)
}

// RoundTrip records the request and passes it to the mocked transport.
func (f *Fake) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		body, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	sentURL := *req.URL
	f.lock.Lock()
	f.sent = append(f.sent, SentRequest{Method: req.Method, URL: &sentURL, Header: req.Header.Clone(), Body: body})
	f.lock.Unlock()

	return f.mock.RoundTrip(req)
}

// Sent returns all recorded requests.
func (f *Fake) Sent() []SentRequest {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]SentRequest(nil), f.sent...)
}

// LastSent returns the last recorded request.
func (f *Fake) LastSent() (SentRequest, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if len(f.sent) == 0 {
		return SentRequest{}, false
	}
	return f.sent[len(f.sent)-1], true
}

// AssertSent returns true if at least one recorded request matches the callback.
func (f *Fake) AssertSent(fn func(r SentRequest) bool) bool {
	for _, r := range f.Sent() {
		if fn(r) {
			return true
		}
	}
	return false
}

// Reset clears recorded requests and registered responders.
func (f *Fake) Reset() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.sent = nil
	f.mock.Reset()
	f.mock.RegisterNoResponder(httpmock.NewStringResponder(http.StatusOK, ""))
}
