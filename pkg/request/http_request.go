package request

import (
	"net/http"
	"net/url"
	"time"

	"github.com/plmrlnsnts/http-extended/pkg/pathmap"
)

// BodyFormat selects how the accumulated body is encoded.
type BodyFormat string

const (
	// FormatJSON encodes the body as JSON, it is the default format.
	FormatJSON = BodyFormat("json")
	// FormatForm encodes the body as "application/x-www-form-urlencoded".
	FormatForm = BodyFormat("form_params")
	// FormatMultipart encodes the body and attachments as "multipart/form-data".
	FormatMultipart = BodyFormat("multipart")
)

// Attachment is a file sent in a multipart body.
type Attachment struct {
	Name     string
	Contents []byte
	Filename string
	Header   http.Header
}

// HTTPRequest is an immutable snapshot of a PendingRequest, it is sent by a Sender.
type HTTPRequest interface {
	// Method returns HTTP method in the canonical upper case form.
	Method() string
	// URL method returns a copy of the request URL.
	URL() *url.URL
	// RequestHeader method returns HTTP request headers.
	RequestHeader() http.Header
	// QueryParams method returns query parameters, they are appended to the URL query.
	QueryParams() *pathmap.PathMap
	// RequestBody method returns body parameters.
	// It is nil for methods without body (GET, HEAD), the body must not be sent at all.
	RequestBody() *pathmap.PathMap
	// BodyFormat method returns format of the body.
	BodyFormat() BodyFormat
	// Attachments method returns files for multipart body.
	Attachments() []Attachment
	// Timeout method returns the request timeout, zero means the Sender default.
	Timeout() time.Duration
}

// httpRequest implements HTTPRequest interface.
type httpRequest struct {
	method      string
	url         *url.URL
	header      http.Header
	query       *pathmap.PathMap
	body        *pathmap.PathMap
	bodyFormat  BodyFormat
	attachments []Attachment
	timeout     time.Duration
}

// hasBody returns false for read-only methods, their body is omitted entirely.
func hasBody(method string) bool {
	return method != http.MethodGet && method != http.MethodHead
}

func (r httpRequest) Method() string {
	return r.method
}

func (r httpRequest) URL() *url.URL {
	clone := *r.url
	return &clone
}

func (r httpRequest) RequestHeader() http.Header {
	return r.header
}

func (r httpRequest) QueryParams() *pathmap.PathMap {
	return r.query
}

func (r httpRequest) RequestBody() *pathmap.PathMap {
	return r.body
}

func (r httpRequest) BodyFormat() BodyFormat {
	return r.bodyFormat
}

func (r httpRequest) Attachments() []Attachment {
	return r.attachments
}

func (r httpRequest) Timeout() time.Duration {
	return r.timeout
}
