package request

import (
	"fmt"
	"io"
	"mime"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"
	"github.com/umisama/go-regexpcache"
)

// ContentTypeJSONRegexp matches "application/json" and "application/*+json" media types.
const ContentTypeJSONRegexp = `^application/([a-zA-Z0-9\.\-]+\+)?json$`

// jsonAPI decodes response bodies, it is compatible with encoding/json.
var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals

// Response is a completed HTTP response with the body read into memory.
type Response struct {
	request     HTTPRequest
	rawResponse *http.Response
	body        []byte
}

// NewResponse reads and closes body of the raw response.
func NewResponse(request HTTPRequest, rawResponse *http.Response) (*Response, error) {
	out := &Response{request: request, rawResponse: rawResponse}
	if rawResponse.Body != nil {
		defer rawResponse.Body.Close()
		body, err := io.ReadAll(rawResponse.Body)
		if err != nil {
			return nil, fmt.Errorf(`cannot read response body of %s "%s": %w`, request.Method(), request.URL(), err)
		}
		out.body = body
	}
	return out, nil
}

// Request method returns the sent request definition.
func (r *Response) Request() HTTPRequest {
	return r.request
}

// StatusCode method returns HTTP status code.
func (r *Response) StatusCode() int {
	return r.rawResponse.StatusCode
}

// Header method returns HTTP response headers.
func (r *Response) Header() http.Header {
	return r.rawResponse.Header
}

// Body method returns the response body, decoded according to the Content-Encoding.
func (r *Response) Body() []byte {
	return r.body
}

func (r *Response) String() string {
	return string(r.body)
}

// JSON method returns value at the path in the JSON body, the syntax is described in the gjson package.
// An empty path returns the whole document.
func (r *Response) JSON(path string) gjson.Result {
	if path == "" {
		return gjson.ParseBytes(r.body)
	}
	return gjson.GetBytes(r.body, path)
}

// Decode method decodes the JSON body to the target value.
func (r *Response) Decode(target any) error {
	if err := jsonAPI.Unmarshal(r.body, target); err != nil {
		return fmt.Errorf(`cannot decode JSON body: %w`, err)
	}
	return nil
}

// IsJSON method returns true if the response Content-Type is a JSON media type.
func (r *Response) IsJSON() bool {
	mediaType, _, err := mime.ParseMediaType(r.Header().Get("Content-Type"))
	if err != nil {
		return false
	}
	return regexpcache.MustCompile(ContentTypeJSONRegexp).MatchString(mediaType)
}

// IsSuccess method returns true if HTTP status `code >= 200 and <= 299` otherwise false.
func (r *Response) IsSuccess() bool {
	return r.StatusCode() > 199 && r.StatusCode() < 300
}

// IsRedirect method returns true if HTTP status `code >= 300 and <= 399` otherwise false.
func (r *Response) IsRedirect() bool {
	return r.StatusCode() > 299 && r.StatusCode() < 400
}

// IsClientError method returns true if HTTP status `code >= 400 and <= 499` otherwise false.
func (r *Response) IsClientError() bool {
	return r.StatusCode() > 399 && r.StatusCode() < 500
}

// IsServerError method returns true if HTTP status `code >= 500` otherwise false.
func (r *Response) IsServerError() bool {
	return r.StatusCode() > 499
}

// IsError method returns true if HTTP status `code >= 400` otherwise false.
func (r *Response) IsError() bool {
	return r.StatusCode() > 399
}

// RawRequest method returns the standard HTTP request, from the last retry attempt.
func (r *Response) RawRequest() *http.Request {
	return r.rawResponse.Request
}

// RawResponse method returns the standard HTTP response, its body is already closed.
func (r *Response) RawResponse() *http.Response {
	return r.rawResponse
}
