// Package client provides Client, the default implementation of the request.Sender interface.
//
// Client is based on the standard net/http package and contains retry and tracing/telemetry support.
// It converts an immutable request.HTTPRequest to a *http.Request:
//   - The request URL is resolved against the base URL, see WithBaseURL.
//   - Query parameters are appended to the URL query, nested values use the bracket notation.
//   - Body parameters are encoded according to the body format: JSON, form or multipart.
//   - The Content-Type header is derived from the body format, if it is not set explicitly.
//
// The response body is decompressed (gzip, br) and it is read by the caller.
//
// It is easy to implement your custom HTTP client, by implementing the request.Sender interface.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	otelMetric "go.opentelemetry.io/otel/metric"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/plmrlnsnts/http-extended/pkg/client/counter"
	"github.com/plmrlnsnts/http-extended/pkg/client/decode"
	"github.com/plmrlnsnts/http-extended/pkg/client/trace"
	"github.com/plmrlnsnts/http-extended/pkg/client/trace/otel"
	"github.com/plmrlnsnts/http-extended/pkg/request"
)

// DefaultUserAgent is sent, if no other User-Agent is configured.
const DefaultUserAgent = "http-extended"

// Client is a default and configurable implementation of the request.Sender interface by Go native http.Client.
// It supports retry and tracing/telemetry.
type Client struct {
	transport      http.RoundTripper
	baseURL        *url.URL
	header         http.Header
	retry          RetryConfig
	statusErrors   bool
	traceFactories []trace.Factory
}

// HTTPError is returned by the Client configured by WithStatusErrors, if the response status code is >= 400.
// The response is returned together with the error.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf(`request %s "%s" failed: %d %s`, e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// New creates new HTTP Client.
func New() Client {
	c := Client{transport: DefaultTransport(), header: make(http.Header), retry: DefaultRetry()}
	c.header.Set("User-Agent", DefaultUserAgent)
	c.header.Set("Accept-Encoding", "gzip, br")
	return c
}

// WithBaseURL returns a clone of the Client with base url set.
// Relative request URLs are resolved against the base URL.
func (c Client) WithBaseURL(baseURLStr string) Client {
	baseURL, err := url.Parse(baseURLStr)
	if err != nil {
		panic(fmt.Errorf(`base url "%s" is not valid: %w`, baseURLStr, err))
	}
	c.baseURL = baseURL
	return c
}

// WithUserAgent returns a clone of the Client with user agent set.
func (c Client) WithUserAgent(v string) Client {
	return c.WithHeader("User-Agent", v)
}

// WithHeader returns a clone of the Client with common header set.
func (c Client) WithHeader(key, value string) Client {
	c.header = c.header.Clone()
	c.header.Set(key, value)
	return c
}

// WithHeaders returns a clone of the Client with common headers set.
func (c Client) WithHeaders(headers map[string]string) Client {
	c.header = c.header.Clone()
	for k, v := range headers {
		c.header.Set(k, v)
	}
	return c
}

// WithTransport returns a clone of the Client with a HTTP transport set.
func (c Client) WithTransport(transport http.RoundTripper) Client {
	if transport == nil {
		panic(fmt.Errorf("transport cannot be nil"))
	}
	c.transport = transport
	return c
}

// WithRetry returns a clone of the Client with retry config set.
func (c Client) WithRetry(retry RetryConfig) Client {
	c.retry = retry
	return c
}

// WithStatusErrors returns a clone of the Client, which returns *HTTPError together with the response,
// if the HTTP status code is >= 400.
func (c Client) WithStatusErrors(enabled bool) Client {
	c.statusErrors = enabled
	return c
}

// AndTrace returns a clone of the Client with Trace hooks added.
// Hooks are invoked in the registration order.
func (c Client) AndTrace(fn trace.Factory) Client {
	c.traceFactories = append(append([]trace.Factory(nil), c.traceFactories...), fn)
	return c
}

// WithTelemetry returns a clone of the Client with OpenTelemetry tracing and metrics, see the otel package.
func (c Client) WithTelemetry(tracerProvider otelTrace.TracerProvider, meterProvider otelMetric.MeterProvider, opts ...otel.Option) Client {
	return c.AndTrace(otel.NewTrace(tracerProvider, meterProvider, opts...))
}

// Send method sends HTTP request and returns HTTP response, it implements the request.Sender interface.
// The response body must be closed by the caller.
func (c Client) Send(ctx context.Context, reqDef request.HTTPRequest) (res *http.Response, err error) {
	// Method cannot be called on an empty value
	if c.transport == nil {
		panic(fmt.Errorf("client value is not initialized"))
	}

	// Request timeout, the context is cancelled when the response body is closed
	cancel := context.CancelFunc(func() {})
	if timeout := reqDef.Timeout(); timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	// Init trace
	ctx, tc := c.newTrace(ctx, reqDef)

	// Trace request processed
	defer func() {
		if res == nil {
			cancel()
		}
		if tc != nil && tc.RequestProcessed != nil {
			tc.RequestProcessed(res, err)
		}
	}()

	// Create request
	req, err := c.newRequest(ctx, reqDef)
	if err != nil {
		return nil, err
	}

	// Setup native client
	nativeClient := http.Client{
		Timeout:   c.retry.TotalRequestTimeout,
		Transport: roundTripper{retry: c.retry, trace: tc, wrapped: c.transport}, // wrapped transport for trace/retry
	}

	// Send request
	startedAt := time.Now()
	res, err = nativeClient.Do(req)

	// Handle send error
	if err != nil {
		return nil, handleSendError(startedAt, c.retry.TotalRequestTimeout, req, err)
	}

	// Process content encoding
	if contentEncoding := res.Header.Get("Content-Encoding"); decode.Supported(contentEncoding) {
		body, decodeErr := decode.Decode(res.Body, contentEncoding)
		if decodeErr != nil {
			_ = res.Body.Close()
			res = nil
			return nil, fmt.Errorf(`cannot process request %s "%s": %w`, req.Method, req.URL.String(), decodeErr)
		}
		res.Body = body
		res.Header.Del("Content-Encoding")
		res.Header.Del("Content-Length")
		res.ContentLength = -1
		res.Uncompressed = true
	}

	// Measure response body
	rawResponse := res
	res.Body = counter.NewReadCloser(res.Body, func(bytes int64, bodyErr error) {
		cancel()
		if tc != nil && tc.ResponseBodyDone != nil {
			tc.ResponseBodyDone(rawResponse, bytes, bodyErr)
		}
	})

	// Generic HTTP error
	if c.statusErrors && res.StatusCode > 399 {
		return res, &HTTPError{Method: req.Method, URL: req.URL.String(), StatusCode: res.StatusCode}
	}

	return res, nil
}

func (c Client) newTrace(ctx context.Context, reqDef request.HTTPRequest) (context.Context, *trace.ClientTrace) {
	var out *trace.ClientTrace
	for _, fn := range c.traceFactories {
		var tc *trace.ClientTrace
		ctx, tc = fn(ctx, reqDef)
		if tc == nil {
			continue
		}
		// Native hooks are composed by the httptrace package
		ctx = httptrace.WithClientTrace(ctx, &tc.ClientTrace)
		tc.Compose(out)
		out = tc
	}
	return ctx, out
}

func (c Client) newRequest(ctx context.Context, reqDef request.HTTPRequest) (*http.Request, error) {
	method := reqDef.Method()

	// Convert to absolute url
	reqURL := reqDef.URL()
	if c.baseURL != nil {
		reqURL = c.baseURL.ResolveReference(reqURL)
	}

	// Append query parameters, the URL query is kept
	if query := reqDef.QueryParams().Encode(); query != "" {
		if reqURL.RawQuery == "" {
			reqURL.RawQuery = query
		} else {
			reqURL.RawQuery += "&" + query
		}
	}

	// Create request
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), nil)
	if err != nil {
		return nil, err
	}

	// Global headers
	for k, values := range c.header {
		for _, v := range values {
			req.Header.Set(k, v)
		}
	}

	// Request headers
	for k, values := range reqDef.RequestHeader() {
		req.Header.Del(k) // clear global values
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	// Body, it is omitted for GET and HEAD methods
	if params := reqDef.RequestBody(); params != nil {
		body, contentType, err := encodeBody(reqDef.BodyFormat(), params, reqDef.Attachments())
		if err != nil {
			return nil, fmt.Errorf(`request %s "%s": cannot prepare request body: %w`, req.Method, req.URL.String(), err)
		}
		if req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", contentType)
		}
		// GetBody factory is used for requests when a redirect/retry requires reading the body more than once.
		req.GetBody = func() (io.ReadCloser, error) {
			if len(body) == 0 {
				return http.NoBody, nil
			}
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		req.Body, _ = req.GetBody()
		req.ContentLength = int64(len(body))
	}

	return req, nil
}

func handleSendError(startedAt time.Time, clientTimeout time.Duration, req *http.Request, err error) error {
	// Timeout
	var netErr net.Error
	if deadline, ok := req.Context().Deadline(); ok && errors.Is(err, context.DeadlineExceeded) {
		err = urlError(req, fmt.Errorf("timeout after %s", deadline.Sub(startedAt)))
	} else if errors.Is(err, context.Canceled) {
		err = urlError(req, fmt.Errorf("canceled after %s", time.Since(startedAt)))
	} else if errors.As(err, &netErr) && netErr.Timeout() {
		if strings.Contains(err.Error(), "Client.Timeout exceeded") {
			err = urlError(req, fmt.Errorf("timeout after %s", clientTimeout))
		} else {
			err = urlError(req, fmt.Errorf("timeout after %s", time.Since(startedAt)))
		}
	}

	// Url error
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = fmt.Errorf(`request %s "%s" failed: %w`, strings.ToUpper(urlErr.Op), urlErr.URL, urlErr.Err)
	}

	return err
}

type retryAttemptCtxKey struct{}

// ContextRetryAttempt returns the retry attempt number from the context of a retried *http.Request.
func ContextRetryAttempt(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(retryAttemptCtxKey{}).(int)
	return v, ok
}

// roundTripper wraps a http.RoundTripper and adds trace and retry functionality.
type roundTripper struct {
	trace   *trace.ClientTrace
	retry   RetryConfig
	wrapped http.RoundTripper
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	state := rt.retry.NewBackoff()
	attempt := 0
	for {
		// Trace request start
		if rt.trace != nil && rt.trace.HTTPRequestStart != nil {
			rt.trace.HTTPRequestStart(req)
		}

		// Send
		res, err := rt.wrapped.RoundTrip(req)

		// Trace request done
		if rt.trace != nil && rt.trace.HTTPRequestDone != nil {
			rt.trace.HTTPRequestDone(res, err)
		}

		// Check if we should retry
		if rt.retry.Condition == nil || !rt.retry.Condition(res, err) || attempt >= rt.retry.Count {
			// No retry
			return res, err
		}

		// Get next delay
		delay := state.NextBackOff()
		if delay == backoff.Stop {
			// Stop
			return res, err
		}

		// Discard the response, it is replaced by the next attempt
		if res != nil && res.Body != nil {
			_, _ = io.Copy(io.Discard, res.Body)
			_ = res.Body.Close()
		}

		// Trace retry
		attempt++
		if rt.trace != nil && rt.trace.HTTPRequestRetry != nil {
			rt.trace.HTTPRequestRetry(attempt, delay)
		}

		// Store attempt number to the context
		req = req.WithContext(context.WithValue(req.Context(), retryAttemptCtxKey{}, attempt))

		// Rewind body before retry
		if req.GetBody != nil {
			req.Body, err = req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("cannot rewind body: %w", err)
			}
		}

		// Wait
		select {
		case <-req.Context().Done():
			// context is canceled
			return nil, req.Context().Err()
		case <-time.After(delay):
			// time elapsed, retry
		}
	}
}

func urlError(req *http.Request, err error) *url.Error {
	return &url.Error{Op: req.Method, URL: req.URL.String(), Err: err}
}
