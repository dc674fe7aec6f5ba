package client_test

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"

	. "github.com/plmrlnsnts/http-extended/pkg/client"
	. "github.com/plmrlnsnts/http-extended/pkg/client/trace"
	. "github.com/plmrlnsnts/http-extended/pkg/request"
)

func TestRetryCount(t *testing.T) {
	t.Parallel()

	// Mocked response
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `https://example.com`, httpmock.NewStringResponder(504, "test"))

	// Setup
	retryCount := 10
	var delays []time.Duration

	// Create client
	ctx := context.Background()
	c := New().
		WithTransport(transport).
		WithStatusErrors(true).
		WithRetry(RetryConfig{
			Condition:     DefaultRetryCondition(),
			Count:         retryCount,
			WaitTimeStart: 1 * time.Microsecond,
			WaitTimeMax:   20 * time.Microsecond,
		}).
		AndTrace(func(ctx context.Context, _ HTTPRequest) (context.Context, *ClientTrace) {
			return ctx, &ClientTrace{
				HTTPRequestRetry: func(_ int, delay time.Duration) {
					delays = append(delays, delay)
				},
			}
		})

	// Get
	res, err := NewPendingRequest(c).Get(ctx, "https://example.com", nil)
	assert.Error(t, err)
	assert.Equal(t, `request GET "https://example.com" failed: 504 Gateway Timeout`, err.Error())

	// Check context
	if assert.NotNil(t, res) {
		assert.Equal(t, "test", res.String())
		attempt, found := ContextRetryAttempt(res.RawRequest().Context())
		assert.True(t, found)
		assert.Equal(t, retryCount, attempt)
	}

	// Check number of requests
	assert.Equal(t, 1+retryCount, transport.GetCallCountInfo()["GET https://example.com"])

	// Check delays
	assert.Equal(t, []time.Duration{
		1 * time.Microsecond,
		2 * time.Microsecond,
		4 * time.Microsecond,
		8 * time.Microsecond,
		16 * time.Microsecond,
		20 * time.Microsecond,
		20 * time.Microsecond,
		20 * time.Microsecond,
		20 * time.Microsecond,
		20 * time.Microsecond,
	}, delays)
}

func TestRetryBodyRewind(t *testing.T) {
	t.Parallel()

	// Mocked response
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("POST", `https://example.com`, func(req *http.Request) (*http.Response, error) {
		requestBody, err := io.ReadAll(req.Body)
		assert.NoError(t, err)
		// Each retry attempt must send same body
		assert.Equal(t, `{"foo":"bar"}`, string(requestBody))
		return httpmock.NewStringResponse(502, "retry!"), nil
	})

	// Create client
	ctx := context.Background()
	c := New().
		WithTransport(transport).
		WithStatusErrors(true).
		WithRetry(TestingRetry())

	// Post
	_, err := NewPendingRequest(c).Post(ctx, "https://example.com", map[string]any{"foo": "bar"})
	assert.Error(t, err)
	assert.Equal(t, `request POST "https://example.com" failed: 502 Bad Gateway`, err.Error())

	// Check number of requests
	assert.Equal(t, 1+5, transport.GetCallCountInfo()["POST https://example.com"])
}

func TestDoNotRetry(t *testing.T) {
	t.Parallel()

	// Mocked response
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://example.com", httpmock.NewStringResponder(403, "test"))

	// Setup
	var delays []time.Duration

	// Create client
	ctx := context.Background()
	c := New().
		WithTransport(transport).
		WithStatusErrors(true).
		WithRetry(RetryConfig{
			Condition:     DefaultRetryCondition(),
			Count:         10,
			WaitTimeStart: 1 * time.Microsecond,
			WaitTimeMax:   20 * time.Microsecond,
		}).
		AndTrace(func(ctx context.Context, _ HTTPRequest) (context.Context, *ClientTrace) {
			return ctx, &ClientTrace{
				HTTPRequestRetry: func(_ int, delay time.Duration) {
					delays = append(delays, delay)
				},
			}
		})

	// Get
	_, err := NewPendingRequest(c).Get(ctx, "https://example.com", nil)
	assert.Error(t, err)
	assert.Equal(t, `request GET "https://example.com" failed: 403 Forbidden`, err.Error())

	// Check number of requests
	assert.Equal(t, 1, transport.GetCallCountInfo()["GET https://example.com"])

	// Check delays
	assert.Empty(t, delays)
}

func TestDefaultRetryCondition(t *testing.T) {
	t.Parallel()

	cond := DefaultRetryCondition()
	assert.True(t, cond(&http.Response{StatusCode: http.StatusServiceUnavailable}, nil))
	assert.True(t, cond(&http.Response{StatusCode: http.StatusTooManyRequests}, nil))
	assert.False(t, cond(&http.Response{StatusCode: http.StatusOK}, nil))
	assert.False(t, cond(&http.Response{StatusCode: http.StatusNotFound}, nil))
	assert.True(t, cond(nil, io.ErrUnexpectedEOF))
	assert.False(t, cond(nil, &hostNotFoundError{}))
}

type hostNotFoundError struct{}

func (*hostNotFoundError) Error() string {
	return "dial tcp: lookup foo.invalid: no such host"
}

func TestRetryOnStatus(t *testing.T) {
	t.Parallel()

	cond := RetryOnStatus(http.StatusNotFound)
	assert.True(t, cond(&http.Response{StatusCode: http.StatusNotFound}, nil))
	assert.False(t, cond(&http.Response{StatusCode: http.StatusServiceUnavailable}, nil))
	assert.False(t, cond(nil, io.ErrUnexpectedEOF))
}
