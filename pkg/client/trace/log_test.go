package trace_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/keboola/go-utils/pkg/wildcards"
	"github.com/stretchr/testify/assert"

	"github.com/plmrlnsnts/http-extended/pkg/client"
	"github.com/plmrlnsnts/http-extended/pkg/client/trace"
	"github.com/plmrlnsnts/http-extended/pkg/request"
)

func TestLogTracer(t *testing.T) {
	t.Parallel()

	// Mocked response
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `https://example.com`, httpmock.ResponderFromMultipleResponses([]*http.Response{
		{StatusCode: http.StatusLocked},
		{StatusCode: http.StatusTooManyRequests},
		{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("OK1"))},
		{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("OK2"))},
	}))

	// Logs for trace testing
	var logs strings.Builder

	// Create client
	ctx := context.Background()
	c := client.New().
		WithTransport(transport).
		WithRetry(client.TestingRetry()).
		AndTrace(trace.LogTracer(&logs))

	// Expected trace
	expected := `
HTTP_REQUEST[0001] START GET "https://example.com"
HTTP_REQUEST[0001] DONE  GET "https://example.com" | 423 | %s
HTTP_REQUEST[0001] RETRY GET "https://example.com" | 1x | 1ms
HTTP_REQUEST[0001] START GET "https://example.com"
HTTP_REQUEST[0001] DONE  GET "https://example.com" | 429 | %s
HTTP_REQUEST[0001] RETRY GET "https://example.com" | 2x | 1ms
HTTP_REQUEST[0001] START GET "https://example.com"
HTTP_REQUEST[0001] DONE  GET "https://example.com" | 200 | %s
HTTP_REQUEST[0001] BODY  GET "https://example.com" | 3B | %s
HTTP_REQUEST[0002] START GET "https://example.com"
HTTP_REQUEST[0002] DONE  GET "https://example.com" | 200 | %s
HTTP_REQUEST[0002] BODY  GET "https://example.com" | 3B | %s
`

	// Test
	res, err := request.NewPendingRequest(c).Get(ctx, "https://example.com", nil)
	assert.NoError(t, err)
	assert.Equal(t, "OK1", res.String())
	res, err = request.NewPendingRequest(c).Get(ctx, "https://example.com", nil)
	assert.NoError(t, err)
	assert.Equal(t, "OK2", res.String())
	wildcards.Assert(t, strings.TrimLeft(expected, "\n"), logs.String())
}

func TestLogTracer_Error(t *testing.T) {
	t.Parallel()

	// Mocked response
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `https://example.com`, httpmock.NewStringResponder(http.StatusNotFound, "not found"))

	var logs strings.Builder
	c := client.New().
		WithTransport(transport).
		WithRetry(client.TestingRetry()).
		WithStatusErrors(true).
		AndTrace(trace.LogTracer(&logs))

	expected := `
HTTP_REQUEST[0001] START GET "https://example.com"
HTTP_REQUEST[0001] DONE  GET "https://example.com" | 404 | %s
HTTP_REQUEST[0001] ERROR GET "https://example.com" | request GET "https://example.com" failed: 404 Not Found
HTTP_REQUEST[0001] BODY  GET "https://example.com" | 9B | %s
`

	res, err := request.NewPendingRequest(c).Get(context.Background(), "https://example.com", nil)
	assert.Error(t, err)
	assert.Equal(t, "not found", res.String())
	wildcards.Assert(t, strings.TrimLeft(expected, "\n"), logs.String())
}
