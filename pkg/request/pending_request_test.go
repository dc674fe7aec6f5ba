package request_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plmrlnsnts/http-extended/pkg/client"
	"github.com/plmrlnsnts/http-extended/pkg/pathmap"
	"github.com/plmrlnsnts/http-extended/pkg/request"
)

// senderFunc records the sent definition and returns a static response.
type senderFunc func(ctx context.Context, req request.HTTPRequest) (*http.Response, error)

func (fn senderFunc) Send(ctx context.Context, req request.HTTPRequest) (*http.Response, error) {
	return fn(ctx, req)
}

func TestNewPendingRequest_NilSender(t *testing.T) {
	t.Parallel()
	assert.PanicsWithError(t, "sender cannot be nil", func() {
		request.NewPendingRequest(nil)
	})
}

func TestPendingRequest_Defaults(t *testing.T) {
	t.Parallel()
	r := request.NewPendingRequest(client.NewFake(client.New()))
	assert.Equal(t, request.FormatJSON, r.Format())
	assert.Empty(t, r.URL())
	assert.Empty(t, r.QueryMap())
	assert.Empty(t, r.BodyMap())
	assert.Empty(t, r.Header())
	assert.Nil(t, r.Wrapper())
}

func TestPendingRequest_PostSendsQueryAndBody(t *testing.T) {
	t.Parallel()

	fake := client.NewFake(client.New())
	res, err := request.NewPendingRequest(fake).
		WithURL("http://foo").
		WithQuery("apiKey", "k").
		WithBody("id", "v").
		Execute(context.Background(), "post")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, res.Request().Method())

	sent, found := fake.LastSent()
	require.True(t, found)
	assert.Equal(t, http.MethodPost, sent.Method)
	assert.Equal(t, "http://foo?apiKey=k", sent.URL.String())
	assert.Equal(t, "v", sent.JSON("id").String())
}

func TestPendingRequest_GetOmitsBody(t *testing.T) {
	t.Parallel()

	fake := client.NewFake(client.New())
	res, err := request.NewPendingRequest(fake).
		WithURL("http://foo").
		WithQuery("apiKey", "k").
		WithBody("id", "v").
		Execute(context.Background(), "get")
	require.NoError(t, err)
	assert.Nil(t, res.Request().RequestBody())

	sent, found := fake.LastSent()
	require.True(t, found)
	assert.Equal(t, http.MethodGet, sent.Method)
	assert.Equal(t, "http://foo?apiKey=k", sent.URL.String())
	assert.Empty(t, sent.Body)
}

func TestPendingRequest_HeadOmitsBody(t *testing.T) {
	t.Parallel()

	var sent request.HTTPRequest
	sender := senderFunc(func(_ context.Context, req request.HTTPRequest) (*http.Response, error) {
		sent = req
		return httpmock.NewStringResponse(http.StatusOK, ""), nil
	})
	_, err := request.NewPendingRequest(sender).
		WithBody("id", "v").
		Attach("file", []byte("data"), "a.txt").
		Execute(context.Background(), " Head ")
	require.NoError(t, err)
	assert.Equal(t, http.MethodHead, sent.Method())
	assert.Nil(t, sent.RequestBody())
	assert.Empty(t, sent.Attachments())
}

func TestPendingRequest_EmptyMethod(t *testing.T) {
	t.Parallel()

	fake := client.NewFake(client.New())
	_, err := request.NewPendingRequest(fake).WithURL("http://foo").Execute(context.Background(), " ")
	require.Error(t, err)
	assert.Equal(t, "request method is not set", err.Error())
	assert.Empty(t, fake.Sent())
}

func TestPendingRequest_InvalidURL(t *testing.T) {
	t.Parallel()

	fake := client.NewFake(client.New())
	_, err := request.NewPendingRequest(fake).Get(context.Background(), "http://foo/%zz", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `url "http://foo/%zz" is not valid:`)
	assert.Empty(t, fake.Sent())
}

func TestPendingRequest_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := client.NewFake(client.New())
	called := false
	_, err := request.NewPendingRequest(fake).
		AfterSending(func(context.Context, *request.PendingRequest, *request.Response) error {
			called = true
			return nil
		}).
		Get(ctx, "http://foo", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Empty(t, fake.Sent())
}

func TestPendingRequest_QueryAndBodyAccessors(t *testing.T) {
	t.Parallel()

	r := request.NewPendingRequest(client.NewFake(client.New())).
		WithQuery("page", 1).
		WithQueryMap(map[string]any{"size": 10}).
		WithBody("a", "scalar").
		WithBody("a.b", "x").
		WithBodyMap(map[string]any{"c": true})

	assert.Equal(t, 1, r.Query("page", nil))
	assert.Equal(t, "default", r.Query("missing", "default"))
	assert.Equal(t, map[string]any{"page": 1, "size": 10}, r.QueryMap())

	// Prior scalar is replaced by a map
	assert.Equal(t, map[string]any{"b": "x"}, r.Body("a", nil))
	assert.Equal(t, map[string]any{"a": map[string]any{"b": "x"}, "c": true}, r.BodyMap())

	require.NoError(t, r.IncrementQuery("page", 1))
	assert.Equal(t, 2, r.Query("page", nil))

	err := r.IncrementBody("missing", 1)
	require.Error(t, err)
	var arithmeticErr *pathmap.ArithmeticError
	assert.True(t, errors.As(err, &arithmeticErr))
}

func TestPendingRequest_Headers(t *testing.T) {
	t.Parallel()

	r := request.NewPendingRequest(client.NewFake(client.New())).
		WithHeader("X-Foo", "foo").
		WithHeaders(map[string]string{"X-Bar": "bar"}).
		AcceptJSON().
		ContentType("text/plain")

	assert.Equal(t, http.Header{
		"X-Foo":        []string{"foo"},
		"X-Bar":        []string{"bar"},
		"Accept":       []string{"application/json"},
		"Content-Type": []string{"text/plain"},
	}, r.Header())
}

func TestPendingRequest_BodyFormat(t *testing.T) {
	t.Parallel()

	r := request.NewPendingRequest(client.NewFake(client.New()))
	assert.Equal(t, request.FormatForm, r.AsForm().Format())
	assert.Equal(t, request.FormatMultipart, r.AsMultipart().Format())
	assert.Equal(t, request.FormatJSON, r.AsJSON().Format())
	assert.Equal(t, request.FormatMultipart, r.Attach("file", []byte("x"), "x.txt").Format())
}

func TestPendingRequest_Timeout(t *testing.T) {
	t.Parallel()

	var sent request.HTTPRequest
	sender := senderFunc(func(_ context.Context, req request.HTTPRequest) (*http.Response, error) {
		sent = req
		return httpmock.NewStringResponse(http.StatusOK, ""), nil
	})
	_, err := request.NewPendingRequest(sender).Timeout(5*time.Second).Get(context.Background(), "http://foo", nil)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, sent.Timeout())
}

func TestPendingRequest_SnapshotIsIndependent(t *testing.T) {
	t.Parallel()

	var sent request.HTTPRequest
	sender := senderFunc(func(_ context.Context, req request.HTTPRequest) (*http.Response, error) {
		sent = req
		return httpmock.NewStringResponse(http.StatusOK, ""), nil
	})
	r := request.NewPendingRequest(sender).WithQuery("page", 1).WithHeader("X-Foo", "1")
	_, err := r.Get(context.Background(), "http://foo", nil)
	require.NoError(t, err)

	// Later modifications don't affect the sent request
	r.WithQuery("page", 2).WithHeader("X-Foo", "2")
	assert.Equal(t, 1, sent.QueryParams().Get("page", nil))
	assert.Equal(t, "1", sent.RequestHeader().Get("X-Foo"))
}

func TestPendingRequest_BeforeSending(t *testing.T) {
	t.Parallel()

	fake := client.NewFake(client.New())
	var calls []string
	_, err := request.NewPendingRequest(fake).
		BeforeSending(func(_ context.Context, r *request.PendingRequest) error {
			calls = append(calls, "1")
			r.WithQuery("signature", "abc")
			return nil
		}).
		BeforeSending(func(context.Context, *request.PendingRequest) error {
			calls = append(calls, "2")
			return nil
		}).
		Get(context.Background(), "http://foo", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, calls)

	sent, _ := fake.LastSent()
	assert.Equal(t, "abc", sent.Query().Get("signature"))
}

func TestPendingRequest_BeforeSendingAborts(t *testing.T) {
	t.Parallel()

	fake := client.NewFake(client.New())
	afterCalled := false
	_, err := request.NewPendingRequest(fake).
		BeforeSending(func(context.Context, *request.PendingRequest) error {
			return errors.New("not signed")
		}).
		AfterSending(func(context.Context, *request.PendingRequest, *request.Response) error {
			afterCalled = true
			return nil
		}).
		Get(context.Background(), "http://foo", nil)
	require.Error(t, err)
	assert.Equal(t, "not signed", err.Error())
	assert.False(t, afterCalled)
	assert.Empty(t, fake.Sent())
}

func TestPendingRequest_AfterSending(t *testing.T) {
	t.Parallel()

	fake := client.NewFake(client.New())
	fake.Mock().RegisterResponder("GET", "http://foo", httpmock.NewStringResponder(200, `{"id":123}`))

	var calls []string
	r := request.NewPendingRequest(fake)
	r.AfterSending(func(context.Context, *request.PendingRequest, *request.Response) error {
		calls = append(calls, "first")
		return nil
	})
	r.AfterSending(func(_ context.Context, builder *request.PendingRequest, response *request.Response) error {
		// Invoked with the builder and the completed response
		assert.Same(t, r, builder)
		assert.Equal(t, int64(123), response.JSON("id").Int())
		calls = append(calls, "second")
		return nil
	})

	res, err := r.Get(context.Background(), "http://foo", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"id":123}`, res.String())

	// Only the latest callback runs, exactly once
	assert.Equal(t, []string{"second"}, calls)
}

func TestPendingRequest_AfterSendingError(t *testing.T) {
	t.Parallel()

	fake := client.NewFake(client.New())
	res, err := request.NewPendingRequest(fake).
		AfterSending(func(context.Context, *request.PendingRequest, *request.Response) error {
			return errors.New("invalid response")
		}).
		Get(context.Background(), "http://foo", nil)
	require.Error(t, err)
	assert.Equal(t, "invalid response", err.Error())
	assert.NotNil(t, res)
}

func TestPendingRequest_TransportErrorSkipsAfterSending(t *testing.T) {
	t.Parallel()

	fake := client.NewFake(client.New().WithStatusErrors(true))
	fake.Mock().RegisterResponder("GET", "http://foo", httpmock.NewStringResponder(http.StatusNotFound, "missing"))
	fake.Mock().RegisterResponder("GET", "http://bar", httpmock.NewErrorResponder(errors.New("connection refused")))

	called := false
	after := func(context.Context, *request.PendingRequest, *request.Response) error {
		called = true
		return nil
	}

	// Status error, response is returned together with the error
	res, err := request.NewPendingRequest(fake).AfterSending(after).Get(context.Background(), "http://foo", nil)
	require.Error(t, err)
	var httpErr *client.HTTPError
	assert.True(t, errors.As(err, &httpErr))
	require.NotNil(t, res)
	assert.Equal(t, "missing", res.String())
	assert.False(t, called)

	// Network error, no response
	res, err = request.NewPendingRequest(fake).AfterSending(after).Get(context.Background(), "http://bar", nil)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "connection refused")
	assert.False(t, called)
}

func TestPendingRequest_RepeatedExecute(t *testing.T) {
	t.Parallel()

	fake := client.NewFake(client.New())
	r := request.NewPendingRequest(fake).WithURL("http://foo").WithQuery("page", 1)
	_, err := r.Execute(context.Background(), http.MethodGet)
	require.NoError(t, err)
	require.NoError(t, r.IncrementQuery("page", 1))
	_, err = r.Execute(context.Background(), http.MethodGet)
	require.NoError(t, err)

	// Each call sends the current state
	sent := fake.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "1", sent[0].Query().Get("page"))
	assert.Equal(t, "2", sent[1].Query().Get("page"))
}

func TestPendingRequest_Verbs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fake := client.NewFake(client.New().WithBaseURL("https://example.com"))

	_, err := request.NewPendingRequest(fake).Get(ctx, "/a", map[string]any{"q": 1})
	require.NoError(t, err)
	_, err = request.NewPendingRequest(fake).Head(ctx, "/a", nil)
	require.NoError(t, err)
	_, err = request.NewPendingRequest(fake).Post(ctx, "/a", map[string]any{"x": 1})
	require.NoError(t, err)
	_, err = request.NewPendingRequest(fake).Put(ctx, "/a", map[string]any{"x": 2})
	require.NoError(t, err)
	_, err = request.NewPendingRequest(fake).Patch(ctx, "/a", map[string]any{"x": 3})
	require.NoError(t, err)
	_, err = request.NewPendingRequest(fake).Delete(ctx, "/a", nil)
	require.NoError(t, err)
	_, err = request.NewPendingRequest(fake).Send(ctx, "options", "/a")
	require.NoError(t, err)

	var methods []string
	for _, r := range fake.Sent() {
		methods = append(methods, r.Method)
		assert.Equal(t, "https://example.com/a", r.URL.Scheme+"://"+r.URL.Host+r.URL.Path)
	}
	assert.Equal(t, []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}, methods)

	sent := fake.Sent()
	assert.Equal(t, "1", sent[0].Query().Get("q"))
	assert.Equal(t, `{"x":3}`, string(sent[4].Body))
}
