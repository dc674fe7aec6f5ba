package trace

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync/atomic"
	"time"

	"github.com/plmrlnsnts/http-extended/pkg/request"
)

// LogTracer writes one line per request stage to the writer:
//
//	HTTP_REQUEST[0001] START GET "https://example.com"
//	HTTP_REQUEST[0001] DONE  GET "https://example.com" | 200 | 1.2ms
//	HTTP_REQUEST[0001] BODY  GET "https://example.com" | 2B | 15µs
//
// Each request gets a sequential ID, so concurrent requests can be distinguished.
func LogTracer(wr io.Writer) Factory {
	var lastID atomic.Uint64
	return func(ctx context.Context, reqDef request.HTTPRequest) (context.Context, *ClientTrace) {
		l := &requestLog{wr: wr, id: lastID.Add(1), method: reqDef.Method(), url: reqDef.URL().String()}
		tc := &ClientTrace{
			HTTPRequestStart: l.start,
			HTTPRequestDone:  l.done,
			HTTPRequestRetry: l.retry,
			RequestProcessed: l.processed,
			ResponseBodyDone: l.body,
		}
		tc.ConnectStart = func(string, string) { l.connStart = time.Now() }
		tc.GotConn = l.gotConn
		return ctx, tc
	}
}

// requestLog holds the state of one logical request, method and url are updated on each redirect.
type requestLog struct {
	wr        io.Writer
	id        uint64
	method    string
	url       string
	status    int
	connStart time.Time
	startTime time.Time
	doneTime  time.Time
}

func (l *requestLog) start(req *http.Request) {
	l.method = req.Method
	l.url = req.URL.String()
	l.startTime = time.Now()
	l.logf("START", "")
}

func (l *requestLog) gotConn(info httptrace.GotConnInfo) {
	switch {
	case info.Reused && info.WasIdle:
		l.logf("CONN ", " | reused conn (was idle=%s)", info.IdleTime)
	case info.Reused:
		l.logf("CONN ", " | reused conn")
	default:
		l.logf("CONN ", " | new conn | %s", time.Since(l.connStart))
	}
}

func (l *requestLog) done(res *http.Response, err error) {
	l.doneTime = time.Now()
	if err == nil {
		l.status = res.StatusCode
	}
	l.logf("DONE ", " | %d | %s%s", l.status, l.doneTime.Sub(l.startTime), errSuffix(err))
}

func (l *requestLog) retry(attempt int, delay time.Duration) {
	l.logf("RETRY", " | %dx | %s", attempt, delay)
}

func (l *requestLog) processed(_ *http.Response, err error) {
	if err != nil {
		l.logf("ERROR", " | %s", err)
	}
}

func (l *requestLog) body(_ *http.Response, bytes int64, err error) {
	l.logf("BODY ", " | %dB | %s%s", bytes, time.Since(l.doneTime), errSuffix(err))
}

func (l *requestLog) logf(stage, format string, a ...any) {
	_, _ = fmt.Fprintf(l.wr, "HTTP_REQUEST[%04d] %s %s \"%s\""+format+"\n", append([]any{l.id, stage, l.method, l.url}, a...)...)
}

func errSuffix(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf(" | error=%s", err)
}
