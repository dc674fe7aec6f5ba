package trace

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"
	"time"

	"github.com/plmrlnsnts/http-extended/pkg/client/decode"
	"github.com/plmrlnsnts/http-extended/pkg/request"
)

// DumpTraceFullEnv disables truncation of long dumped bodies, if it is set to "true".
const DumpTraceFullEnv = "HTTP_DUMP_TRACE_FULL"

const dumpTraceMaxLength = 2000

// DumpTracer dumps each HTTP request and response, including redirects and retries, to the writer.
// Output may contain unmasked tokens, do not use it in production!
func DumpTracer(wr io.Writer) Factory {
	return func(ctx context.Context, _ request.HTTPRequest) (context.Context, *ClientTrace) {
		d := &requestDump{wr: wr}
		return ctx, &ClientTrace{
			HTTPRequestStart: d.start,
			HTTPRequestDone:  d.done,
			HTTPRequestRetry: d.retry,
			RequestProcessed: d.processed,
		}
	}
}

// requestDump holds the state of one logical request.
type requestDump struct {
	wr          io.Writer
	method      string
	uri         string
	statusCode  int
	dumpedReq   []byte
	lastErr     error
	startTime   time.Time
	headersTime time.Time
}

func (d *requestDump) start(req *http.Request) {
	d.startTime = time.Now()
	d.method = req.Method
	d.uri = req.URL.RequestURI()
	d.dumpedReq, _ = httputil.DumpRequestOut(req, true)
}

func (d *requestDump) done(res *http.Response, err error) {
	// Response is nil on a network error
	if res != nil {
		d.statusCode = res.StatusCode
		d.headersTime = time.Now()
	}
	d.lastErr = err

	d.println()
	d.println(">>>>>> HTTP DUMP")
	d.printBody(string(d.dumpedReq))
	d.println("------")
	switch {
	case err != nil:
		d.println("ERROR: ", err)
	default:
		if headers, dumpErr := httputil.DumpResponse(res, false); dumpErr == nil {
			d.println(strings.TrimSpace(string(headers)))
		} else {
			d.println("cannot dump response headers: ", dumpErr)
		}
		if res.Body != nil {
			d.println("------")
			d.printBody(readBody(res))
		}
	}
	d.println("<<<<<< HTTP DUMP END")
}

func (d *requestDump) retry(attempt int, delay time.Duration) {
	d.println()
	d.println(">>>>>> HTTP RETRY", "| ATTEMPT:", attempt, "| DELAY:", delay, "| ", d.method, d.uri, d.statusCode, "| ERROR:", d.lastErr)
}

func (d *requestDump) processed(_ *http.Response, err error) {
	if err != nil {
		d.lastErr = err
	}
	d.println()
	d.println(">>>>>> HTTP REQUEST PROCESSED", "| ", d.method, d.uri, d.statusCode, "| ERROR:", d.lastErr, "| HEADERS AT:", d.headersTime.Sub(d.startTime), "| DONE AT:", time.Since(d.startTime))
}

func (d *requestDump) printBody(body string) {
	body = strings.TrimSpace(body)
	if len(body) > dumpTraceMaxLength && os.Getenv(DumpTraceFullEnv) != "true" { //nolint:forbidigo
		d.println(body[:dumpTraceMaxLength])
		d.println("... (set env " + DumpTraceFullEnv + "=true to see full output)")
		return
	}
	d.println(body)
}

func (d *requestDump) println(a ...any) {
	_, _ = fmt.Fprintln(d.wr, a...)
}

// readBody returns the decoded body, the response body is replaced by the buffered raw body.
func readBody(res *http.Response) string {
	var raw bytes.Buffer
	defer func() {
		res.Body = io.NopCloser(bytes.NewReader(raw.Bytes()))
	}()

	decoded, err := decode.Decode(io.NopCloser(io.TeeReader(res.Body, &raw)), res.Header.Get("Content-Encoding"))
	if err != nil {
		// Buffer the rest of the raw body
		_, _ = io.Copy(io.Discard, io.TeeReader(res.Body, &raw))
		return fmt.Sprintf("cannot read response body: %s", err)
	}
	var out strings.Builder
	if _, err := io.Copy(&out, decoded); err != nil {
		return fmt.Sprintf("cannot read response body: %s", err)
	}
	return out.String()
}
