// Package otel provides OpenTelemetry tracing and metrics for HTTP client requests.
//
// The package provides 3 levels of telemetry:
//
// 1. Low-level telemetry based on the [httptrace] hooks:
//   - It provides spans for HTTP request parts, for example: "http.dns", "http.tls", "http.getconn".
//   - Span names start with "http".
//   - Metrics are not provided.
//
// 2. HTTP request telemetry:
//   - It provides span and metrics for every sent HTTP request, including redirects and retries.
//   - Span name is "http.request".
//   - Metrics names start with "http." (httpPrefix const).
//
// 3. Client request telemetry:
//   - It provides span and metrics for each "logical" request sent by the client.
//   - Main span "http-extended.client.request" wraps all redirects, retries and the response body reading.
//   - Span "http-extended.client.response.body" tracks reading of the final response body.
//   - Span "http-extended.client.retry.delay" tracks delay before retry.
//   - Metrics names start with "http-extended.client." (clientPrefix const).
//
// [httptrace]: https://pkg.go.dev/net/http/httptrace
package otel

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelMetric "go.opentelemetry.io/otel/metric"
	metricNoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	otelTrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/plmrlnsnts/http-extended/pkg/client/trace"
	"github.com/plmrlnsnts/http-extended/pkg/request"
)

const (
	traceAppName     = "github.com/plmrlnsnts/http-extended"
	attrResourceName = attribute.Key("resource.name")
	// Metrics.
	clientPrefix = "http-extended.client."
	httpPrefix   = "http."
	// Low-level tracing, for each redirect and retry.
	httpSpanPrefix             = "http."
	httpRequestSpanName        = httpSpanPrefix + "request"
	httpDNSSpanName            = httpSpanPrefix + "dns"
	httpGetConnSpanName        = httpSpanPrefix + "getconn"
	httpConnectSpanName        = httpSpanPrefix + "connect"
	httpTLSHandshakeSpanName   = httpSpanPrefix + "tls"
	httpHeadersSpanName        = httpSpanPrefix + "headers"
	httpSendSpanName           = httpSpanPrefix + "send"
	httpReceiveSpanName        = httpSpanPrefix + "receive"
	attrDNSAddresses           = attribute.Key("http.dns.addrs")
	attrRemoteAddr             = attribute.Key("http.remote")
	attrLocalAddr              = attribute.Key("http.local")
	attrConnectionReused       = attribute.Key("http.conn.reused")
	attrConnectionWasIdle      = attribute.Key("http.conn.wasidle")
	attrConnectionIdleTime     = attribute.Key("http.conn.idletime")
	attrConnectionStartNetwork = attribute.Key("http.conn.start.network")
	attrConnectionDoneNetwork  = attribute.Key("http.conn.done.network")
	attrConnectionDoneAddr     = attribute.Key("http.conn.done.addr")
	attrReadBytes              = attribute.Key("http.read_bytes")
	// High-level tracing.
	clientSpanPrefix           = "http-extended.client."
	clientRequestSpanName      = clientSpanPrefix + "request"
	clientResponseBodySpanName = clientSpanPrefix + "response.body"
	clientRetryDelaySpanName   = clientSpanPrefix + "retry.delay"
	// Extra attributes for DataDog.
	attrSpanKind            = attribute.Key("span.kind")
	attrSpanKindValueClient = "client"
	attrSpanType            = attribute.Key("span.type")
	attrSpanTypeValueHTTP   = "http"
)

// NewTrace creates a trace.Factory, which reports spans and metrics of each request.
// Noop providers are used for nil values.
func NewTrace(tracerProvider otelTrace.TracerProvider, meterProvider otelMetric.MeterProvider, opts ...Option) trace.Factory {
	if tracerProvider == nil {
		tracerProvider = noop.NewTracerProvider()
	}
	if meterProvider == nil {
		meterProvider = metricNoop.NewMeterProvider()
	}
	cfg := newConfig(opts)
	tracer := tracerProvider.Tracer(traceAppName)
	meters := newMeters(meterProvider.Meter(traceAppName))
	return func(ctx context.Context, reqDef request.HTTPRequest) (context.Context, *trace.ClientTrace) {
		rt := &requestTrace{cfg: cfg, tracer: tracer, meters: meters, attrs: newAttributes(cfg, reqDef)}
		return rt.start(ctx), rt.clientTrace()
	}
}

// requestTrace holds the state of one logical request, it may consist of multiple HTTP requests (redirects, retries).
// Hooks of one request are not invoked concurrently.
type requestTrace struct {
	cfg    config
	tracer otelTrace.Tracer
	meters *allMeters
	attrs  *attributes

	rootCtx    context.Context
	httpCtx    context.Context
	startTime  time.Time
	httpStart  time.Time
	bodyStart  time.Time
	processErr error

	root       span
	httpSpan   span
	receive    span
	retryDelay span
	body       span
	lowLevel   lowLevelSpans
}

func (rt *requestTrace) clientTrace() *trace.ClientTrace {
	tc := &trace.ClientTrace{
		HTTPRequestStart: rt.httpRequestStart,
		HTTPRequestDone:  rt.httpRequestDone,
		HTTPRequestRetry: rt.httpRequestRetry,
		RequestProcessed: rt.requestProcessed,
		ResponseBodyDone: rt.responseBodyDone,
	}
	tc.GotFirstResponseByte = rt.gotFirstResponseByte
	rt.lowLevel.register(rt, tc)
	return tc
}

// start creates the root span, it ends when the response body is closed, or when no response is returned.
func (rt *requestTrace) start(ctx context.Context) context.Context {
	rt.startTime = time.Now()
	rt.meters.client.inFlight.Add(ctx, 1, otelMetric.WithAttributes(rt.attrs.definition...))
	rt.rootCtx = rt.root.start(ctx, rt.tracer, clientRequestSpanName,
		otelTrace.WithAttributes(
			attrResourceName.String(rt.attrs.definitionPath),
			attrSpanKind.String(attrSpanKindValueClient),
			attrSpanType.String(attrSpanTypeValueHTTP),
		),
		otelTrace.WithAttributes(rt.attrs.definition...),
		otelTrace.WithAttributes(rt.attrs.definitionExtra...),
	)
	rt.httpCtx = rt.rootCtx
	return rt.rootCtx
}

func (rt *requestTrace) end(err error) {
	// In-flight counter must use the same attributes as in start
	rt.meters.client.inFlight.Add(rt.rootCtx, -1, otelMetric.WithAttributes(rt.attrs.definition...))
	rt.meters.client.duration.Record(rt.rootCtx, sinceMs(rt.startTime),
		otelMetric.WithAttributes(rt.attrs.definition...),
		otelMetric.WithAttributes(rt.attrs.httpResponse...),
	)

	if rt.root.active() {
		// Attributes of the last response
		rt.root.SetAttributes(rt.attrs.httpResponse...)
		rt.root.SetAttributes(rt.attrs.httpResponseExtra...)
		rt.root.end(err, otelTrace.WithStackTrace(err != nil))
	}
}

func (rt *requestTrace) httpRequestStart(req *http.Request) {
	rt.retryDelay.end(nil)
	rt.httpStart = time.Now()

	rt.httpCtx = rt.httpSpan.start(rt.rootCtx, rt.tracer, httpRequestSpanName, otelTrace.WithAttributes(
		attrSpanKind.String(attrSpanKindValueClient),
		attrSpanType.String(attrSpanTypeValueHTTP),
	))
	if rt.cfg.propagators != nil {
		rt.cfg.propagators.Inject(rt.httpCtx, propagation.HeaderCarrier(req.Header))
	}

	// Attributes include the injected headers
	rt.attrs.SetFromRequest(req)
	rt.httpSpan.SetAttributes(attrResourceName.String(rt.attrs.httpPath))
	rt.httpSpan.SetAttributes(rt.attrs.httpRequest...)
	rt.httpSpan.SetAttributes(rt.attrs.httpRequestExtra...)

	rt.meters.http.inFlight.Add(rt.rootCtx, 1, otelMetric.WithAttributes(rt.attrs.httpRequest...))
}

func (rt *requestTrace) gotFirstResponseByte() {
	rt.receive.start(rt.httpCtx, rt.tracer, httpReceiveSpanName)
}

func (rt *requestTrace) httpRequestDone(res *http.Response, err error) {
	rt.attrs.SetFromResponse(res, err)

	// In-flight counter must use the same attributes as in httpRequestStart
	rt.meters.http.inFlight.Add(rt.rootCtx, -1, otelMetric.WithAttributes(rt.attrs.httpRequest...))
	rt.meters.http.duration.Record(rt.rootCtx, sinceMs(rt.httpStart),
		otelMetric.WithAttributes(rt.attrs.httpRequest...),
		otelMetric.WithAttributes(rt.attrs.httpResponse...),
	)

	if rt.httpSpan.active() {
		rt.httpSpan.SetAttributes(rt.attrs.httpResponse...)
		rt.httpSpan.SetAttributes(rt.attrs.httpResponseExtra...)
		rt.httpSpan.SetAttributes(rt.attrs.httpResponseError...)
		spanErr := err
		if spanErr == nil && res != nil && res.StatusCode >= http.StatusBadRequest {
			spanErr = fmt.Errorf(`HTTP status code: %d %s`, res.StatusCode, http.StatusText(res.StatusCode))
		}
		rt.httpSpan.end(spanErr)
	}
	rt.receive.end(err)
}

// httpRequestRetry starts the delay span, it is ended by the next httpRequestStart,
// or by requestProcessed if the retry is interrupted, for example by a timeout.
func (rt *requestTrace) httpRequestRetry(attempt int, delay time.Duration) {
	rt.retryDelay.start(rt.rootCtx, rt.tracer, clientRetryDelaySpanName,
		otelTrace.WithAttributes(rt.attrs.httpRequest...),
		otelTrace.WithAttributes(rt.attrs.httpResponse...),
		otelTrace.WithAttributes(
			attribute.Int("http.request.retry.attempt", attempt),
			attribute.Int64("http.request.retry.delay_ms", delay.Milliseconds()),
			attribute.String("http.request.retry.delay_string", delay.String()),
		),
	)
}

func (rt *requestTrace) requestProcessed(res *http.Response, err error) {
	rt.retryDelay.end(nil)
	rt.processErr = err
	if res == nil {
		rt.end(err)
		return
	}

	// Wait for the body
	rt.bodyStart = time.Now()
	rt.body.start(rt.rootCtx, rt.tracer, clientResponseBodySpanName,
		otelTrace.WithAttributes(rt.attrs.httpRequest...),
		otelTrace.WithAttributes(rt.attrs.httpResponse...),
	)
}

func (rt *requestTrace) responseBodyDone(_ *http.Response, bytes int64, err error) {
	meterAttrs := otelMetric.WithAttributes(append(append([]attribute.KeyValue(nil), rt.attrs.httpRequest...), rt.attrs.httpResponse...)...)
	rt.meters.body.duration.Record(rt.rootCtx, sinceMs(rt.bodyStart), meterAttrs)
	rt.meters.body.contentLength.Add(rt.rootCtx, bytes, meterAttrs)

	if rt.body.active() {
		rt.body.SetAttributes(attrReadBytes.Int64(bytes))
		rt.body.end(err)
	}

	if err == nil {
		err = rt.processErr
	}
	rt.end(err)
}

// span is a slot for one span, it is empty when the span is not in progress.
type span struct {
	otelTrace.Span
}

func (s *span) start(ctx context.Context, tracer otelTrace.Tracer, name string, opts ...otelTrace.SpanStartOption) context.Context {
	opts = append([]otelTrace.SpanStartOption{otelTrace.WithSpanKind(otelTrace.SpanKindClient)}, opts...)
	ctx, s.Span = tracer.Start(ctx, name, opts...)
	return ctx
}

func (s *span) active() bool {
	return s.Span != nil
}

// end records the error, if any, and ends the span in progress.
func (s *span) end(err error, opts ...otelTrace.SpanEndOption) {
	if s.Span == nil {
		return
	}
	if err != nil {
		s.RecordError(err)
		s.SetStatus(codes.Error, err.Error())
	}
	s.End(opts...)
	s.Span = nil
}

func sinceMs(t time.Time) float64 {
	return float64(time.Since(t)) / float64(time.Millisecond)
}
