package otel

import (
	"crypto/tls"
	"net/http/httptrace"
	"strings"

	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/plmrlnsnts/http-extended/pkg/client/trace"
)

// lowLevelSpans are children of the current "http.request" span, they are based on the httptrace hooks.
type lowLevelSpans struct {
	dns     span
	getConn span
	connect span
	tls     span
	headers span
	send    span
}

func (s *lowLevelSpans) register(rt *requestTrace, tc *trace.ClientTrace) {
	start := func(slot *span, name string, opts ...otelTrace.SpanStartOption) {
		slot.start(rt.httpCtx, rt.tracer, name, opts...)
	}

	tc.DNSStart = func(info httptrace.DNSStartInfo) {
		start(&s.dns, httpDNSSpanName, otelTrace.WithAttributes(semconv.NetHostNameKey.String(info.Host)))
	}
	tc.DNSDone = func(info httptrace.DNSDoneInfo) {
		if s.dns.active() {
			addrs := make([]string, 0, len(info.Addrs))
			for _, addr := range info.Addrs {
				addrs = append(addrs, addr.String())
			}
			s.dns.SetAttributes(attrDNSAddresses.String(strings.Join(addrs, ";")))
		}
		s.dns.end(info.Err)
	}

	tc.GetConn = func(host string) {
		start(&s.getConn, httpGetConnSpanName, otelTrace.WithAttributes(semconv.NetHostNameKey.String(host)))
	}
	tc.GotConn = func(info httptrace.GotConnInfo) {
		if s.getConn.active() {
			s.getConn.SetAttributes(
				attrRemoteAddr.String(info.Conn.RemoteAddr().String()),
				attrLocalAddr.String(info.Conn.LocalAddr().String()),
				attrConnectionReused.Bool(info.Reused),
				attrConnectionWasIdle.Bool(info.WasIdle),
			)
			if info.WasIdle {
				s.getConn.SetAttributes(attrConnectionIdleTime.String(info.IdleTime.String()))
			}
		}
		s.getConn.end(nil)
	}

	tc.ConnectStart = func(network, addr string) {
		start(&s.connect, httpConnectSpanName, otelTrace.WithAttributes(
			attrRemoteAddr.String(addr),
			attrConnectionStartNetwork.String(network),
		))
	}
	tc.ConnectDone = func(network, addr string, err error) {
		if s.connect.active() {
			s.connect.SetAttributes(attrConnectionDoneAddr.String(addr), attrConnectionDoneNetwork.String(network))
		}
		s.connect.end(err)
	}

	// Not reported if the http2.Transport is used directly, without upgrade from http.Transport.
	tc.TLSHandshakeStart = func() {
		start(&s.tls, httpTLSHandshakeSpanName)
	}
	tc.TLSHandshakeDone = func(_ tls.ConnectionState, err error) {
		s.tls.end(err)
	}

	tc.WroteHeaderField = func(_ string, _ []string) {
		// Headers span starts at the first header
		if !s.headers.active() {
			start(&s.headers, httpHeadersSpanName)
		}
	}
	tc.WroteHeaders = func() {
		s.headers.end(nil)
		start(&s.send, httpSendSpanName)
	}
	tc.WroteRequest = func(info httptrace.WroteRequestInfo) {
		s.send.end(info.Err)
	}
}
