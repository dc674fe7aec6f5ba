package otel

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/plmrlnsnts/http-extended/pkg/request"
)

const (
	maskedAttrValue = "****"
)

type attributes struct {
	config config
	// definitionPath is used as the resource name of the root span
	definitionPath string
	// definition attributes for span and metrics
	definition []attribute.KeyValue
	// definitionExtra attributes for span only
	definitionExtra []attribute.KeyValue
	// httpPath is used as the resource name of the HTTP request span
	httpPath string
	// httpRequest attributes for span and metrics
	httpRequest []attribute.KeyValue
	// httpRequestExtra attributes for span only
	httpRequestExtra []attribute.KeyValue
	// httpResponse attributes for span and metrics
	httpResponse []attribute.KeyValue
	// httpResponseExtra attributes for span only
	httpResponseExtra []attribute.KeyValue
	// httpResponseError attributes for span only
	httpResponseError []attribute.KeyValue
}

func newAttributes(cfg config, reqDef request.HTTPRequest) *attributes {
	out := &attributes{config: cfg}
	reqURL := reqDef.URL()
	out.definitionPath = mustURLPathUnescape(reqURL.Path)

	// Definition base
	out.definition = []attribute.KeyValue{
		attribute.String("definition.method", reqDef.Method()),
		attribute.String("definition.body.format", string(reqDef.BodyFormat())),
		attribute.String("definition.url.path", out.definitionPath),
		attribute.String("definition.url.host.full", reqURL.Host),
	}
	if dotPos := strings.IndexByte(reqURL.Host, '.'); dotPos > 0 {
		// Host parts: to trace service name (host prefix) and domain (host suffix).
		out.definition = append(out.definition,
			// Host prefix, e.g. "api", "auth" ...
			attribute.String("definition.url.host.prefix", reqURL.Host[:dotPos]),
			// Host suffix, e.g. "example.com"
			attribute.String("definition.url.host.suffix", strings.TrimLeft(reqURL.Host[dotPos:], ".")),
		)
	}

	// Definition params
	out.definitionExtra = append(out.definitionExtra, attribute.String("definition.url.full", redactURL(reqURL, cfg)))
	out.definitionExtra = append(out.definitionExtra, headerAttrs("definition.header.", reqDef.RequestHeader(), cfg)...)
	reqDef.QueryParams().Walk(func(key, value string) {
		if cfg.isRedactedQueryParam(key) {
			value = maskedAttrValue
		}
		out.definitionExtra = append(out.definitionExtra, attribute.String("definition.params.query."+key, value))
	})
	if body := reqDef.RequestBody(); body != nil {
		out.definitionExtra = append(out.definitionExtra,
			attribute.Int("definition.params.body.count", body.Len()),
			attribute.Int("definition.attachments.count", len(reqDef.Attachments())),
		)
	}
	if timeout := reqDef.Timeout(); timeout > 0 {
		out.definitionExtra = append(out.definitionExtra, attribute.String("definition.timeout", cast.ToString(timeout)))
	}

	return out
}

func (v *attributes) SetFromRequest(req *http.Request) {
	if req == nil {
		v.httpPath = ""
		v.httpRequest = nil
		v.httpRequestExtra = nil
		return
	}

	// Base
	v.httpPath = mustURLPathUnescape(req.URL.Path)
	v.httpRequest = []attribute.KeyValue{
		semconv.HTTPMethodKey.String(req.Method),
		semconv.HTTPSchemeKey.String(req.URL.Scheme),
		semconv.NetPeerNameKey.String(req.URL.Hostname()),
		semconv.HTTPURLKey.String(redactURL(req.URL, v.config)),
	}

	// Extra
	v.httpRequestExtra = append(
		[]attribute.KeyValue{semconv.HTTPUserAgentKey.String(req.UserAgent())},
		headerAttrs("http.header.", req.Header, v.config)...,
	)
}

func (v *attributes) SetFromResponse(res *http.Response, err error) {
	if res == nil {
		// Status code 0 means no response
		v.httpResponse = []attribute.KeyValue{semconv.HTTPStatusCodeKey.Int(0)}
		v.httpResponseExtra = nil
	} else {
		v.httpResponse = []attribute.KeyValue{semconv.HTTPStatusCodeKey.Int(res.StatusCode)}
		v.httpResponseExtra = append(
			[]attribute.KeyValue{attribute.Bool("http.response.redirect", isRedirection(res))},
			headerAttrs("http.response.header.", res.Header, v.config)...,
		)
	}

	// Error
	var netErr net.Error
	errors.As(err, &netErr)
	v.httpResponseError = []attribute.KeyValue{
		attribute.Bool("http.response.isSuccess", isSuccess(res, err)),
		attribute.Bool("http.response.error.has", err != nil),
		attribute.Bool("http.response.error.net", netErr != nil),
		attribute.Bool("http.response.error.timeout", netErr != nil && netErr.Timeout()),
		attribute.Bool("http.response.error.cancelled", errors.Is(err, context.Canceled)),
		attribute.Bool("http.response.error.deadline_exceeded", errors.Is(err, context.DeadlineExceeded)),
	}
}

func headerAttrs(prefix string, header http.Header, cfg config) []attribute.KeyValue {
	var out []attribute.KeyValue
	for key, values := range header {
		value := strings.Join(values, ";")
		if cfg.isRedactedHeader(key) {
			value = maskedAttrValue
		}
		out = append(out, attribute.String(prefix+strings.ToLower(key), value))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out
}
