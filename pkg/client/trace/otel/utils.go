package otel

import (
	"net/http"
	"net/url"
	"strings"
)

func isSuccess(r *http.Response, err error) bool {
	if err != nil {
		return false
	}
	return r != nil && r.StatusCode < http.StatusBadRequest
}

func isRedirection(r *http.Response) bool {
	return r != nil && r.StatusCode >= http.StatusMultipleChoices && r.StatusCode < http.StatusBadRequest
}

// redactURL returns the URL string with masked values of redacted query parameters.
func redactURL(u *url.URL, cfg config) string {
	if u == nil {
		return ""
	}
	if u.RawQuery == "" {
		return mustURLPathUnescape(u.String())
	}
	parts := strings.Split(u.RawQuery, "&")
	for i, part := range parts {
		key, _, _ := strings.Cut(part, "=")
		if unescaped, err := url.QueryUnescape(key); err == nil && cfg.isRedactedQueryParam(unescaped) {
			parts[i] = key + "=" + maskedAttrValue
		}
	}
	clone := *u
	clone.RawQuery = strings.Join(parts, "&")
	return mustURLPathUnescape(clone.String())
}

func mustURLPathUnescape(in string) string {
	out, err := url.PathUnescape(in)
	if err != nil {
		return in
	}
	return out
}
