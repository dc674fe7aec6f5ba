// Package decode decompresses HTTP bodies according to the Content-Encoding header.
package decode

import (
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// Supported returns true if the content encoding can be decoded by the Decode function.
func Supported(contentEncoding string) bool {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip", "br":
		return true
	default:
		return false
	}
}

// Decode wraps the body with a decompressing reader.
// Closing the returned reader closes the original body.
// An unknown or empty content encoding returns the body unchanged.
func Decode(body io.ReadCloser, contentEncoding string) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip":
		v, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("cannot decode gzip: %w", err)
		}
		return &readCloser{Reader: v, close: func() error {
			_ = v.Close()
			return body.Close()
		}}, nil
	case "br":
		return &readCloser{Reader: brotli.NewReader(body), close: body.Close}, nil
	default:
		return body, nil
	}
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r *readCloser) Close() error {
	return r.close()
}
