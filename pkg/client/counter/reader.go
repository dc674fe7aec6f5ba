// Package counter measures response bodies read by the client.
package counter

import (
	"errors"
	"io"
	"sync"
)

// OnClose is called once, when the body is closed.
// The err is the first read error other than io.EOF, or the close error.
type OnClose func(bytes int64, err error)

// ReadCloser wraps an io.ReadCloser (response body) to count bytes read from the reader.
type ReadCloser struct {
	wrapped io.ReadCloser
	onClose OnClose
	once    sync.Once
	bytes   int64
	readErr error
}

// NewReadCloser wraps the reader, the onClose callback is optional.
func NewReadCloser(wrapped io.ReadCloser, onClose OnClose) *ReadCloser {
	return &ReadCloser{wrapped: wrapped, onClose: onClose}
}

// Bytes returns number of bytes read so far.
func (w *ReadCloser) Bytes() int64 {
	return w.bytes
}

func (w *ReadCloser) Read(b []byte) (int, error) {
	n, err := w.wrapped.Read(b)
	w.bytes += int64(n)
	if err != nil && w.readErr == nil && !errors.Is(err, io.EOF) {
		w.readErr = err
	}
	return n, err
}

// Close closes the wrapped reader, the OnClose callback is invoked only on the first call.
func (w *ReadCloser) Close() error {
	closeErr := w.wrapped.Close()
	w.once.Do(func() {
		if w.onClose == nil {
			return
		}
		// Prefer read error before close error, it is usually more useful
		err := w.readErr
		if err == nil {
			err = closeErr
		}
		w.onClose(w.bytes, err)
	})
	return closeErr
}
