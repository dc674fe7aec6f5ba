package client

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// TransportConfig holds connection limits of the transports created by NewTransport and NewHTTP2Transport.
type TransportConfig struct {
	DialTimeout           time.Duration
	KeepAlive             time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
	MaxConnectionsPerHost int
	// HTTP2 health checks, used only by NewHTTP2Transport.
	ReadIdleTimeout time.Duration
	PingTimeout     time.Duration
}

// DefaultTransportConfig returns reasonable limits for API calls.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		DialTimeout:           3 * time.Second,
		KeepAlive:             10 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
		MaxConnectionsPerHost: 32,
		ReadIdleTimeout:       3 * time.Second,
		PingTimeout:           3 * time.Second,
	}
}

// DefaultTransport creates a transport with DefaultTransportConfig, HTTP2 is preferred.
func DefaultTransport() http.RoundTripper {
	return NewTransport(DefaultTransportConfig())
}

// HTTP2Transport creates a transport with DefaultTransportConfig, HTTP2 is forced.
func HTTP2Transport() http.RoundTripper {
	return NewHTTP2Transport(DefaultTransportConfig())
}

// NewTransport creates a transport with the limits, HTTP2 is preferred.
func NewTransport(cfg TransportConfig) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           cfg.Dialer().DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		MaxConnsPerHost:       cfg.MaxConnectionsPerHost,
		MaxIdleConnsPerHost:   cfg.MaxConnectionsPerHost,
	}
}

// NewHTTP2Transport creates a transport which speaks only HTTP2 over TLS.
func NewHTTP2Transport(cfg TransportConfig) *http2.Transport {
	dialer := cfg.Dialer()
	return &http2.Transport{
		DialTLS: func(network, addr string, tlsCfg *tls.Config) (net.Conn, error) {
			return tls.DialWithDialer(dialer, network, addr, tlsCfg)
		},
		ReadIdleTimeout:  cfg.ReadIdleTimeout,
		PingTimeout:      cfg.PingTimeout,
		WriteByteTimeout: cfg.PingTimeout,
	}
}

// Dialer creates a dialer with the connection timeouts.
func (cfg TransportConfig) Dialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAlive,
	}
}
