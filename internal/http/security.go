// ABOUTME: Hardened http.Client construction with dial, TLS, and header timeouts
// ABOUTME: Streaming clients use no overall timeout so long-lived event streams survive

package http

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// SecureHTTPClient creates an HTTP client with security configurations.
// A zero timeout leaves the overall request unbounded, which event streams need.
func SecureHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: secureTransport(),
	}
}

func secureTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
	}
}
