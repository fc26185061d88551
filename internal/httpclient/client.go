// Package httpclient builds the single shared *http.Client the engine
// hands to every network-facing backend: one persistent connection pool,
// HTTP/2 where the server offers it, and a tool-identifying User-Agent.
package httpclient

import (
	"net/http"
	"time"
)

// userAgentTransport stamps every outgoing request with a fixed
// User-Agent before delegating to the wrapped RoundTripper.
type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	cloned.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(cloned)
}

// New builds a persistent, pooled HTTP client shared across every backend
// and every reference task for the lifetime of a run. http.Transport
// already negotiates HTTP/2 over TLS, so no extra configuration is needed
// beyond generous idle-connection limits for the fan-out this engine does.
func New(userAgent string) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}
	return &http.Client{
		Transport: &userAgentTransport{agent: userAgent, base: transport},
	}
}
