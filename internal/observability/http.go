package observability

import (
	"net"
	"net/http"
	"strings"
)

// RequestIDFromRequest reads the request id propagated by the edge proxy,
// falling back to the correlation header some older clients still send.
func RequestIDFromRequest(r *http.Request) string {
	if id := r.Header.Get("X-Request-Id"); id != "" {
		return id
	}
	return r.Header.Get("X-Correlation-Id")
}

// DeviceIDFromRequest reads the client-assigned device id, used to tell a
// user's websocket connections apart.
func DeviceIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Device-Id")
}

// IPFromRequest resolves the client address, preferring the first hop in
// X-Forwarded-For when the service runs behind the proxy.
func IPFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
