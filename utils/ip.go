package utils

import (
	"net"
	"net/http"
	"strings"
)

// RealClientIP resolves the originating client address for log lines. Behind
// a proxy X-Forwarded-For holds a comma-separated chain; the first entry is
// the client.
func RealClientIP(r *http.Request) string {
	if xfwd := r.Header.Get("X-Forwarded-For"); xfwd != "" {
		if i := strings.Index(xfwd, ","); i >= 0 {
			return strings.TrimSpace(xfwd[:i])
		}
		return xfwd
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
