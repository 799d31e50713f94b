// Package network provides network-related utilities.
package network

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP extracts the client address used for rate limiting and audit
// entries.
//
// When trustProxy is true the first address in X-Forwarded-For, then
// X-Real-IP, is used if it parses as an IP. Otherwise, and as a fallback,
// RemoteAddr is used with its port stripped. Only enable trustProxy behind a
// reverse proxy that overwrites these headers; clients can forge them.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first := xff
			if idx := strings.Index(xff, ","); idx != -1 {
				first = xff[:idx]
			}
			if ip, ok := parseIP(first); ok {
				return ip
			}
		}
		if ip, ok := parseIP(r.Header.Get("X-Real-IP")); ok {
			return ip
		}
	}
	return remoteHost(r.RemoteAddr)
}

func parseIP(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}

func remoteHost(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
