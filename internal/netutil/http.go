// Package netutil provides shared HTTP/network normalization helpers.
package netutil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the originating client address for a request. The first
// X-Forwarded-For hop wins when present, then X-Real-Ip, then the transport
// peer address. The result is lower-cased with any port and IPv6 brackets
// stripped so it is stable as a map key.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return NormalizeAddr(ip)
		}
	}
	if rip := strings.TrimSpace(r.Header.Get("X-Real-Ip")); rip != "" {
		return NormalizeAddr(rip)
	}
	return NormalizeAddr(r.RemoteAddr)
}

// NormalizeAddr lower-cases an address and strips ports and IPv6 brackets.
func NormalizeAddr(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" {
		return ""
	}

	if h, p, err := net.SplitHostPort(addr); err == nil && p != "" {
		addr = h
	}

	addr = strings.TrimPrefix(addr, "[")
	return strings.TrimSuffix(addr, "]")
}
