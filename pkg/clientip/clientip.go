// Package clientip derives the client address used for rate limiting and
// request logs.
package clientip

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ipv6LimitBits is the prefix IPv6 clients are grouped by. A single host
// usually owns a whole /64.
const ipv6LimitBits = 64

// RealClientIP returns the client IP of r. It reads r.RemoteAddr only; when the
// server sits behind a proxy, chi's RealIP middleware must run first so that
// RemoteAddr already holds the forwarded address.
func RealClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return strings.TrimSpace(host)
}

// LimitKey returns the key a client is rate limited under: the plain address
// for IPv4 and the enclosing /64 for IPv6. Unparseable addresses are returned
// as-is.
func LimitKey(r *http.Request) string {
	raw := RealClientIP(r)
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return raw
	}
	addr = addr.Unmap().WithZone("")
	if addr.Is4() {
		return addr.String()
	}
	prefix, err := addr.Prefix(ipv6LimitBits)
	if err != nil {
		return addr.String()
	}
	return prefix.String()
}
