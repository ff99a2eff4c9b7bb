package authhttp

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIPFunc determines the client IP used for rate limiting.
//
// Returning an empty string means "unknown" and causes rate limiting to fail open.
type ClientIPFunc func(r *http.Request) string

// DefaultClientIP uses RemoteAddr when it is a public address. Private and
// loopback peers yield "" so a reverse proxy is never limited as one client.
func DefaultClientIP() ClientIPFunc {
	return func(r *http.Request) string {
		a, ok := parseAddr(remoteIP(r))
		if !ok || !isPublicAddr(a) {
			return ""
		}
		return a.String()
	}
}

// ClientIPFromForwardedHeaders trusts CF-Connecting-IP and then the left-most
// X-Forwarded-For entry, only when the immediate peer is in trustedProxies.
func ClientIPFromForwardedHeaders(trustedProxies []netip.Prefix) ClientIPFunc {
	return func(r *http.Request) string {
		peer, ok := parseAddr(remoteIP(r))
		if !ok {
			return ""
		}
		trusted := false
		for _, p := range trustedProxies {
			if p.Contains(peer) {
				trusted = true
				break
			}
		}
		if trusted {
			if a, ok := parseAddr(r.Header.Get("CF-Connecting-IP")); ok && isPublicAddr(a) {
				return a.String()
			}
			if v := r.Header.Get("X-Forwarded-For"); v != "" {
				if i := strings.IndexByte(v, ','); i >= 0 {
					v = v[:i]
				}
				if a, ok := parseAddr(v); ok && isPublicAddr(a) {
					return a.String()
				}
			}
		}
		if isPublicAddr(peer) {
			return peer.String()
		}
		return ""
	}
}

func parseAddr(raw string) (netip.Addr, bool) {
	a, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}

func remoteIP(r *http.Request) string {
	if r == nil || r.RemoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func isPublicAddr(a netip.Addr) bool {
	if !a.IsValid() {
		return false
	}
	if a.IsLoopback() || a.IsPrivate() || a.IsLinkLocalMulticast() || a.IsLinkLocalUnicast() {
		return false
	}
	return !a.IsMulticast() && !a.IsUnspecified()
}
