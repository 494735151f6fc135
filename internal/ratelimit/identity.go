package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

var proxyHeaders = []string{"X-Real-IP", "CF-Connecting-IP", "True-Client-IP"}

// IdentityKey derives the counter identity for a request: the principal id
// when one is known, otherwise the client address.
func IdentityKey(r *http.Request, userID string) string {
	if userID != "" {
		return "user:" + userID
	}
	return "ip:" + ClientIP(r)
}

// ClientIP returns the first X-Forwarded-For hop, then the alternate proxy
// headers, then the peer address. It returns "unknown" when nothing is set.
func ClientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	for _, header := range proxyHeaders {
		if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
			return v
		}
	}

	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return "unknown"
	}

	host, _, err := net.SplitHostPort(remote)
	if err == nil && host != "" {
		return host
	}

	return remote
}
