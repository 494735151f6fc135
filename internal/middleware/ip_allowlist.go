package middleware

import "strings"

var loopbackAliases = []string{"127.0.0.1", "::1", "::ffff:127.0.0.1"}

// IPAllowList restricts admin routes to listed addresses. An empty list
// allows everyone. The entry "localhost" admits the loopback addresses.
type IPAllowList struct {
	allowed map[string]struct{}
}

func NewIPAllowList(entries []string) *IPAllowList {
	allowed := map[string]struct{}{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.EqualFold(entry, "localhost") {
			for _, alias := range loopbackAliases {
				allowed[alias] = struct{}{}
			}
			continue
		}
		allowed[entry] = struct{}{}
	}

	return &IPAllowList{allowed: allowed}
}

func (l *IPAllowList) Empty() bool {
	return l == nil || len(l.allowed) == 0
}

// Allows matches ip literally; no CIDR or normalization.
func (l *IPAllowList) Allows(ip string) bool {
	if l.Empty() {
		return true
	}
	_, ok := l.allowed[ip]
	return ok
}
