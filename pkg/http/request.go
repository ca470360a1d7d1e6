package http

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ProxyTrust holds the networks whose forwarding headers are believed.
type ProxyTrust struct {
	prefixes []netip.Prefix
}

// NewProxyTrust parses CIDR ranges of trusted reverse proxies.
func NewProxyTrust(cidrs []string) (*ProxyTrust, error) {
	pt := &ProxyTrust{}
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		p, err := netip.ParsePrefix(c)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", c, err)
		}
		pt.prefixes = append(pt.prefixes, p.Masked())
	}
	return pt, nil
}

func (pt *ProxyTrust) trusts(addr netip.Addr) bool {
	if pt == nil {
		return false
	}
	for _, p := range pt.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the address of the caller. X-Forwarded-For and X-Real-IP
// are only consulted when the direct peer is a trusted proxy.
func ClientIP(r *http.Request, pt *ProxyTrust) string {
	peer, ok := peerAddr(r.RemoteAddr)
	if !ok {
		if r.RemoteAddr == "" {
			return "unknown"
		}
		return r.RemoteAddr
	}

	if pt.trusts(peer) {
		for _, candidate := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
			if addr, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
				return addr.Unmap().String()
			}
		}
		if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
			return addr.Unmap().String()
		}
	}

	return peer.String()
}

func peerAddr(remote string) (netip.Addr, bool) {
	host := remote
	if h, _, err := net.SplitHostPort(remote); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
