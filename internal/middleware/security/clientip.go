package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Proxies resolves the real client address behind trusted reverse proxies.
type Proxies struct {
	trusted []*net.IPNet
}

// NewProxies trusts loopback and private networks by default.
func NewProxies() *Proxies {
	return &Proxies{
		trusted: []*net.IPNet{
			parseCIDR("127.0.0.0/8"),
			parseCIDR("10.0.0.0/8"),
			parseCIDR("172.16.0.0/12"),
			parseCIDR("192.168.0.0/16"),
			parseCIDR("::1/128"),
		},
	}
}

func parseCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("failed to parse trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

// AddTrustedProxy adds a trusted proxy network
func (p *Proxies) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	p.trusted = append(p.trusted, network)
	return nil
}

// ClientIP returns the peer address, or the forwarded client address when the
// peer is a trusted proxy.
func (p *Proxies) ClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsed := net.ParseIP(directIP)
	if parsed == nil || !p.isTrusted(parsed) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

func (p *Proxies) isTrusted(ip net.IP) bool {
	for _, network := range p.trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
