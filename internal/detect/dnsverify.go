package detect

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Resolver is the DNS surface the network attributor needs. Both calls
// fail distinguishably from "no result".
type Resolver interface {
	Reverse(ctx context.Context, ip string) ([]string, error)
	Forward(ctx context.Context, hostname string) ([]net.IP, error)
}

// DNSResolver resolves against a fixed upstream with bounded timeouts.
type DNSResolver struct {
	Server  string // host:port, e.g. "8.8.8.8:53"
	Timeout time.Duration
	client  *dns.Client
}

// NewDNSResolver creates a resolver against the given upstream server.
func NewDNSResolver(server string, timeout time.Duration) *DNSResolver {
	if server == "" {
		server = "8.8.8.8:53"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DNSResolver{
		Server:  server,
		Timeout: timeout,
		client:  &dns.Client{Timeout: timeout},
	}
}

// Reverse resolves ip to its PTR hostnames.
func (r *DNSResolver) Reverse(ctx context.Context, ip string) ([]string, error) {
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return nil, fmt.Errorf("reverse addr for %s: %w", ip, err)
	}

	m := new(dns.Msg)
	m.SetQuestion(arpa, dns.TypePTR)
	resp, _, err := r.client.ExchangeContext(ctx, m, r.Server)
	if err != nil {
		return nil, fmt.Errorf("PTR query for %s: %w", ip, err)
	}

	var hostnames []string
	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			hostnames = append(hostnames, strings.TrimSuffix(ptr.Ptr, "."))
		}
	}
	return hostnames, nil
}

// Forward resolves hostname to its A and AAAA addresses.
func (r *DNSResolver) Forward(ctx context.Context, hostname string) ([]net.IP, error) {
	var addrs []net.IP
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		m := new(dns.Msg)
		m.SetQuestion(dns.Fqdn(hostname), qtype)
		resp, _, err := r.client.ExchangeContext(ctx, m, r.Server)
		if err != nil {
			return nil, fmt.Errorf("forward query for %s: %w", hostname, err)
		}
		for _, rr := range resp.Answer {
			switch a := rr.(type) {
			case *dns.A:
				addrs = append(addrs, a.A)
			case *dns.AAAA:
				addrs = append(addrs, a.AAAA)
			}
		}
	}
	return addrs, nil
}

// verifyReverseForward authenticates an IP against a hostname allow-list:
// reverse-resolve the IP, keep candidates whose suffix is allowed, then
// forward-resolve each candidate and require the original IP in the
// answer set. The round trip stops spoofed PTR records from granting
// trust. Returns false on any resolution error.
func verifyReverseForward(ctx context.Context, resolver Resolver, ip string, suffixes []string) bool {
	target := net.ParseIP(ip)
	if target == nil || resolver == nil || len(suffixes) == 0 {
		return false
	}

	hostnames, err := resolver.Reverse(ctx, ip)
	if err != nil {
		return false
	}

	for _, hostname := range hostnames {
		if !hostnameAllowed(hostname, suffixes) {
			continue
		}
		addrs, err := resolver.Forward(ctx, hostname)
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if addr.Equal(target) {
				return true
			}
		}
	}
	return false
}

func hostnameAllowed(hostname string, suffixes []string) bool {
	lower := strings.ToLower(strings.TrimSuffix(hostname, "."))
	for _, suffix := range suffixes {
		if strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}
