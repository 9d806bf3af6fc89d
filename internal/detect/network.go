package detect

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
)

// NetworkAttributor classifies an IP by network provenance: registered
// CIDR ranges first, then ASN (with an authoritative DNS round-trip for
// companies that require it), then organization substrings.
type NetworkAttributor struct {
	provider *IPInfoProvider
	resolver Resolver
}

// NewNetworkAttributor wires the attributor to its IP info provider and
// DNS resolver.
func NewNetworkAttributor(provider *IPInfoProvider, resolver Resolver) *NetworkAttributor {
	return &NetworkAttributor{provider: provider, resolver: resolver}
}

// Attribute classifies ip, returning nil when no network signal matches.
// Soft-fails: any internal error degrades to nil, never an error.
func (n *NetworkAttributor) Attribute(ctx context.Context, ip, hostname string) *Attribution {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return nil
	}

	info := n.provider.Resolve(ctx, ip)

	if attr := matchCIDR(parsed); attr != nil {
		attr.IPInfo = &info
		return attr
	}

	if info.ASN != "" {
		if attr := n.matchASN(ctx, parsed, info); attr != nil {
			return attr
		}
	}

	if info.Organization != "" {
		if attr := matchOrganization(info); attr != nil {
			return attr
		}
	}

	return nil
}

// matchCIDR tests ip against every registered range; first containment
// wins at 0.9 regardless of other signals.
func matchCIDR(ip net.IP) *Attribution {
	for _, sig := range Registry() {
		for _, cidr := range sig.CIDRs {
			_, network, err := net.ParseCIDR(cidr)
			if err != nil {
				log.Printf("network: bad CIDR %q for %s: %v", cidr, sig.Key, err)
				continue
			}
			if network.Contains(ip) {
				return &Attribution{
					Company:     sig.Key,
					CompanyName: sig.Name,
					Method:      MethodIPRange,
					Confidence:  0.9,
					Details:     fmt.Sprintf("%s inside %s", ip, cidr),
				}
			}
		}
	}
	return nil
}

// matchASN scans companies registered under the observed ASN. A company
// that requires DNS verification only attributes when the reverse+forward
// round-trip succeeds; on failure that company is skipped so lower
// priority signals still get a chance.
func (n *NetworkAttributor) matchASN(ctx context.Context, ip net.IP, info IPInfo) *Attribution {
	for _, sig := range Registry() {
		if sig.ASN == "" || sig.ASN != info.ASN {
			continue
		}
		if sig.RequireDNSVerify {
			if !verifyReverseForward(ctx, n.resolver, ip.String(), sig.HostnameSuffixes) {
				continue
			}
			return &Attribution{
				Company:     sig.Key,
				CompanyName: sig.Name,
				Method:      MethodReverseDNS,
				Confidence:  0.95,
				Details:     fmt.Sprintf("ASN %s verified by reverse DNS", info.ASN),
				IPInfo:      &info,
			}
		}
		return &Attribution{
			Company:     sig.Key,
			CompanyName: sig.Name,
			Method:      MethodASN,
			Confidence:  0.7,
			Details:     fmt.Sprintf("ASN %s registered to %s", info.ASN, sig.Name),
			IPInfo:      &info,
		}
	}
	return nil
}

func matchOrganization(info IPInfo) *Attribution {
	lowerOrg := strings.ToLower(info.Organization)
	for _, sig := range Registry() {
		for _, sub := range sig.OrgSubstrings {
			if strings.Contains(lowerOrg, sub) {
				return &Attribution{
					Company:     sig.Key,
					CompanyName: sig.Name,
					Method:      MethodOrganization,
					Confidence:  0.6,
					Details:     fmt.Sprintf("organization %q matched %q", info.Organization, sub),
					IPInfo:      &info,
				}
			}
		}
	}
	return nil
}
