package detect

import (
	"fmt"
	"strings"
)

// Signature describes one AI company's crawler fingerprint. Entries are
// immutable for the process lifetime; Registry returns them in a fixed
// order so matching stays deterministic.
type Signature struct {
	Key        string
	Name       string
	UserAgents []string // case-insensitive substrings, most specific first
	CIDRs      []string
	ASN        string
	// RequireDNSVerify forces an authoritative reverse+forward DNS
	// round-trip before an ASN match is trusted.
	RequireDNSVerify bool
	// HostnameSuffixes is the allow-list for reverse-DNS candidates.
	HostnameSuffixes []string
	// OrgSubstrings match against the IPInfo organization field.
	OrgSubstrings []string
}

// wellKnownBots are full bot tokens that earn a higher confidence than an
// arbitrary substring hit.
var wellKnownBots = []string{
	"gptbot", "claudebot", "googlebot", "ccbot", "perplexitybot",
	"bytespider", "amazonbot", "applebot", "facebookbot", "oai-searchbot",
}

// signatures is the static registry. Published crawler ranges; update when
// vendors rotate them.
var signatures = []Signature{
	{
		Key:  "openai",
		Name: "OpenAI",
		UserAgents: []string{
			"gptbot", "chatgpt-user", "oai-searchbot", "openai",
		},
		CIDRs: []string{
			"23.102.140.112/28",
			"13.66.11.96/28",
			"23.98.142.176/28",
			"40.84.180.224/28",
			"52.230.152.0/24",
		},
		ASN:           "AS8075",
		OrgSubstrings: []string{"openai"},
	},
	{
		Key:  "anthropic",
		Name: "Anthropic",
		UserAgents: []string{
			"claudebot", "claude-web", "anthropic-ai", "claude-searchbot",
		},
		CIDRs:         []string{"160.79.104.0/23"},
		OrgSubstrings: []string{"anthropic"},
	},
	{
		Key:  "google",
		Name: "Google",
		UserAgents: []string{
			"google-extended", "googleother", "googlebot",
		},
		CIDRs: []string{
			"66.249.64.0/19",
			"192.178.5.0/27",
			"34.100.182.96/28",
		},
		ASN:              "AS15169",
		RequireDNSVerify: true,
		HostnameSuffixes: []string{".googlebot.com", ".google.com", ".googleusercontent.com"},
		OrgSubstrings:    []string{"google"},
	},
	{
		Key:  "meta",
		Name: "Meta",
		UserAgents: []string{
			"meta-externalagent", "facebookbot", "facebookexternalhit",
		},
		CIDRs: []string{
			"31.13.24.0/21",
			"66.220.144.0/20",
			"69.63.176.0/20",
			"173.252.64.0/18",
		},
		ASN:           "AS32934",
		OrgSubstrings: []string{"facebook", "meta"},
	},
	{
		Key:  "perplexity",
		Name: "Perplexity",
		UserAgents: []string{
			"perplexitybot", "perplexity-user", "perplexity",
		},
		CIDRs:         []string{"44.221.181.252/30"},
		OrgSubstrings: []string{"perplexity", "pplx"},
	},
	{
		Key:           "commoncrawl",
		Name:          "Common Crawl",
		UserAgents:    []string{"ccbot"},
		OrgSubstrings: []string{"common crawl"},
	},
	{
		Key:           "bytedance",
		Name:          "ByteDance",
		UserAgents:    []string{"bytespider", "tiktokspider"},
		OrgSubstrings: []string{"bytedance"},
	},
	{
		Key:           "amazon",
		Name:          "Amazon",
		UserAgents:    []string{"amazonbot"},
		ASN:           "AS16509",
		OrgSubstrings: []string{"amazon"},
	},
	{
		Key:           "apple",
		Name:          "Apple",
		UserAgents:    []string{"applebot-extended", "applebot"},
		CIDRs:         []string{"17.0.0.0/8"},
		OrgSubstrings: []string{"apple"},
	},
	{
		Key:           "cohere",
		Name:          "Cohere",
		UserAgents:    []string{"cohere-ai", "cohere-training-data-crawler"},
		OrgSubstrings: []string{"cohere"},
	},
	{
		Key:           "diffbot",
		Name:          "Diffbot",
		UserAgents:    []string{"diffbot"},
		OrgSubstrings: []string{"diffbot"},
	},
}

// Registry returns the static signature table in its fixed match order.
func Registry() []Signature {
	return signatures
}

// MatchUserAgent tests a User-Agent string against the signature registry
// and returns the first matching company, or nil. Pure; never fails.
//
// Confidence: 0.95 when the UA equals the signature substring exactly,
// 0.9 when the substring is a well-known bot token, 0.8 otherwise.
func MatchUserAgent(userAgent string) *Attribution {
	if userAgent == "" {
		return nil
	}
	lowerUA := strings.ToLower(userAgent)

	for _, sig := range signatures {
		for _, sub := range sig.UserAgents {
			if !strings.Contains(lowerUA, sub) {
				continue
			}
			confidence := 0.8
			if lowerUA == sub {
				confidence = 0.95
			} else if isWellKnownBot(sub) {
				confidence = 0.9
			}
			return &Attribution{
				Company:     sig.Key,
				CompanyName: sig.Name,
				Method:      MethodUserAgent,
				Confidence:  confidence,
				Details:     fmt.Sprintf("user agent matched %q", sub),
			}
		}
	}
	return nil
}

func isWellKnownBot(token string) bool {
	for _, known := range wellKnownBots {
		if token == known {
			return true
		}
	}
	return false
}
