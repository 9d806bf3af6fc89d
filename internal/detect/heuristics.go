package detect

import (
	"fmt"
	"regexp"
	"strings"
)

// Heuristics holds the enhanced-mode detectors: a suspicious User-Agent
// vocabulary sweep, an AI-product referrer sweep, and a header-shape
// check. Pattern lists are policy, not constants: callers may override
// the defaults from configuration.
type Heuristics struct {
	suspiciousUA *regexp.Regexp
	aiReferrer   *regexp.Regexp
}

// Default vocabulary mirrors common headless/automation tool names plus
// generic crawler/research/AI terms.
var defaultSuspiciousUA = []string{
	"headless", "selenium", "webdriver", "puppeteer", "playwright",
	"phantom", "jsdom", "nightmare", "chrome-headless",
	"python-requests", "scrapy", "curl", "wget", "go-http-client",
	"bot", "crawler", "spider", "scraper", "research", "ai-agent",
}

// Default AI referrer domains, most specific first.
var defaultAIReferrers = []string{
	"chat.openai.com", "chatgpt.com", "perplexity.ai", "claude.ai",
	"gemini.google.com", "copilot.microsoft.com", "you.com", "poe.com",
	"phind.com",
}

// referrerCompanies sub-classifies a referrer hit by domain substring.
var referrerCompanies = []struct {
	substring string
	key       string
	name      string
}{
	{"openai", "openai", "OpenAI"},
	{"chatgpt", "openai", "OpenAI"},
	{"perplexity", "perplexity", "Perplexity"},
	{"claude", "anthropic", "Anthropic"},
	{"gemini", "google", "Google"},
	{"copilot", "microsoft", "Microsoft"},
}

// Conventional browser headers; two or more absent is a weak automation
// signal.
var expectedBrowserHeaders = []string{
	"Accept", "Accept-Language", "Accept-Encoding", "Connection",
}

// NewHeuristics compiles the pattern sets. Empty slices take the
// defaults.
func NewHeuristics(uaPatterns, referrerDomains []string) *Heuristics {
	if len(uaPatterns) == 0 {
		uaPatterns = defaultSuspiciousUA
	}
	if len(referrerDomains) == 0 {
		referrerDomains = defaultAIReferrers
	}
	return &Heuristics{
		suspiciousUA: compileAlternation(uaPatterns),
		aiReferrer:   compileAlternation(referrerDomains),
	}
}

func compileAlternation(terms []string) *regexp.Regexp {
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		if term != "" {
			quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(term)))
		}
	}
	return regexp.MustCompile("(?i)(" + strings.Join(quoted, "|") + ")")
}

// SuspiciousUserAgent flags automation vocabulary in the User-Agent.
func (h *Heuristics) SuspiciousUserAgent(userAgent string) *Attribution {
	if userAgent == "" {
		return nil
	}
	match := h.suspiciousUA.FindString(userAgent)
	if match == "" {
		return nil
	}
	return &Attribution{
		Company:     "unknown_bot",
		CompanyName: "Unknown Bot",
		Method:      MethodSuspiciousUA,
		Confidence:  0.5,
		Details:     fmt.Sprintf("user agent contains %q", strings.ToLower(match)),
	}
}

// SuspiciousReferrer flags referrers from known AI products and
// sub-classifies by domain.
func (h *Heuristics) SuspiciousReferrer(referrer string) *Attribution {
	if referrer == "" {
		return nil
	}
	match := h.aiReferrer.FindString(referrer)
	if match == "" {
		return nil
	}

	company, name := "unknown_ai", "Unknown AI Product"
	lower := strings.ToLower(referrer)
	for _, rc := range referrerCompanies {
		if strings.Contains(lower, rc.substring) {
			company, name = rc.key, rc.name
			break
		}
	}
	return &Attribution{
		Company:     company,
		CompanyName: name,
		Method:      MethodSuspiciousReferrer,
		Confidence:  0.55,
		Details:     fmt.Sprintf("referrer matched %q", strings.ToLower(match)),
	}
}

// HeaderShape flags requests missing two or more conventional browser
// headers. Weak signal; real browsers nearly always send all four.
func (h *Heuristics) HeaderShape(headers map[string]string) *Attribution {
	if len(headers) == 0 {
		return nil
	}

	normalized := make(map[string]string, len(headers))
	for k, v := range headers {
		normalized[strings.ToLower(k)] = v
	}

	var missing []string
	for _, expected := range expectedBrowserHeaders {
		if normalized[strings.ToLower(expected)] == "" {
			missing = append(missing, expected)
		}
	}
	if len(missing) < 2 {
		return nil
	}
	return &Attribution{
		Company:     "unknown_bot",
		CompanyName: "Unknown Bot",
		Method:      MethodHeaderAnalysis,
		Confidence:  0.4,
		Details:     fmt.Sprintf("missing browser headers: %s", strings.Join(missing, ", ")),
	}
}
