package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerAddr string
	TrustProxy bool
	Outputs    []string // enabled sinks: log, kafka, postgres

	// Detection pipeline
	Enhanced        bool     // enable the broad heuristic sweeps
	SuspiciousUA    []string // override the suspicious-UA vocabulary
	AIReferrers     []string // override the AI referrer domain list
	MonitoredPrefix string   // path prefix the classify middleware watches ("" = all)
	GuidedPaths     []string // prefixes reported as guided/sensitive
	SensitivePaths  []string

	// IP info provider
	IPInfoURL      string
	IPInfoMaxDaily int
	IPInfoTTL      time.Duration
	IPInfoTimeout  time.Duration
	IPInfoRate     float64

	// DNS verification
	DNSResolver string // upstream host:port
	DNSTimeout  time.Duration

	// Behavior tracker
	RapidWindow     time.Duration
	RapidThreshold  int
	SpreadThreshold int
	Retention       time.Duration
}

func getOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func getBool(k string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(k)))
	switch v {
	case "1", "t", "true", "y", "yes":
		return true
	case "0", "f", "false", "n", "no":
		return false
	}
	return def
}
func getInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getStringSlice(k, def string) []string {
	v := os.Getenv(k)
	if v == "" {
		v = def
	}
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func Load() Config {
	return Config{
		ServerAddr: getOr("SERVER_ADDR", ":19890"),
		TrustProxy: getBool("TRUST_PROXY", false),
		Outputs:    getStringSlice("OUTPUTS", "log"), // default to log only

		Enhanced:        getBool("DETECT_ENHANCED", true),
		SuspiciousUA:    getStringSlice("SUSPICIOUS_UA_PATTERNS", ""),
		AIReferrers:     getStringSlice("AI_REFERRER_DOMAINS", ""),
		MonitoredPrefix: getOr("MONITORED_PREFIX", ""),
		GuidedPaths:     getStringSlice("GUIDED_PATHS", ""),
		SensitivePaths:  getStringSlice("SENSITIVE_PATHS", ""),

		IPInfoURL:      getOr("IPINFO_URL", ""), // empty = provider default
		IPInfoMaxDaily: getInt("IPINFO_MAX_DAILY", 1000),
		IPInfoTTL:      getDuration("IPINFO_TTL", 24*time.Hour),
		IPInfoTimeout:  getDuration("IPINFO_TIMEOUT", 5*time.Second),
		IPInfoRate:     getFloat("IPINFO_RATE", 2),

		DNSResolver: getOr("DNS_RESOLVER", "8.8.8.8:53"),
		DNSTimeout:  getDuration("DNS_TIMEOUT", 5*time.Second),

		RapidWindow:     getDuration("BEHAVIOR_RAPID_WINDOW", time.Minute),
		RapidThreshold:  getInt("BEHAVIOR_RAPID_THRESHOLD", 10),
		SpreadThreshold: getInt("BEHAVIOR_SPREAD_THRESHOLD", 20),
		Retention:       getDuration("BEHAVIOR_RETENTION", time.Hour),
	}
}

// PathPredicate turns the configured guided/sensitive prefixes into the
// predicate the detector consumes.
func (c Config) PathPredicate() func(string) bool {
	prefixes := append(append([]string{}, c.GuidedPaths...), c.SensitivePaths...)
	if len(prefixes) == 0 {
		return nil
	}
	return func(path string) bool {
		for _, prefix := range prefixes {
			if strings.HasPrefix(path, prefix) {
				return true
			}
		}
		return false
	}
}
