package detect

import "time"

// Method identifies which signal produced an attribution.
type Method string

const (
	MethodUserAgent          Method = "user_agent"
	MethodIPRange            Method = "ip_range"
	MethodASN                Method = "asn"
	MethodReverseDNS         Method = "reverse_dns"
	MethodOrganization       Method = "organization"
	MethodSuspiciousUA       Method = "suspicious_user_agent"
	MethodSuspiciousReferrer Method = "suspicious_referrer"
	MethodHeaderAnalysis     Method = "header_analysis"
	MethodRapidRequests      Method = "rapid_requests"
	MethodSystematicCrawling Method = "systematic_crawling"
)

// Attribution is a single detection result. Confidence is a heuristic
// ranking score in [0,1], not a calibrated probability.
type Attribution struct {
	Company      string        `json:"company"`
	CompanyName  string        `json:"company_name"`
	Method       Method        `json:"method"`
	Confidence   float64       `json:"confidence"`
	Details      string        `json:"details,omitempty"`
	IPInfo       *IPInfo       `json:"ip_info,omitempty"`
	Alternatives []Attribution `json:"alternative_detections,omitempty"`
}

// IPInfo is an immutable snapshot of network/geolocation metadata for one
// IP. Every field except IP comes from an untrusted external source and
// may be empty.
type IPInfo struct {
	IP           string    `json:"ip"`
	Country      string    `json:"country,omitempty"`
	Region       string    `json:"region,omitempty"`
	City         string    `json:"city,omitempty"`
	Organization string    `json:"organization,omitempty"`
	ASN          string    `json:"asn,omitempty"`
	IsDataCenter bool      `json:"is_datacenter,omitempty"`
	IsProxy      bool      `json:"is_proxy,omitempty"`
	Lat          float64   `json:"lat,omitempty"`
	Lon          float64   `json:"lon,omitempty"`
	Connection   string    `json:"connection_type,omitempty"`
	CapturedAt   time.Time `json:"captured_at"`
}

// UsageStats reports the IP info provider's quota and cache state.
type UsageStats struct {
	RequestCount  int       `json:"request_count"`
	MaxRequests   int       `json:"max_requests"`
	CacheSize     int       `json:"cache_size"`
	LastResetTime time.Time `json:"last_reset_time"`
}

// Signals carries everything the detector can consider for one request.
// ClientIP and the header map may be empty; the pipeline degrades to
// whichever signals are present.
type Signals struct {
	UserAgent string
	ClientIP  string
	Hostname  string
	Referrer  string
	Path      string
	Headers   map[string]string
}
