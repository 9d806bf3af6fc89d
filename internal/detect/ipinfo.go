package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IPInfoProvider resolves network/geolocation metadata for IPs with a
// TTL cache, a rolling daily quota, and a rate-limited, timeout-bounded
// external lookup. Resolve is total: it always returns a usable IPInfo
// and never returns an error.
type IPInfoProvider struct {
	mu           sync.RWMutex
	cache        map[string]IPInfo
	requestCount int
	lastReset    time.Time

	lookupURL   string
	maxRequests int
	ttl         time.Duration
	client      *http.Client
	limiter     *rate.Limiter

	done     chan struct{}
	stopOnce sync.Once
}

// IPInfoConfig holds tunables for the provider. Zero values fall back to
// defaults suitable for the free ip-api.com tier.
type IPInfoConfig struct {
	LookupURL     string        // %s is replaced with the IP
	MaxDaily      int           // external lookups per rolling 24h
	CacheTTL      time.Duration
	LookupTimeout time.Duration
	RatePerSecond float64 // smoothing for outbound calls
}

const (
	defaultLookupURL = "http://ip-api.com/json/%s?fields=status,country,regionName,city,org,as,lat,lon,proxy,hosting,mobile"
	defaultMaxDaily  = 1000
	defaultCacheTTL  = 24 * time.Hour
	defaultTimeout   = 5 * time.Second
	defaultRate      = 2.0
)

// NewIPInfoProvider creates a provider. Call Start to enable the periodic
// cache sweep and Close during shutdown.
func NewIPInfoProvider(cfg IPInfoConfig) *IPInfoProvider {
	if cfg.LookupURL == "" {
		cfg.LookupURL = defaultLookupURL
	}
	if cfg.MaxDaily <= 0 {
		cfg.MaxDaily = defaultMaxDaily
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = defaultTimeout
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = defaultRate
	}
	return &IPInfoProvider{
		cache:       make(map[string]IPInfo),
		lastReset:   time.Now(),
		lookupURL:   cfg.LookupURL,
		maxRequests: cfg.MaxDaily,
		ttl:         cfg.CacheTTL,
		client:      &http.Client{Timeout: cfg.LookupTimeout},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		done:        make(chan struct{}),
	}
}

// Resolve returns metadata for ip. Policy, in order: invalid syntax →
// unknown sentinel; private/reserved → private sentinel (never cached,
// never counted); fresh cache hit; quota exhausted → stale cache or
// unknown; otherwise one external lookup. Lookup failure degrades to the
// stale cache entry if any, else the unknown sentinel.
func (p *IPInfoProvider) Resolve(ctx context.Context, ip string) IPInfo {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return unknownIPInfo(ip)
	}
	if isPrivateOrReserved(parsed) {
		return IPInfo{
			IP:           ip,
			Organization: "Private Network",
			Connection:   "private",
			CapturedAt:   time.Now(),
		}
	}

	if info, ok := p.cachedFresh(ip); ok {
		return info
	}

	if !p.tryConsumeQuota() {
		if info, ok := p.cachedAny(ip); ok {
			return info
		}
		return unknownIPInfo(ip)
	}

	if !p.limiter.Allow() {
		p.refundQuota()
		if info, ok := p.cachedAny(ip); ok {
			return info
		}
		return unknownIPInfo(ip)
	}

	info, err := p.lookup(ctx, ip)
	if err != nil {
		log.Printf("ipinfo: lookup %s failed: %v", ip, err)
		p.refundQuota()
		if cached, ok := p.cachedAny(ip); ok {
			return cached
		}
		return unknownIPInfo(ip)
	}

	p.mu.Lock()
	p.cache[ip] = info
	p.mu.Unlock()
	return info
}

// UsageStats reports quota and cache state.
func (p *IPInfoProvider) UsageStats() UsageStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return UsageStats{
		RequestCount:  p.requestCount,
		MaxRequests:   p.maxRequests,
		CacheSize:     len(p.cache),
		LastResetTime: p.lastReset,
	}
}

// Start launches the hourly cache sweep. Advisory only; reads check
// staleness themselves.
func (p *IPInfoProvider) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.sweep(time.Now())
			case <-ctx.Done():
				return
			case <-p.done:
				return
			}
		}
	}()
}

// Close stops the background sweep.
func (p *IPInfoProvider) Close() {
	p.stopOnce.Do(func() { close(p.done) })
}

func (p *IPInfoProvider) sweep(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ip, info := range p.cache {
		if now.Sub(info.CapturedAt) >= p.ttl {
			delete(p.cache, ip)
		}
	}
}

func (p *IPInfoProvider) cachedFresh(ip string) (IPInfo, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	info, ok := p.cache[ip]
	if !ok || time.Since(info.CapturedAt) >= p.ttl {
		return IPInfo{}, false
	}
	return info, true
}

// cachedAny returns a cache entry regardless of age, the last-resort
// fallback when a fresh lookup is unavailable.
func (p *IPInfoProvider) cachedAny(ip string) (IPInfo, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	info, ok := p.cache[ip]
	return info, ok
}

// tryConsumeQuota resets the rolling counter after 24h, then reserves one
// lookup slot. Returns false when the daily budget is spent.
func (p *IPInfoProvider) tryConsumeQuota() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if time.Since(p.lastReset) > 24*time.Hour {
		p.requestCount = 0
		p.lastReset = time.Now()
	}
	if p.requestCount >= p.maxRequests {
		return false
	}
	p.requestCount++
	return true
}

// refundQuota releases a reserved slot after a lookup that never counted
// against the provider (rate-limited or failed).
func (p *IPInfoProvider) refundQuota() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.requestCount > 0 {
		p.requestCount--
	}
}

// ipAPIResponse mirrors the ip-api.com JSON shape. Every field is
// optional and untrusted.
type ipAPIResponse struct {
	Status     string  `json:"status"`
	Country    string  `json:"country"`
	RegionName string  `json:"regionName"`
	City       string  `json:"city"`
	Org        string  `json:"org"`
	AS         string  `json:"as"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Proxy      bool    `json:"proxy"`
	Hosting    bool    `json:"hosting"`
	Mobile     bool    `json:"mobile"`
}

func (p *IPInfoProvider) lookup(ctx context.Context, ip string) (IPInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(p.lookupURL, ip), nil)
	if err != nil {
		return IPInfo{}, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return IPInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return IPInfo{}, fmt.Errorf("lookup returned status %d", resp.StatusCode)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return IPInfo{}, fmt.Errorf("decode response: %w", err)
	}
	if body.Status != "" && body.Status != "success" {
		return IPInfo{}, fmt.Errorf("lookup status %q", body.Status)
	}

	info := IPInfo{
		IP:           ip,
		Country:      body.Country,
		Region:       body.RegionName,
		City:         body.City,
		Organization: body.Org,
		ASN:          asnFromASField(body.AS),
		IsDataCenter: body.Hosting,
		IsProxy:      body.Proxy,
		Lat:          body.Lat,
		Lon:          body.Lon,
		CapturedAt:   time.Now(),
	}
	switch {
	case body.Mobile:
		info.Connection = "mobile"
	case body.Hosting:
		info.Connection = "hosting"
	}
	return info, nil
}

// asnFromASField extracts "AS15169" from ip-api's "AS15169 Google LLC".
func asnFromASField(as string) string {
	as = strings.TrimSpace(as)
	if as == "" {
		return ""
	}
	if i := strings.IndexByte(as, ' '); i > 0 {
		return as[:i]
	}
	return as
}

func unknownIPInfo(ip string) IPInfo {
	return IPInfo{IP: ip, CapturedAt: time.Now()}
}

// isPrivateOrReserved reports RFC1918 space, loopback, link-local and
// their IPv6 equivalents.
func isPrivateOrReserved(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}
