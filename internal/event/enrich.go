package event

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/Synaptic-Labs-AI/LLM-Scraping/internal/detect"
)

// SignalsFromRequest extracts the detector's input signals from an
// inbound request. trustProxy controls whether forwarding headers are
// believed.
func SignalsFromRequest(r *http.Request, trustProxy bool) detect.Signals {
	headers := make(map[string]string, len(r.Header))
	for key := range r.Header {
		headers[key] = r.Header.Get(key)
	}
	return detect.Signals{
		UserAgent: r.UserAgent(),
		ClientIP:  ClientIP(r, trustProxy),
		Hostname:  r.Host,
		Referrer:  r.Referer(),
		Path:      r.URL.Path,
		Headers:   headers,
	}
}

// RequestInfoFrom builds the event's request context from the same
// signals.
func RequestInfoFrom(r *http.Request, sig detect.Signals) RequestInfo {
	info := RequestInfo{
		Method:    r.Method,
		Host:      r.Host,
		Path:      sig.Path,
		UserAgent: sig.UserAgent,
		ClientIP:  sig.ClientIP,
		Referrer:  sig.Referrer,
	}
	if u, err := url.Parse(sig.Referrer); err == nil && u != nil {
		info.ReferrerHostname = u.Hostname()
	}
	return info
}

// ClientIP resolves the request's client address, honoring forwarding
// headers only when the deployment trusts its proxy.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			if ip := strings.TrimSpace(parts[0]); ip != "" {
				return ip
			}
		}
		if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
			return strings.TrimSpace(xrip)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
