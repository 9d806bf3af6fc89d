package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/Synaptic-Labs-AI/LLM-Scraping/internal/detect"
)

// Event is the envelope emitted to sinks for every attributed request.
// Optional fields are omitted when empty.
type Event struct {
	EventID string `json:"event_id,omitempty"`
	TS      string `json:"ts,omitempty"` // ISO8601
	Type    string `json:"type,omitempty"`

	Request   RequestInfo         `json:"request,omitempty"`
	Detection *detect.Attribution `json:"detection,omitempty"`
	Geo       map[string]string   `json:"geo,omitempty"` // coarse {country,region,city}

	// SensitivePath marks hits on paths the deployment flagged as
	// guided or sensitive.
	SensitivePath bool `json:"sensitive_path,omitempty"`
}

// RequestInfo captures the inbound request context the detection ran on.
type RequestInfo struct {
	Method           string `json:"method,omitempty"`
	Host             string `json:"host,omitempty"`
	Path             string `json:"path,omitempty"`
	UserAgent        string `json:"ua,omitempty"`
	ClientIP         string `json:"client_ip,omitempty"`
	Referrer         string `json:"referrer,omitempty"`
	ReferrerHostname string `json:"referrer_hostname,omitempty"`
}

// New builds a detection event with a fresh ID and timestamp.
func New(req RequestInfo, attr *detect.Attribution) Event {
	e := Event{
		EventID:   uuid.New().String(),
		TS:        time.Now().UTC().Format(time.RFC3339Nano),
		Type:      "detection",
		Request:   req,
		Detection: attr,
	}
	if attr != nil && attr.IPInfo != nil {
		e.Geo = coarseGeo(*attr.IPInfo)
	}
	return e
}

// coarseGeo keeps only the coarse location fields; coordinates stay out
// of the emitted event.
func coarseGeo(info detect.IPInfo) map[string]string {
	geo := map[string]string{}
	if info.Country != "" {
		geo["country"] = info.Country
	}
	if info.Region != "" {
		geo["region"] = info.Region
	}
	if info.City != "" {
		geo["city"] = info.City
	}
	if len(geo) == 0 {
		return nil
	}
	return geo
}
