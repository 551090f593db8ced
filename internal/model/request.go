package model

import "strings"

// Standard selects which ASCE hazard standard a scrape targets.
type Standard string

const (
	Standard716 Standard = "7-16"
	Standard722 Standard = "7-22"
)

// Valid reports whether s is a recognized ASCE standard.
func (s Standard) Valid() bool {
	return s == Standard716 || s == Standard722
}

// Credentials holds a Regrid login. Empty fields fall back to
// configuration defaults.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ScrapeRequest is one caller invocation of the orchestrator. It is
// immutable once constructed and never persisted. Callers already
// holding coordinates may supply them directly; the point-keyed sources
// then skip address resolution.
type ScrapeRequest struct {
	Address     string       `json:"address"`
	Lat         float64      `json:"lat,omitempty"`
	Lng         float64      `json:"lng,omitempty"`
	State       string       `json:"state,omitempty"`
	Standard    Standard     `json:"standard,omitempty"`
	Credentials *Credentials `json:"credentials,omitempty"`
}

// Point returns the caller-supplied coordinates, or nil when the
// request is address-only.
func (r ScrapeRequest) Point() *GeoPoint {
	if r.Lat == 0 && r.Lng == 0 {
		return nil
	}
	return &GeoPoint{Lat: r.Lat, Lng: r.Lng, State: r.State}
}

// Validate checks required fields before any network or browser work.
func (r ScrapeRequest) Validate() string {
	if strings.TrimSpace(r.Address) == "" && r.Point() == nil {
		return "address or coordinates are required"
	}
	if r.Standard != "" && !r.Standard.Valid() {
		return "standard must be 7-16 or 7-22"
	}
	return ""
}

// GeoPoint is the resolved coordinates (and administrative state) for an
// address. Produced once by the geocode gate, never mutated.
type GeoPoint struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	State string  `json:"state,omitempty"`
}
