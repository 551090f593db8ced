// Package geocode resolves street addresses to coordinates via the Census
// Geocoder (primary) and Google (fallback), and coordinates back to
// addresses via Google.
package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client geocodes addresses and reverse-geocodes coordinates.
type Client interface {
	// Geocode resolves a one-line street address to coordinates and the
	// administrative state. A provider "not found" is reported as
	// Matched=false with a nil error.
	Geocode(ctx context.Context, address string) (*Result, error)

	// ReverseGeocode resolves coordinates to a formatted street address.
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude       float64
	Longitude      float64
	State          string // two-letter USPS state code, when the provider reports one
	MatchedAddress string
	Source         string // "census" or "google"
	Matched        bool
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithGoogleAPIKey enables Google Geocoding API as a fallback and for
// reverse geocoding.
func WithGoogleAPIKey(key string) Option {
	return func(g *geocoder) {
		g.googleKey = key
	}
}

// WithHTTPClient sets a custom HTTP client for both Census and Google requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second rate limit for provider calls.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), int(rps))
	}
}

type geocoder struct {
	httpClient *http.Client
	googleKey  string
	limiter    *rate.Limiter
}

// NewClient creates a new geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Geocode resolves a single address, trying Census first, then Google if
// configured.
func (g *geocoder) Geocode(ctx context.Context, address string) (*Result, error) {
	if strings.TrimSpace(address) == "" {
		return nil, eris.New("geocode: empty address")
	}

	result, censusErr := g.geocodeCensus(ctx, address)
	if censusErr == nil && result.Matched {
		return result, nil
	}

	// If Census failed or didn't match, try Google if configured.
	if g.googleKey != "" {
		googleResult, googleErr := g.geocodeGoogle(ctx, address)
		if googleErr == nil && googleResult.Matched {
			return googleResult, nil
		}
	}

	if censusErr != nil {
		return nil, censusErr
	}

	// No match from any provider — this is not an error, just unmatched.
	return &Result{Matched: false}, nil
}
