package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sunbase-energy/sitescout/internal/model"
)

const ahjGeographiesURL = "https://geocoding.geo.census.gov/geocoder/geographies/coordinates"

// AHJAdapter resolves the authority having jurisdiction for a point via
// the Census administrative-geography API. Single call, bounded timeout,
// no retry: the provider is a fast idempotent public-sector API.
type AHJAdapter struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
}

// NewAHJAdapter creates the jurisdiction adapter.
func NewAHJAdapter(opts ...AHJOption) *AHJAdapter {
	a := &AHJAdapter{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: ahjGeographiesURL,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AHJOption configures the AHJ adapter.
type AHJOption func(*AHJAdapter)

// WithAHJBaseURL overrides the geography API URL (for testing).
func WithAHJBaseURL(u string) AHJOption {
	return func(a *AHJAdapter) { a.baseURL = u }
}

// WithAHJHTTPClient sets a custom HTTP client.
func WithAHJHTTPClient(hc *http.Client) AHJOption {
	return func(a *AHJAdapter) { a.client = hc }
}

func (a *AHJAdapter) Kind() model.Kind { return model.KindAHJ }

// geographiesResponse is the Census geographies API envelope. Layer names
// are map keys; each entry carries a NAME.
type geographiesResponse struct {
	Result struct {
		Geographies map[string][]struct {
			Name string `json:"NAME"`
		} `json:"geographies"`
	} `json:"result"`
}

// FetchByPoint looks up the administrative layers containing the point and
// resolves the jurisdiction by specificity: incorporated place first, then
// county subdivision, then county.
func (a *AHJAdapter) FetchByPoint(ctx context.Context, pt model.GeoPoint) model.SourceResult {
	if pt.Lat == 0 && pt.Lng == 0 {
		return model.Fail(model.KindAHJ, "coordinates are required")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	geo, err := a.query(ctx, pt)
	if err != nil {
		return failFrom(model.KindAHJ, "ahj lookup", err)
	}

	data := model.AHJData{
		Place:             firstName(geo, "Incorporated Places"),
		CountySubdivision: firstName(geo, "County Subdivisions"),
		County:            firstName(geo, "Counties"),
	}

	// Most locally authoritative jurisdiction wins.
	switch {
	case data.Place != "":
		data.Jurisdiction = data.Place
	case data.CountySubdivision != "":
		data.Jurisdiction = data.CountySubdivision
	case data.County != "":
		data.Jurisdiction = data.County
	default:
		data.Jurisdiction = "Unknown"
	}

	zap.L().Debug("ahj resolved",
		zap.Float64("lat", pt.Lat),
		zap.Float64("lng", pt.Lng),
		zap.String("jurisdiction", data.Jurisdiction),
	)
	return model.OK(model.KindAHJ, data)
}

func (a *AHJAdapter) query(ctx context.Context, pt model.GeoPoint) (*geographiesResponse, error) {
	params := url.Values{
		"x":         {fmt.Sprintf("%f", pt.Lng)},
		"y":         {fmt.Sprintf("%f", pt.Lat)},
		"benchmark": {"Public_AR_Current"},
		"vintage":   {"Current_Current"},
		"format":    {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "build request")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geography API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read body")
	}

	var geo geographiesResponse
	if err := json.Unmarshal(body, &geo); err != nil {
		return nil, eris.Wrap(err, "parse response")
	}
	return &geo, nil
}

func firstName(geo *geographiesResponse, layer string) string {
	entries := geo.Result.Geographies[layer]
	if len(entries) == 0 {
		return ""
	}
	return entries[0].Name
}
