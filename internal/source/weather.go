package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sunbase-energy/sitescout/internal/config"
	"github.com/sunbase-energy/sitescout/internal/model"
)

// WeatherAdapter lists observation stations near a point from the NWS
// directory. Single call, no retry; a location with no nearby stations is
// a valid outcome, not an error.
type WeatherAdapter struct {
	client *http.Client
	cfg    config.WeatherConfig
}

// NewWeatherAdapter creates the station-directory adapter.
func NewWeatherAdapter(cfg config.WeatherConfig, opts ...WeatherOption) *WeatherAdapter {
	a := &WeatherAdapter{
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second},
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// WeatherOption configures the weather adapter.
type WeatherOption func(*WeatherAdapter)

// WithWeatherHTTPClient sets a custom HTTP client.
func WithWeatherHTTPClient(hc *http.Client) WeatherOption {
	return func(a *WeatherAdapter) { a.client = hc }
}

func (a *WeatherAdapter) Kind() model.Kind { return model.KindWeather }

type stationsResponse struct {
	Features []struct {
		Properties struct {
			StationIdentifier string `json:"stationIdentifier"`
			Name              string `json:"name"`
			Distance          struct {
				Value float64 `json:"value"`
			} `json:"distance"`
			TimeZone string `json:"timeZone"`
		} `json:"properties"`
	} `json:"features"`
}

// FetchByPoint returns up to MaxStations stations in provider proximity
// order. Truncation bounds the downstream per-station enrichment cost.
func (a *WeatherAdapter) FetchByPoint(ctx context.Context, pt model.GeoPoint) model.SourceResult {
	if pt.Lat == 0 && pt.Lng == 0 {
		return model.Fail(model.KindWeather, "coordinates are required")
	}

	reqURL := fmt.Sprintf("%s/points/%.4f,%.4f/stations", a.cfg.BaseURL, pt.Lat, pt.Lng)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return failFrom(model.KindWeather, "station lookup", eris.Wrap(err, "build request"))
	}
	req.Header.Set("Accept", "application/geo+json")

	resp, err := a.client.Do(req)
	if err != nil {
		return failFrom(model.KindWeather, "station lookup", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return failFrom(model.KindWeather, "station lookup",
			eris.Errorf("provider returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failFrom(model.KindWeather, "station lookup", eris.Wrap(err, "read body"))
	}

	var parsed stationsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return failFrom(model.KindWeather, "station lookup", eris.Wrap(err, "parse response"))
	}

	// A missing or empty features array means no stations nearby.
	stations := make([]model.WeatherStation, 0, a.cfg.MaxStations)
	for _, f := range parsed.Features {
		if len(stations) >= a.cfg.MaxStations {
			break
		}
		stations = append(stations, model.WeatherStation{
			ID:             f.Properties.StationIdentifier,
			Name:           f.Properties.Name,
			DistanceMeters: f.Properties.Distance.Value,
			TimeZone:       f.Properties.TimeZone,
		})
	}

	zap.L().Debug("weather stations found",
		zap.Int("returned", len(parsed.Features)),
		zap.Int("kept", len(stations)),
	)
	return model.OK(model.KindWeather, stations)
}
