package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunbase-energy/sitescout/internal/config"
	"github.com/sunbase-energy/sitescout/internal/model"
)

func testWeatherConfig(baseURL string) config.WeatherConfig {
	return config.WeatherConfig{BaseURL: baseURL, MaxStations: 9, TimeoutSecs: 2}
}

func stationFeature(id, name string, distance float64) string {
	return fmt.Sprintf(`{"properties": {"stationIdentifier": %q, "name": %q, "distance": {"value": %f}, "timeZone": "America/New_York"}}`,
		id, name, distance)
}

func TestWeather_TruncatesToMaxStations(t *testing.T) {
	features := make([]string, 15)
	for i := range features {
		features[i] = stationFeature(fmt.Sprintf("KST%02d", i), fmt.Sprintf("Station %d", i), float64(i*1000))
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/stations")
		_, _ = io.WriteString(w, `{"features": [`+strings.Join(features, ",")+`]}`)
	}))
	defer srv.Close()

	a := NewWeatherAdapter(testWeatherConfig(srv.URL))
	res := a.FetchByPoint(context.Background(), model.GeoPoint{Lat: 40.27, Lng: -76.88})
	require.True(t, res.Success, "error: %s", res.Err)

	stations := res.Data.([]model.WeatherStation)
	require.Len(t, stations, 9)
	// Provider proximity order preserved.
	assert.Equal(t, "KST00", stations[0].ID)
	assert.Equal(t, "Station 8", stations[8].Name)
	assert.Equal(t, "America/New_York", stations[0].TimeZone)
}

func TestWeather_MissingFeatures_IsEmptySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"title": "no stations here"}`)
	}))
	defer srv.Close()

	a := NewWeatherAdapter(testWeatherConfig(srv.URL))
	res := a.FetchByPoint(context.Background(), model.GeoPoint{Lat: 71.2, Lng: -156.7})
	require.True(t, res.Success, "a location with no stations is valid, not an error")
	assert.Empty(t, res.Data.([]model.WeatherStation))
}

func TestWeather_ZeroCoordinates_NoNetworkCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	a := NewWeatherAdapter(testWeatherConfig(srv.URL))
	res := a.FetchByPoint(context.Background(), model.GeoPoint{})
	assert.False(t, res.Success)
}

func TestWeather_ServerError_Fails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewWeatherAdapter(testWeatherConfig(srv.URL))
	res := a.FetchByPoint(context.Background(), model.GeoPoint{Lat: 40, Lng: -76})
	assert.False(t, res.Success)
	assert.Contains(t, res.Err, "status 503")
}
