package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeocode_EmptyAddress_NoNetworkCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := &geocoder{
		httpClient: newRewriteClient(srv.URL, censusOneLineURL),
		limiter:    newTestLimiter(),
	}

	_, err := g.Geocode(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, int32(0), calls.Load())
}

func TestGeocode_CensusUnmatched_NoGoogleKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"result": {"addressMatches": []}}`)
	}))
	defer srv.Close()

	g := &geocoder{
		httpClient: newRewriteClient(srv.URL, censusOneLineURL),
		limiter:    newTestLimiter(),
	}

	result, err := g.Geocode(context.Background(), "123 Nowhere St")
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestGeocode_GoogleFallback(t *testing.T) {
	censusSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"result": {"addressMatches": []}}`)
	}))
	defer censusSrv.Close()

	googleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{
			"status": "OK",
			"results": [{
				"geometry": {"location": {"lat": 40.2737, "lng": -76.8867}},
				"address_components": [
					{"short_name": "Harrisburg", "types": ["locality"]},
					{"short_name": "PA", "types": ["administrative_area_level_1", "political"]}
				],
				"formatted_address": "100 Market St, Harrisburg, PA 17101, USA"
			}]
		}`)
	}))
	defer googleSrv.Close()

	// Chain two rewrite transports so each provider hits its own test server.
	hc := newRewriteClient(censusSrv.URL, censusOneLineURL)
	hc.Transport = &rewriteTransport{
		base:         hc.Transport,
		testServer:   googleSrv.URL,
		targetPrefix: googleGeocodeURL,
	}

	g := &geocoder{
		httpClient: hc,
		googleKey:  "test-key",
		limiter:    newTestLimiter(),
	}

	result, err := g.Geocode(context.Background(), "100 Market St, Harrisburg, PA 17101")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, "google", result.Source)
	assert.Equal(t, "PA", result.State)
	assert.InDelta(t, 40.2737, result.Latitude, 0.0001)
}

func TestReverseGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("latlng"))
		_, _ = io.WriteString(w, `{
			"status": "OK",
			"results": [{"formatted_address": "100 Market St, Harrisburg, PA 17101, USA", "geometry": {"location": {"lat": 40.27, "lng": -76.88}}}]
		}`)
	}))
	defer srv.Close()

	g := &geocoder{
		httpClient: newRewriteClient(srv.URL, googleGeocodeURL),
		googleKey:  "test-key",
		limiter:    newTestLimiter(),
	}

	addr, err := g.ReverseGeocode(context.Background(), 40.27, -76.88)
	require.NoError(t, err)
	assert.Equal(t, "100 Market St, Harrisburg, PA 17101, USA", addr)
}

func TestReverseGeocode_NoKey(t *testing.T) {
	g := &geocoder{limiter: newTestLimiter(), httpClient: http.DefaultClient}
	_, err := g.ReverseGeocode(context.Background(), 40.27, -76.88)
	require.Error(t, err)
}
