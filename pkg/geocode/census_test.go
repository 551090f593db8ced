package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCensusGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"result": {
				"addressMatches": [{
					"coordinates": {"x": -76.8867, "y": 40.2737},
					"addressComponents": {"state": "PA", "city": "HARRISBURG", "zip": "17101"},
					"matchedAddress": "100 MARKET ST, HARRISBURG, PA, 17101"
				}]
			}
		}`)
	}))
	defer srv.Close()

	g := &geocoder{
		httpClient: newRewriteClient(srv.URL, censusOneLineURL),
		limiter:    newTestLimiter(),
	}

	result, err := g.geocodeCensus(context.Background(), "100 Market St, Harrisburg, PA 17101")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.InDelta(t, 40.2737, result.Latitude, 0.0001)
	assert.InDelta(t, -76.8867, result.Longitude, 0.0001)
	assert.Equal(t, "PA", result.State)
	assert.Equal(t, "census", result.Source)
}

func TestCensusGeocode_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"result": {"addressMatches": []}}`)
	}))
	defer srv.Close()

	g := &geocoder{
		httpClient: newRewriteClient(srv.URL, censusOneLineURL),
		limiter:    newTestLimiter(),
	}

	result, err := g.geocodeCensus(context.Background(), "123 Nowhere St, Faketown, XX 00000")
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Equal(t, "census", result.Source)
}

func TestCensusGeocode_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := &geocoder{
		httpClient: newRewriteClient(srv.URL, censusOneLineURL),
		limiter:    newTestLimiter(),
	}

	_, err := g.geocodeCensus(context.Background(), "100 Market St, Harrisburg, PA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}
