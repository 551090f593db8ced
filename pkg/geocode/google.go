package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// googleGeocodeResponse is the JSON response from the Google Geocoding API.
type googleGeocodeResponse struct {
	Results []googleResult `json:"results"`
	Status  string         `json:"status"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	AddressComponents []googleAddressComponent `json:"address_components"`
	FormattedAddress  string                   `json:"formatted_address"`
}

type googleAddressComponent struct {
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

// geocodeGoogle geocodes a single address using the Google Geocoding API.
func (g *geocoder) geocodeGoogle(ctx context.Context, address string) (*Result, error) {
	if g.googleKey == "" {
		return nil, eris.New("geocode: google api key not configured")
	}

	googleResp, err := g.queryGoogle(ctx, url.Values{
		"address": {address},
		"key":     {g.googleKey},
	})
	if err != nil {
		return nil, err
	}

	if googleResp.Status != "OK" || len(googleResp.Results) == 0 {
		return &Result{Matched: false, Source: "google"}, nil
	}

	result := googleResp.Results[0]
	return &Result{
		Latitude:       result.Geometry.Location.Lat,
		Longitude:      result.Geometry.Location.Lng,
		State:          googleState(result.AddressComponents),
		MatchedAddress: result.FormattedAddress,
		Source:         "google",
		Matched:        true,
	}, nil
}

// ReverseGeocode resolves coordinates to a formatted address via Google.
func (g *geocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	if g.googleKey == "" {
		return "", eris.New("geocode: google api key not configured")
	}

	googleResp, err := g.queryGoogle(ctx, url.Values{
		"latlng": {fmt.Sprintf("%f,%f", lat, lng)},
		"key":    {g.googleKey},
	})
	if err != nil {
		return "", err
	}

	if googleResp.Status != "OK" || len(googleResp.Results) == 0 {
		return "", eris.Errorf("geocode: reverse lookup found no address (status %s)", googleResp.Status)
	}

	return googleResp.Results[0].FormattedAddress, nil
}

func (g *geocoder) queryGoogle(ctx context.Context, params url.Values) (*googleGeocodeResponse, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: google rate limit")
	}

	reqURL := googleGeocodeURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: google returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google read body")
	}

	var googleResp googleGeocodeResponse
	if err := json.Unmarshal(body, &googleResp); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}

	return &googleResp, nil
}

// googleState pulls the USPS state code from Google's address components.
func googleState(components []googleAddressComponent) string {
	for _, c := range components {
		for _, t := range c.Types {
			if t == "administrative_area_level_1" {
				return c.ShortName
			}
		}
	}
	return ""
}
