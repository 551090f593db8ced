package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sunbase-energy/sitescout/internal/config"
	"github.com/sunbase-energy/sitescout/internal/model"
	"github.com/sunbase-energy/sitescout/internal/resilience"
)

// UtilityAdapter looks up the serving utility and its rates via the NREL
// utility-rates API. The provider rate-limits and fails transiently, so
// calls carry a bounded linear-backoff retry; only network, timeout, and
// 5xx-class failures retry.
type UtilityAdapter struct {
	client *http.Client
	cfg    config.UtilityConfig
}

// NewUtilityAdapter creates the utility-rate adapter.
func NewUtilityAdapter(cfg config.UtilityConfig, opts ...UtilityOption) *UtilityAdapter {
	a := &UtilityAdapter{
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second},
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// UtilityOption configures the utility adapter.
type UtilityOption func(*UtilityAdapter)

// WithUtilityHTTPClient sets a custom HTTP client.
func WithUtilityHTTPClient(hc *http.Client) UtilityOption {
	return func(a *UtilityAdapter) { a.client = hc }
}

func (a *UtilityAdapter) Kind() model.Kind { return model.KindUtility }

// utilityResponse covers both shapes the provider returns the utility
// name in.
type utilityResponse struct {
	Outputs struct {
		UtilityName string `json:"utility_name"`
		UtilityInfo []struct {
			UtilityName string      `json:"utility_name"`
			CompanyID   json.Number `json:"company_id"`
		} `json:"utility_info"`
		Residential float64 `json:"residential"`
		Commercial  float64 `json:"commercial"`
		CompanyID   string  `json:"company_id"`
	} `json:"outputs"`
}

// FetchByPoint queries rates with retry. A response naming no utility is
// "no provider found" — success with an empty payload, never retried.
func (a *UtilityAdapter) FetchByPoint(ctx context.Context, pt model.GeoPoint) model.SourceResult {
	if pt.Lat == 0 && pt.Lng == 0 {
		return model.Fail(model.KindUtility, "coordinates are required")
	}

	retryCfg := resilience.LinearRetryConfig(a.cfg.MaxAttempts, time.Duration(a.cfg.BackoffSecs)*time.Second)
	retryCfg.OnRetry = resilience.RetryLogger("nrel", "utility rates")

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*utilityResponse, error) {
		return a.query(ctx, pt)
	})
	if err != nil {
		return failFrom(model.KindUtility, "utility lookup", err)
	}

	data := model.UtilityData{
		ResidentialRate: resp.Outputs.Residential,
		CommercialRate:  resp.Outputs.Commercial,
		CompanyID:       resp.Outputs.CompanyID,
	}
	switch {
	case resp.Outputs.UtilityName != "":
		data.UtilityName = resp.Outputs.UtilityName
	case len(resp.Outputs.UtilityInfo) > 0:
		data.UtilityName = resp.Outputs.UtilityInfo[0].UtilityName
		if data.CompanyID == "" {
			data.CompanyID = resp.Outputs.UtilityInfo[0].CompanyID.String()
		}
	}

	// No named utility at this location is a valid outcome, not an error.
	return model.OK(model.KindUtility, data)
}

func (a *UtilityAdapter) query(ctx context.Context, pt model.GeoPoint) (*utilityResponse, error) {
	params := url.Values{
		"api_key": {a.cfg.APIKey},
		"lat":     {strconv.FormatFloat(pt.Lat, 'f', -1, 64)},
		"lon":     {strconv.FormatFloat(pt.Lng, 'f', -1, 64)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "build request")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err // network errors carry their own transient signals
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read body")
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			fmt.Errorf("provider returned status %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("provider returned status %d", resp.StatusCode)
	}

	var parsed utilityResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "parse response")
	}
	return &parsed, nil
}
