// Package orchestrator fans one scrape request out across every data
// source, delivering each result to a caller-supplied sink as it
// completes.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sunbase-energy/sitescout/internal/ashrae"
	"github.com/sunbase-energy/sitescout/internal/model"
	"github.com/sunbase-energy/sitescout/internal/source"
	"github.com/sunbase-energy/sitescout/pkg/geocode"
)

// Sink receives results as the run produces them. Deliver is called
// exactly once per source; Station is called once per weather station,
// after the weather result itself has been delivered. Implementations
// must be safe for concurrent use.
type Sink interface {
	Deliver(res model.SourceResult)
	Station(st model.WeatherStation, rec *ashrae.Record)
}

// Session is the per-run state: an identifier for log correlation and a
// climate-record cache that lives exactly as long as the run.
type Session struct {
	ID    uuid.UUID
	Cache *ashrae.Cache
}

// NewSession creates run-scoped state backed by the given record client.
func NewSession(records ashrae.Client) *Session {
	return &Session{
		ID:    uuid.New(),
		Cache: ashrae.NewCache(records),
	}
}

// Adapters groups one adapter per source kind.
type Adapters struct {
	Zillow  source.AddressAdapter
	Regrid  source.AddressAdapter
	ASCE716 source.AddressAdapter
	ASCE722 source.AddressAdapter
	AHJ     source.PointAdapter
	Utility source.PointAdapter
	Weather source.PointAdapter
}

// Orchestrator drives the fan-out pipeline for scrape requests.
type Orchestrator struct {
	geocoder geocode.Client
	records  ashrae.Client
	adapters Adapters
}

// New creates an orchestrator over the given geocoder, record store, and
// adapter set.
func New(geocoder geocode.Client, records ashrae.Client, adapters Adapters) *Orchestrator {
	return &Orchestrator{
		geocoder: geocoder,
		records:  records,
		adapters: adapters,
	}
}

// Run executes the fan-out for req, delivering every result to sink. An
// error is returned only for invalid input, before any network or
// browser work; adapter failures surface as failed SourceResults.
//
// When only is non-empty, sources outside the set are skipped entirely.
func (o *Orchestrator) Run(ctx context.Context, req model.ScrapeRequest, sink Sink, only ...model.Kind) error {
	if msg := req.Validate(); msg != "" {
		return eris.New("orchestrator: " + msg)
	}

	session := NewSession(o.records)
	log := zap.L().With(zap.String("session", session.ID.String()))
	log.Info("scrape run starting", zap.String("address", req.Address))

	include := includeSet(req, only)

	g, ctx := errgroup.WithContext(ctx)

	launch := func(kind model.Kind, fn func(ctx context.Context) model.SourceResult) {
		if !include[kind] {
			return
		}
		g.Go(func() error {
			sink.Deliver(runSafely(ctx, kind, fn))
			return nil
		})
	}

	// Address-keyed sources start immediately.
	launch(model.KindZillow, func(ctx context.Context) model.SourceResult {
		return o.adapters.Zillow.FetchByAddress(ctx, req)
	})
	launch(model.KindRegrid, func(ctx context.Context) model.SourceResult {
		return o.adapters.Regrid.FetchByAddress(ctx, req)
	})
	launch(model.KindASCE716, func(ctx context.Context) model.SourceResult {
		return o.adapters.ASCE716.FetchByAddress(ctx, req)
	})
	launch(model.KindASCE722, func(ctx context.Context) model.SourceResult {
		return o.adapters.ASCE722.FetchByAddress(ctx, req)
	})

	// Point-keyed sources wait behind the geocoder, unless the caller
	// already supplied coordinates.
	if include[model.KindAHJ] || include[model.KindUtility] || include[model.KindWeather] {
		g.Go(func() error {
			pt := req.Point()
			var err error
			if pt == nil {
				pt, err = o.resolve(ctx, req.Address)
			}
			if err != nil {
				log.Warn("geocoding failed", zap.Error(err))
				for _, kind := range []model.Kind{model.KindAHJ, model.KindUtility, model.KindWeather} {
					if include[kind] {
						sink.Deliver(model.Fail(kind, "Geocoding failed"))
					}
				}
				return nil
			}
			log.Debug("address resolved",
				zap.Float64("lat", pt.Lat),
				zap.Float64("lng", pt.Lng),
				zap.String("state", pt.State))

			launch(model.KindAHJ, func(ctx context.Context) model.SourceResult {
				return o.adapters.AHJ.FetchByPoint(ctx, *pt)
			})
			launch(model.KindUtility, func(ctx context.Context) model.SourceResult {
				return o.adapters.Utility.FetchByPoint(ctx, *pt)
			})
			if include[model.KindWeather] {
				g.Go(func() error {
					res := runSafely(ctx, model.KindWeather, func(ctx context.Context) model.SourceResult {
						return o.adapters.Weather.FetchByPoint(ctx, *pt)
					})
					// Stations are delivered before their enrichment.
					sink.Deliver(res)
					if res.Success {
						o.enrichStations(ctx, session, pt.State, res, sink)
					}
					return nil
				})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "orchestrator: fan-out")
	}
	log.Info("scrape run complete")
	return nil
}

// resolve runs the geocode gate. An unmatched address is a failure for
// every point-keyed source, same as a provider error.
func (o *Orchestrator) resolve(ctx context.Context, address string) (*model.GeoPoint, error) {
	result, err := o.geocoder.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}
	if !result.Matched {
		return nil, eris.New("orchestrator: address did not match any location")
	}
	return &model.GeoPoint{
		Lat:   result.Latitude,
		Lng:   result.Longitude,
		State: result.State,
	}, nil
}

// enrichStations looks up the climate record for each station, strictly
// sequentially so repeated station names hit the session cache and the
// backend sees at most one query per distinct token.
func (o *Orchestrator) enrichStations(ctx context.Context, session *Session, state string, res model.SourceResult, sink Sink) {
	stations, ok := res.Data.([]model.WeatherStation)
	if !ok {
		return
	}
	for _, st := range stations {
		rec, err := session.Cache.Lookup(ctx, state, st.Name)
		if err != nil {
			zap.L().Warn("climate record lookup failed",
				zap.String("session", session.ID.String()),
				zap.String("station", st.Name),
				zap.Error(err))
		}
		sink.Station(st, rec)
	}
}

// runSafely invokes one adapter, converting a panic into a failed result
// so a single misbehaving scraper cannot take down the run.
func runSafely(ctx context.Context, kind model.Kind, fn func(ctx context.Context) model.SourceResult) (res model.SourceResult) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("adapter panicked",
				zap.String("source", string(kind)),
				zap.Any("panic", r))
			res = model.Fail(kind, fmt.Sprintf("internal error: %v", r))
		}
	}()
	return fn(ctx)
}

// includeSet builds the set of sources this run covers. A request
// standard narrows the ASCE pair to the matching kind; an explicit only
// list narrows further.
func includeSet(req model.ScrapeRequest, only []model.Kind) map[model.Kind]bool {
	include := make(map[model.Kind]bool, len(model.Kinds()))
	for _, kind := range model.Kinds() {
		include[kind] = true
	}
	switch req.Standard {
	case model.Standard716:
		include[model.KindASCE722] = false
	case model.Standard722:
		include[model.KindASCE716] = false
	}
	if len(only) > 0 {
		requested := make(map[model.Kind]bool, len(only))
		for _, kind := range only {
			requested[kind] = true
		}
		for kind := range include {
			include[kind] = include[kind] && requested[kind]
		}
	}
	return include
}
