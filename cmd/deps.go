package main

import (
	"github.com/sunbase-energy/sitescout/internal/ashrae"
	"github.com/sunbase-energy/sitescout/internal/browser"
	"github.com/sunbase-energy/sitescout/internal/config"
	"github.com/sunbase-energy/sitescout/internal/model"
	"github.com/sunbase-energy/sitescout/internal/orchestrator"
	"github.com/sunbase-energy/sitescout/internal/source"
	"github.com/sunbase-energy/sitescout/pkg/geocode"
)

// env wires the full adapter set off the loaded configuration. Both the
// serve and scrape commands run the same pipeline; only the sink
// differs.
type env struct {
	orch     *orchestrator.Orchestrator
	geocoder geocode.Client
	records  ashrae.Client
}

func buildEnv(cfg *config.Config) *env {
	geocoder := geocode.NewClient(
		geocode.WithGoogleAPIKey(cfg.Geocode.GoogleAPIKey),
		geocode.WithRateLimit(cfg.Geocode.CensusRPS),
	)
	records := ashrae.NewClient(cfg.Ashrae.BaseURL, cfg.Ashrae.Token)
	launcher := browser.NewChromeLauncher(cfg.Browser)

	adapters := orchestrator.Adapters{
		Zillow:  source.NewZillowAdapter(launcher, cfg.Browser),
		Regrid:  source.NewRegridAdapter(launcher, cfg.Browser, cfg.Regrid),
		ASCE716: source.NewASCEAdapter(launcher, cfg.Browser, model.Standard716),
		ASCE722: source.NewASCEAdapter(launcher, cfg.Browser, model.Standard722),
		AHJ:     source.NewAHJAdapter(),
		Utility: source.NewUtilityAdapter(cfg.Utility),
		Weather: source.NewWeatherAdapter(cfg.Weather),
	}

	return &env{
		orch:     orchestrator.New(geocoder, records, adapters),
		geocoder: geocoder,
		records:  records,
	}
}

// parseKinds maps the source names callers pass on the command line or
// in URLs to kinds, rejecting unknown names.
func parseKinds(names []string) ([]model.Kind, bool) {
	valid := make(map[model.Kind]bool, len(model.Kinds()))
	for _, kind := range model.Kinds() {
		valid[kind] = true
	}
	kinds := make([]model.Kind, 0, len(names))
	for _, name := range names {
		kind := model.Kind(name)
		if !valid[kind] {
			return nil, false
		}
		kinds = append(kinds, kind)
	}
	return kinds, true
}
