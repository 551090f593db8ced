package source

import (
	"context"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sunbase-energy/sitescout/internal/browser"
	"github.com/sunbase-energy/sitescout/internal/config"
	"github.com/sunbase-energy/sitescout/internal/model"
)

const asceToolURL = "https://ascehazardtool.org/"

// splashCloseSelectors are the close-button variants the tool's splash
// screen has shipped with; tried in turn, first success wins.
var splashCloseSelectors = []string{
	`button[aria-label="Close"]`,
	`.modal-close`,
	`.splash-screen button`,
	`button.close`,
}

var (
	windRe = regexp.MustCompile(`(?i)Wind[^\d]{0,40}(\d+(?:\.\d+)?)\s*(?:mph|Vmph)`)
	snowRe = regexp.MustCompile(`(?i)Snow[^\d]{0,40}(\d+(?:\.\d+)?)\s*(?:psf|lb)`)
)

// ASCEAdapter drives the ASCE hazard tool for one standard edition. The
// orchestrator constructs two of these, one per standard.
type ASCEAdapter struct {
	launcher browser.Launcher
	cfg      config.BrowserConfig
	standard model.Standard
}

// NewASCEAdapter creates a hazard-tool adapter for the given standard.
func NewASCEAdapter(launcher browser.Launcher, cfg config.BrowserConfig, standard model.Standard) *ASCEAdapter {
	return &ASCEAdapter{launcher: launcher, cfg: cfg, standard: standard}
}

func (a *ASCEAdapter) Kind() model.Kind {
	if a.standard == model.Standard722 {
		return model.KindASCE722
	}
	return model.KindASCE716
}

// FetchByAddress runs the full tool sequence: splash dismissal, geocoder
// input, dropdown setup, layer toggles, results wait, extraction. The
// browser session is released on every exit path.
func (a *ASCEAdapter) FetchByAddress(ctx context.Context, req model.ScrapeRequest) (res model.SourceResult) {
	kind := a.Kind()
	if strings.TrimSpace(req.Address) == "" {
		return model.Fail(kind, "address is required")
	}

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("asce adapter panic", zap.Any("panic", r))
			res = model.Fail(kind, "asce scrape failed unexpectedly")
		}
	}()

	sess, err := a.launcher.NewSession(ctx)
	if err != nil {
		return failFrom(kind, "asce session", err)
	}
	defer sess.Close() //nolint:errcheck

	if err := step(ctx, a.cfg.NavTimeoutDuration(), func(ctx context.Context) error {
		return sess.Navigate(ctx, asceToolURL)
	}); err != nil {
		return failFrom(kind, "asce navigate", err)
	}

	a.dismissSplash(ctx, sess)

	if err := a.setupQuery(ctx, sess, req.Address); err != nil {
		return failFrom(kind, "asce query", err)
	}

	if err := a.awaitResults(ctx, sess); err != nil {
		return failFrom(kind, "asce results", err)
	}

	data := a.extract(ctx, sess)
	return model.OK(kind, data)
}

// dismissSplash tries each known close-button variant and stops at the
// first that works. A missing splash screen is fine.
func (a *ASCEAdapter) dismissSplash(ctx context.Context, sess browser.Session) {
	for _, sel := range splashCloseSelectors {
		err := step(ctx, a.cfg.WaitTimeoutDuration()/4, func(ctx context.Context) error {
			return sess.Click(ctx, sel)
		})
		if err == nil {
			return
		}
	}
	zap.L().Debug("asce splash screen not present")
}

// setupQuery types the address, sets the standard and risk-category
// dropdowns by direct value assignment plus a change event (the selects
// are framework-driven, not native forms), toggles the Wind and Snow data
// layers, and triggers View Results.
func (a *ASCEAdapter) setupQuery(ctx context.Context, sess browser.Session, address string) error {
	geocoderSel := `input[class*="geocoder"], input[placeholder*="Address"], input[placeholder*="address"]`

	if err := step(ctx, a.cfg.WaitTimeoutDuration(), func(ctx context.Context) error {
		return sess.WaitVisible(ctx, geocoderSel)
	}); err != nil {
		return eris.Wrap(err, "geocoder input")
	}
	if err := sess.SendKeys(ctx, geocoderSel, address+browser.KeyEnter); err != nil {
		return eris.Wrap(err, "type address")
	}

	if err := sess.SetField(ctx, `select[name*="standard"], #standard-select`, string(a.standard)); err != nil {
		return eris.Wrap(err, "set standard")
	}
	if err := sess.SetField(ctx, `select[name*="risk"], #risk-category-select`, "II"); err != nil {
		return eris.Wrap(err, "set risk category")
	}

	// Data-layer checkboxes carry no stable ids; match their visible labels.
	for _, layer := range []string{"Wind", "Snow"} {
		var toggled bool
		err := sess.Evaluate(ctx, `(() => {
			for (const label of document.querySelectorAll('label')) {
				if (label.textContent.trim().startsWith(`+jsQuote(layer)+`)) {
					const box = label.querySelector('input[type="checkbox"]') ||
						document.getElementById(label.htmlFor);
					if (box && !box.checked) { box.click(); }
					return true;
				}
			}
			return false;
		})()`, &toggled)
		if err != nil {
			return eris.Wrapf(err, "toggle %s layer", layer)
		}
		if !toggled {
			zap.L().Warn("asce data layer label not found", zap.String("layer", layer))
		}
	}

	// View Results is an anchor in current builds; fall back to any
	// element carrying the text.
	var clicked bool
	err := sess.Evaluate(ctx, `(() => {
		for (const aEl of document.querySelectorAll('a')) {
			if (aEl.textContent.includes('View Results')) { aEl.click(); return true; }
		}
		for (const el of document.querySelectorAll('button, [role="button"], div')) {
			if (el.textContent.trim() === 'View Results') { el.click(); return true; }
		}
		return false;
	})()`, &clicked)
	if err != nil {
		return eris.Wrap(err, "view results")
	}
	if !clicked {
		return eris.New("view results control not found")
	}
	return nil
}

// awaitResults waits until the results container holds non-trivial text
// and the loading placeholder is gone.
func (a *ASCEAdapter) awaitResults(ctx context.Context, sess browser.Session) error {
	return step(ctx, a.cfg.NavTimeoutDuration(), func(ctx context.Context) error {
		return sess.WaitFunc(ctx, `(() => {
			const el = document.querySelector('[class*="results"], #results');
			if (!el) return false;
			const text = el.innerText || '';
			return text.length > 30 && !text.includes('Retrieving Data...');
		})()`)
	})
}

// extract reads wind speed and snow load from the labeled result
// containers, regex-scraping the whole page text when they are absent.
func (a *ASCEAdapter) extract(ctx context.Context, sess browser.Session) model.HazardData {
	var data model.HazardData

	var fromContainers struct {
		Wind string `json:"wind"`
		Snow string `json:"snow"`
	}
	err := sess.Evaluate(ctx, `(() => {
		const out = {wind: "", snow: ""};
		for (const el of document.querySelectorAll('[class*="result"]')) {
			const text = el.innerText || '';
			if (!out.wind && /Wind/i.test(text)) { const m = text.match(/([\d.]+)\s*(?:mph|Vmph)/i); if (m) out.wind = m[1]; }
			if (!out.snow && /Snow/i.test(text)) { const m = text.match(/([\d.]+)\s*(?:psf|lb)/i); if (m) out.snow = m[1]; }
		}
		return out;
	})()`, &fromContainers)
	if err == nil {
		data.WindSpeed = fromContainers.Wind
		data.SnowLoad = fromContainers.Snow
	}

	if data.WindSpeed != "" && data.SnowLoad != "" {
		return data
	}

	text, err := sess.PageText(ctx)
	if err != nil {
		return data
	}
	if data.WindSpeed == "" {
		if m := windRe.FindStringSubmatch(text); len(m) > 1 {
			data.WindSpeed = m[1]
		}
	}
	if data.SnowLoad == "" {
		if m := snowRe.FindStringSubmatch(text); len(m) > 1 {
			data.SnowLoad = m[1]
		}
	}
	return data
}

// jsQuote quotes a Go string as a JavaScript literal for inline scripts.
func jsQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
