package source

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sunbase-energy/sitescout/internal/browser"
	"github.com/sunbase-energy/sitescout/internal/config"
	"github.com/sunbase-energy/sitescout/internal/model"
)

const regridAppURL = "https://app.regrid.com/"

// regridExtractors scrape the parcel sidebar text. Each field carries
// several label variants because Regrid's wording shifts between parcels.
var regridExtractors = map[string]fieldExtractor{
	"parcel": {field: "parcel_number", strategies: []extractor{
		{"parcel id", regexp.MustCompile(`(?i)Parcel\s*ID\s*:?\s*([A-Za-z0-9./-]+)`)},
		{"parcel number", regexp.MustCompile(`(?i)Parcel\s*Number\s*:?\s*([A-Za-z0-9./-]+)`)},
		{"apn", regexp.MustCompile(`(?i)APN\s*:?\s*([A-Za-z0-9./-]+)`)},
	}},
	"owner": {field: "owner", strategies: []extractor{
		{"owner", regexp.MustCompile(`(?i)Owner\s*:?\s*\n?\s*([A-Z][A-Za-z&,.'\s-]+?)\s*(?:\n|$)`)},
		{"owner name", regexp.MustCompile(`(?i)Owner\s*Name\s*:?\s*([A-Z][A-Za-z&,.'\s-]+?)\s*(?:\n|$)`)},
	}},
	"lot": {field: "lot_size", strategies: []extractor{
		{"measurements", regexp.MustCompile(`(?i)(?:Lot\s*Size|Measurements)\s*:?\s*([\d,.]+\s*(?:acres?|sq\s*ft|sqft))`)},
		{"acres", regexp.MustCompile(`(?i)([\d,.]+\s*acres?)\b`)},
	}},
	"landuse": {field: "land_use", strategies: []extractor{
		{"land use", regexp.MustCompile(`(?i)Land\s*Use\s*(?:Code)?\s*:?\s*([A-Za-z][A-Za-z\s/-]+?)\s*(?:\n|$)`)},
		{"zoning", regexp.MustCompile(`(?i)Zoning\s*:?\s*([A-Za-z0-9][A-Za-z0-9\s/-]*?)\s*(?:\n|$)`)},
	}},
}

// RegridAdapter logs into the Regrid map application, searches the
// address, and extracts parcel facts from the sidebar. Requires
// credentials; config defaults back empty request credentials.
type RegridAdapter struct {
	launcher browser.Launcher
	cfg      config.BrowserConfig
	creds    config.RegridConfig
}

// NewRegridAdapter creates the Regrid adapter.
func NewRegridAdapter(launcher browser.Launcher, cfg config.BrowserConfig, creds config.RegridConfig) *RegridAdapter {
	return &RegridAdapter{launcher: launcher, cfg: cfg, creds: creds}
}

func (a *RegridAdapter) Kind() model.Kind { return model.KindRegrid }

// FetchByAddress runs the login, search, and extract sequence. The
// browser session is released on every exit path.
func (a *RegridAdapter) FetchByAddress(ctx context.Context, req model.ScrapeRequest) (res model.SourceResult) {
	if strings.TrimSpace(req.Address) == "" {
		return model.Fail(model.KindRegrid, "address is required")
	}

	email, password := a.creds.Email, a.creds.Password
	if req.Credentials != nil && req.Credentials.Email != "" {
		email, password = req.Credentials.Email, req.Credentials.Password
	}
	if email == "" || password == "" {
		return model.Fail(model.KindRegrid, "regrid credentials are required")
	}

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("regrid adapter panic", zap.Any("panic", r))
			res = model.Fail(model.KindRegrid, "regrid scrape failed unexpectedly")
		}
	}()

	sess, err := a.launcher.NewSession(ctx)
	if err != nil {
		return failFrom(model.KindRegrid, "regrid session", err)
	}
	defer sess.Close() //nolint:errcheck

	if err := step(ctx, a.cfg.NavTimeoutDuration(), func(ctx context.Context) error {
		return sess.Navigate(ctx, regridAppURL)
	}); err != nil {
		return failFrom(model.KindRegrid, "regrid navigate", err)
	}

	if err := a.login(ctx, sess, email, password); err != nil {
		return failFrom(model.KindRegrid, "regrid login", err)
	}

	if err := a.search(ctx, sess, req.Address); err != nil {
		return failFrom(model.KindRegrid, "regrid search", err)
	}

	var text string
	if err := step(ctx, a.cfg.WaitTimeoutDuration(), func(ctx context.Context) (stepErr error) {
		text, stepErr = sess.PageText(ctx)
		return stepErr
	}); err != nil {
		return failFrom(model.KindRegrid, "regrid extract", err)
	}

	data := model.RegridData{
		ParcelNumber: regridExtractors["parcel"].extract(text),
		Owner:        regridExtractors["owner"].extract(text),
		LotSize:      regridExtractors["lot"].extract(text),
		LandUse:      regridExtractors["landuse"].extract(text),
	}
	return model.OK(model.KindRegrid, data)
}

// login fills the form via direct property assignment plus synthetic
// input/change events (the target is a single-page app, not a plain form)
// and polls until either the invalid-credentials message appears or the
// form disappears.
func (a *RegridAdapter) login(ctx context.Context, sess browser.Session, email, password string) error {
	if err := step(ctx, a.cfg.WaitTimeoutDuration(), func(ctx context.Context) error {
		return sess.WaitVisible(ctx, `input[type="email"], input[name="user[email]"]`)
	}); err != nil {
		// No login form at all likely means an existing session cookie;
		// continue to search.
		zap.L().Debug("regrid login form not shown", zap.Error(err))
		return nil
	}

	if err := sess.SetField(ctx, `input[type="email"], input[name="user[email]"]`, email); err != nil {
		return eris.Wrap(err, "fill email")
	}
	if err := sess.SetField(ctx, `input[type="password"], input[name="user[password]"]`, password); err != nil {
		return eris.Wrap(err, "fill password")
	}
	if err := sess.Click(ctx, `button[type="submit"], input[type="submit"]`); err != nil {
		return eris.Wrap(err, "submit login")
	}

	deadline := time.Now().Add(a.cfg.WaitTimeoutDuration())
	for time.Now().Before(deadline) {
		var state string
		err := sess.Evaluate(ctx, `(() => {
			if (document.body && document.body.innerText.includes('Invalid email or password')) return 'invalid';
			if (!document.querySelector('input[type="password"]')) return 'ok';
			return 'pending';
		})()`, &state)
		if err != nil {
			return eris.Wrap(err, "poll login state")
		}
		switch state {
		case "invalid":
			return eris.New("invalid credentials")
		case "ok":
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return eris.New("login did not complete")
}

// search types the address, waits for autocomplete, and picks the first
// suggestion via keyboard — more robust than clicking a dynamic DOM node.
func (a *RegridAdapter) search(ctx context.Context, sess browser.Session, address string) error {
	searchSel := `input[type="search"], #glmap-search input, input[placeholder*="Search"]`

	if err := step(ctx, a.cfg.WaitTimeoutDuration(), func(ctx context.Context) error {
		return sess.WaitVisible(ctx, searchSel)
	}); err != nil {
		return eris.Wrap(err, "search box")
	}

	if err := sess.SendKeys(ctx, searchSel, address); err != nil {
		return eris.Wrap(err, "type address")
	}

	if err := step(ctx, a.cfg.WaitTimeoutDuration(), func(ctx context.Context) error {
		return sess.WaitFunc(ctx, `document.querySelectorAll('[class*="suggestion"], [class*="autocomplete"] li, [role="option"]').length > 0`)
	}); err != nil {
		return eris.Wrap(err, "autocomplete suggestions")
	}

	if err := sess.SendKeys(ctx, searchSel, browser.KeyArrowDown+browser.KeyEnter); err != nil {
		return eris.Wrap(err, "select suggestion")
	}

	// Sidebar renders once a parcel is selected.
	return step(ctx, a.cfg.WaitTimeoutDuration(), func(ctx context.Context) error {
		return sess.WaitFunc(ctx, `(() => {
			const el = document.querySelector('[class*="sidebar"], [class*="parcel-details"]');
			return el && el.innerText.length > 50;
		})()`)
	})
}
