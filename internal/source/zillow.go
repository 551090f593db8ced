package source

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sunbase-energy/sitescout/internal/browser"
	"github.com/sunbase-energy/sitescout/internal/config"
	"github.com/sunbase-energy/sitescout/internal/model"
)

// streetAbbrevs are the slug substitutions Zillow listing URLs use.
var streetAbbrevs = map[string]string{
	"road":   "rd",
	"street": "st",
	"avenue": "ave",
	"drive":  "dr",
}

// zillowExtractors are the regex fallbacks when the embedded JSON blobs
// are absent or incomplete.
var zillowExtractors = map[string]fieldExtractor{
	"parcel": {field: "parcel_number", strategies: []extractor{
		{"parcel number", regexp.MustCompile(`(?i)Parcel\s*(?:number|ID)\s*:?\s*([A-Za-z0-9-]+)`)},
		{"apn", regexp.MustCompile(`(?i)APN\s*:?\s*([A-Za-z0-9-]+)`)},
	}},
	"lot": {field: "lot_size", strategies: []extractor{
		{"lot size", regexp.MustCompile(`(?i)Lot\s*size\s*:?\s*([\d,.]+\s*(?:acres?|sq\s*ft|sqft)?)`)},
		{"lot label", regexp.MustCompile(`(?i)Lot\s*:?\s*([\d,.]+\s*(?:acres?|sq\s*ft|sqft))`)},
	}},
	"living": {field: "interior_area", strategies: []extractor{
		{"living area", regexp.MustCompile(`(?i)([\d,]+)\s*sqft(?:\s+living)?`)},
	}},
	"year": {field: "year_built", strategies: []extractor{
		{"year built", regexp.MustCompile(`(?i)Built\s*in\s*(\d{4})`)},
		{"year label", regexp.MustCompile(`(?i)Year\s*built\s*:?\s*(\d{4})`)},
	}},
}

// ZillowAdapter scrapes a Zillow listing page for parcel and structure
// facts. The site is hostile: it serves bot interstitials and moves its
// markup, so extraction degrades field-by-field rather than failing whole.
type ZillowAdapter struct {
	launcher browser.Launcher
	cfg      config.BrowserConfig
}

// NewZillowAdapter creates the Zillow adapter.
func NewZillowAdapter(launcher browser.Launcher, cfg config.BrowserConfig) *ZillowAdapter {
	return &ZillowAdapter{launcher: launcher, cfg: cfg}
}

func (a *ZillowAdapter) Kind() model.Kind { return model.KindZillow }

// FetchByAddress navigates to the constructed listing URL and extracts
// structured data. The browser session is released on every exit path.
func (a *ZillowAdapter) FetchByAddress(ctx context.Context, req model.ScrapeRequest) (res model.SourceResult) {
	if strings.TrimSpace(req.Address) == "" {
		return model.Fail(model.KindZillow, "address is required")
	}

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("zillow adapter panic", zap.Any("panic", r))
			res = model.Fail(model.KindZillow, "zillow scrape failed unexpectedly")
		}
	}()

	sess, err := a.launcher.NewSession(ctx)
	if err != nil {
		return failFrom(model.KindZillow, "zillow session", err)
	}
	defer sess.Close() //nolint:errcheck

	listingURL := "https://www.zillow.com/homes/" + ZillowSlug(req.Address) + "_rb/"
	if err := step(ctx, a.cfg.NavTimeoutDuration(), func(ctx context.Context) error {
		return sess.Navigate(ctx, listingURL)
	}); err != nil {
		return failFrom(model.KindZillow, "zillow navigate", err)
	}

	if err := a.handleInterstitial(ctx, sess); err != nil {
		return failFrom(model.KindZillow, "zillow interstitial", err)
	}

	data := a.extract(ctx, sess)
	return model.OK(model.KindZillow, data)
}

// handleInterstitial detects the bot-check page and strips captcha DOM
// overlays so extraction can proceed against whatever content loaded.
func (a *ZillowAdapter) handleInterstitial(ctx context.Context, sess browser.Session) error {
	var title string
	err := step(ctx, a.cfg.WaitTimeoutDuration(), func(ctx context.Context) (stepErr error) {
		title, stepErr = sess.Title(ctx)
		return stepErr
	})
	if err != nil {
		return eris.Wrap(err, "read title")
	}

	if sess.Status() != http.StatusForbidden && !isBotTitle(title) {
		return nil
	}

	zap.L().Warn("zillow bot interstitial detected",
		zap.Int("status", sess.Status()),
		zap.String("title", title))
	return step(ctx, a.cfg.WaitTimeoutDuration(), func(ctx context.Context) error {
		return sess.Evaluate(ctx, `
			for (const sel of ['#px-captcha', 'iframe[src*="captcha"]', '[class*="captcha"]', '[class*="overlay"]']) {
				document.querySelectorAll(sel).forEach(el => el.remove());
			}`, nil)
	})
}

func isBotTitle(title string) bool {
	lower := strings.ToLower(title)
	return strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "robot or human")
}

// extract reads the embedded JSON blobs first, regex-scrapes the rendered
// text for anything still missing. Partial results are still a success.
func (a *ZillowAdapter) extract(ctx context.Context, sess browser.Session) model.ZillowData {
	var data model.ZillowData

	if blob := a.readBlob(ctx, sess); blob != nil {
		data = extractZillowJSON(blob)
	}

	if data.ParcelNumber != "" && data.LotSize != "" && data.InteriorArea != "" && data.YearBuilt != "" {
		return data
	}

	var text string
	err := step(ctx, a.cfg.WaitTimeoutDuration(), func(ctx context.Context) (stepErr error) {
		text, stepErr = sess.PageText(ctx)
		return stepErr
	})
	if err != nil {
		zap.L().Debug("zillow text fallback unavailable", zap.Error(err))
		return data
	}

	if data.ParcelNumber == "" {
		data.ParcelNumber = zillowExtractors["parcel"].extract(text)
	}
	if data.LotSize == "" {
		data.LotSize = normalizeLotSize(zillowExtractors["lot"].extract(text))
	}
	if data.InteriorArea == "" {
		data.InteriorArea = zillowExtractors["living"].extract(text)
	}
	if data.YearBuilt == "" {
		data.YearBuilt = zillowExtractors["year"].extract(text)
	}
	return data
}

// readBlob pulls one of the two known embedded JSON payloads.
func (a *ZillowAdapter) readBlob(ctx context.Context, sess browser.Session) any {
	var raw string
	err := step(ctx, a.cfg.WaitTimeoutDuration(), func(ctx context.Context) error {
		return sess.Evaluate(ctx, `(() => {
			const next = document.getElementById('__NEXT_DATA__');
			if (next && next.textContent) return next.textContent;
			const hdp = document.getElementById('hdpApolloPreloadedData');
			if (hdp && hdp.textContent) return hdp.textContent;
			return "";
		})()`, &raw)
	})
	if err != nil || raw == "" {
		return nil
	}

	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		zap.L().Debug("zillow blob parse failed", zap.Error(err))
		return nil
	}
	return decoded
}

// extractZillowJSON recursively searches a decoded blob for the known
// field names.
func extractZillowJSON(blob any) model.ZillowData {
	var data model.ZillowData

	if v, ok := findJSONKey(blob, "lotSize", "lotAreaValue"); ok {
		data.LotSize = normalizeLotSize(v)
	}
	if v, ok := findJSONKey(blob, "parcelNumber", "parcelId"); ok {
		data.ParcelNumber = anyToString(v)
	}
	if v, ok := findJSONKey(blob, "livingArea", "livingAreaValue"); ok {
		data.InteriorArea = anyToString(v)
	}
	if v, ok := findJSONKey(blob, "structureArea", "finishedArea"); ok {
		data.StructureArea = anyToString(v)
	}
	if v, ok := findJSONKey(blob, "yearBuilt"); ok {
		data.YearBuilt = anyToString(v)
	}
	if v, ok := findJSONKey(blob, "newConstructionType", "isNewConstruction"); ok {
		switch t := v.(type) {
		case bool:
			data.NewConstruction = t
		case string:
			data.NewConstruction = t != ""
		}
	}
	return data
}

var slugStripRe = regexp.MustCompile(`[^a-z0-9\s-]`)

// ZillowSlug converts a street address into Zillow's listing URL slug:
// lowercase, street-type abbreviations, punctuation stripped, hyphenated.
func ZillowSlug(address string) string {
	lower := strings.ToLower(address)
	lower = slugStripRe.ReplaceAllString(lower, " ")

	words := strings.Fields(lower)
	for i, w := range words {
		if abbrev, ok := streetAbbrevs[w]; ok {
			words[i] = abbrev
		}
	}
	return strings.Join(words, "-")
}
