package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunbase-energy/sitescout/internal/model"
)

func TestASCE_KindPerStandard(t *testing.T) {
	launcher := &fakeLauncher{sess: newFakeSession()}
	cfg := testBrowserConfig()

	assert.Equal(t, model.KindASCE716, NewASCEAdapter(launcher, cfg, model.Standard716).Kind())
	assert.Equal(t, model.KindASCE722, NewASCEAdapter(launcher, cfg, model.Standard722).Kind())
}

func TestASCE_EmptyAddress_NoBrowserLaunched(t *testing.T) {
	launcher := &fakeLauncher{sess: newFakeSession()}
	a := NewASCEAdapter(launcher, testBrowserConfig(), model.Standard716)

	res := a.FetchByAddress(context.Background(), model.ScrapeRequest{})
	assert.False(t, res.Success)
	assert.Equal(t, 0, launcher.launched)
}

func TestASCE_FullSequence(t *testing.T) {
	sess := newFakeSession()
	sess.evals["checkbox"] = true
	sess.evals["View Results"] = true
	sess.evals["out.wind"] = map[string]string{"wind": "115", "snow": "30"}
	launcher := &fakeLauncher{sess: sess}
	a := NewASCEAdapter(launcher, testBrowserConfig(), model.Standard722)

	res := a.FetchByAddress(context.Background(), model.ScrapeRequest{Address: "123 Main St", Standard: model.Standard722})
	require.True(t, res.Success, "error: %s", res.Err)

	data := res.Data.(model.HazardData)
	assert.Equal(t, "115", data.WindSpeed)
	assert.Equal(t, "30", data.SnowLoad)

	// Standard and risk dropdowns set via direct value assignment.
	assert.Equal(t, "7-22", sess.fields[`select[name*="standard"], #standard-select`])
	assert.Equal(t, "II", sess.fields[`select[name*="risk"], #risk-category-select`])
	assert.Equal(t, 1, sess.closed)
}

func TestASCE_SplashDismissal_TriesVariantsInOrder(t *testing.T) {
	sess := newFakeSession()
	sess.failClick[splashCloseSelectors[0]] = true
	sess.failClick[splashCloseSelectors[1]] = true
	sess.evals["checkbox"] = true
	sess.evals["View Results"] = true
	launcher := &fakeLauncher{sess: sess}
	a := NewASCEAdapter(launcher, testBrowserConfig(), model.Standard716)

	res := a.FetchByAddress(context.Background(), model.ScrapeRequest{Address: "123 Main St"})
	require.True(t, res.Success, "error: %s", res.Err)

	// First two variants failed; the third stuck.
	require.NotEmpty(t, sess.clicks)
	assert.Equal(t, splashCloseSelectors[2], sess.clicks[0])
}

func TestASCE_RegexFallbackOverPageText(t *testing.T) {
	sess := newFakeSession()
	sess.evals["checkbox"] = true
	sess.evals["View Results"] = true
	sess.pageText = "Results\nWind Speed: 105 mph\nGround Snow Load: 25 psf\n"
	launcher := &fakeLauncher{sess: sess}
	a := NewASCEAdapter(launcher, testBrowserConfig(), model.Standard716)

	res := a.FetchByAddress(context.Background(), model.ScrapeRequest{Address: "123 Main St"})
	require.True(t, res.Success)

	data := res.Data.(model.HazardData)
	assert.Equal(t, "105", data.WindSpeed)
	assert.Equal(t, "25", data.SnowLoad)
}

func TestASCE_ViewResultsMissing_Fails(t *testing.T) {
	sess := newFakeSession()
	sess.evals["checkbox"] = true
	sess.evals["View Results"] = false
	launcher := &fakeLauncher{sess: sess}
	a := NewASCEAdapter(launcher, testBrowserConfig(), model.Standard716)

	res := a.FetchByAddress(context.Background(), model.ScrapeRequest{Address: "123 Main St"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Err, "view results")
	assert.Equal(t, 1, sess.closed)
}
