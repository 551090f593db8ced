package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunbase-energy/sitescout/internal/model"
)

func TestScrapeCmd_Metadata(t *testing.T) {
	assert.NotEmpty(t, scrapeCmd.Short)

	for _, name := range []string{"standard", "source", "timeout"} {
		flag := scrapeCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "flag %s", name)
	}
}

func TestParseKinds(t *testing.T) {
	kinds, ok := parseKinds([]string{"zillow", "asce7-16", "weather"})
	require.True(t, ok)
	assert.Equal(t, []model.Kind{model.KindZillow, model.KindASCE716, model.KindWeather}, kinds)

	kinds, ok = parseKinds(nil)
	require.True(t, ok)
	assert.Empty(t, kinds)

	_, ok = parseKinds([]string{"zillow", "mls"})
	assert.False(t, ok)
}
