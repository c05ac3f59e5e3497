package service

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profitsniffer/internal/domain/model"
)

func TestIsNumeric(t *testing.T) {
	cases := map[string]bool{
		"1000":  true,
		"2.5":   true,
		".5":    true,
		"5.":    true,
		"0":     true,
		"":      false,
		".":     false,
		"1.2.3": false,
		"-1":    false,
		"1e5":   false,
		"abc":   false,
		"10k":   false,
		" 1":    false,
	}
	for in, want := range cases {
		assert.Equal(t, want, IsNumeric(in), "IsNumeric(%q)", in)
	}
}

func TestBuildFilterURLNoParams(t *testing.T) {
	assert.Equal(t, DefaultListingURL, BuildFilterURL("", nil))
	assert.Equal(t, DefaultListingURL, BuildFilterURL(DefaultListingURL, []model.FilterParam{{Name: "minAge", Value: "  "}}))
}

func TestBuildFilterURLRemapsAndKeepsOrder(t *testing.T) {
	got := BuildFilterURL(DefaultListingURL, []model.FilterParam{
		{Name: "maxTransactions", Value: "500"},
		{Name: "minLiquidity", Value: " 1000 "},
		{Name: "minFullyDilutedValuation", Value: "2.5"},
		{Name: "customKey", Value: "7"},
	})

	assert.Equal(t, DefaultListingURL+"&max24HTxns=500&minLiq=1000&minFdv=2.5&customKey=7", got)
}

func TestBuildFilterURLDropsNonNumeric(t *testing.T) {
	params := []model.FilterParam{
		{Name: "minLiquidity", Value: "lots"},
		{Name: "maxLiquidity", Value: "1.2.3"},
		{Name: "minAge", Value: "3"},
		{Name: "maxAge", Value: "-4"},
		{Name: "minMarketCap", Value: "1000"},
	}
	got := BuildFilterURL(DefaultListingURL, params)

	u, err := url.Parse(got)
	require.NoError(t, err)
	q := u.Query()

	assert.Equal(t, "3", q.Get("minAge"))
	assert.Equal(t, "1000", q.Get("minMarketCap"))
	assert.False(t, q.Has("minLiq"))
	assert.False(t, q.Has("maxLiq"))
	assert.False(t, q.Has("maxAge"))
	for _, vs := range q {
		for _, v := range vs {
			if v == "solana" || v == "trendingScoreH1" || v == "desc" {
				continue
			}
			assert.True(t, IsNumeric(v), "non-numeric value %q leaked into %s", v, got)
		}
	}
}

func TestBuildFilterURLBaseWithoutQuery(t *testing.T) {
	got := BuildFilterURL("https://example.invalid/new-pairs", []model.FilterParam{{Name: "minAge", Value: "1"}})
	assert.True(t, strings.HasSuffix(got, "/new-pairs?minAge=1"), got)
}

func TestRenderAlert(t *testing.T) {
	for i := 0; i < AlertTemplateCount(); i++ {
		msg := RenderAlert(i, 3)
		assert.Contains(t, msg, "3")
		assert.NotContains(t, msg, "{count}")
	}
	assert.Equal(t, RenderAlert(0, 1), RenderAlert(AlertTemplateCount(), 1))
	assert.NotContains(t, AlertMessage(12), "{count}")
}
