package service

import (
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"profitsniffer/internal/domain/model"
)

// DefaultListingURL is the ranked new-pairs page used when a subscriber has no filters.
const DefaultListingURL = "https://dexscreener.com/new-pairs?rankBy=trendingScoreH1&order=desc&chainIds=solana"

// filterNames maps preference names to the provider's query parameter names.
var filterNames = map[string]string{
	"minLiquidity":             "minLiq",
	"maxLiquidity":             "maxLiq",
	"minMarketCap":             "minMarketCap",
	"maxMarketCap":             "maxMarketCap",
	"minFullyDilutedValuation": "minFdv",
	"maxFullyDilutedValuation": "maxFdv",
	"minAge":                   "minAge",
	"maxAge":                   "maxAge",
	"minTransactions":          "min24HTxns",
	"maxTransactions":          "max24HTxns",
}

// FilterParamName returns the provider name for a preference; unknown names pass through.
func FilterParamName(name string) string {
	if mapped, ok := filterNames[name]; ok {
		return mapped
	}
	return name
}

// IsNumeric reports whether v is ASCII digits with at most one decimal point.
func IsNumeric(v string) bool {
	digits := 0
	dots := 0
	for i := 0; i < len(v); i++ {
		switch c := v[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
			if dots > 1 {
				return false
			}
		default:
			return false
		}
	}
	return digits > 0
}

// BuildFilterURL appends the numeric preferences in params to base, in input order.
// Empty values are skipped; non-numeric values are dropped and logged.
func BuildFilterURL(base string, params []model.FilterParam) string {
	if base == "" {
		base = DefaultListingURL
	}

	extra := make([]string, 0, len(params))
	for _, p := range params {
		v := strings.TrimSpace(p.Value)
		if v == "" {
			continue
		}
		if !IsNumeric(v) {
			log.Warn().Str("filter", p.Name).Str("value", p.Value).Msg("ignoring non-numeric filter value")
			continue
		}
		extra = append(extra, url.QueryEscape(FilterParamName(p.Name))+"="+v)
	}

	if len(extra) == 0 {
		return base
	}
	sep := "&"
	if !strings.Contains(base, "?") {
		sep = "?"
	}
	return base + sep + strings.Join(extra, "&")
}
