package dexscreener

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pairJSON(id string) string {
	return fmt.Sprintf(`{
		"chainId": "solana",
		"pairAddress": %q,
		"baseToken": {"address": "Base%s", "name": "Token %s", "symbol": "T%s"},
		"quoteToken": {"address": "So11111111111111111111111111111111111111112", "name": "Wrapped SOL", "symbol": "SOL"},
		"priceUsd": "0.00001234",
		"liquidity": {"usd": 1000.5, "base": 10, "quote": 2},
		"volume": {"h24": 99.5},
		"info": {"imageUrl": "https://img.test/%s.png"}
	}`, id, id, id, id, id)
}

// detailServer answers /pairs/<ids> with one pair per id; a chunk containing
// "Fail" gets a 500.
func detailServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		ids := strings.Split(strings.TrimPrefix(r.URL.Path, "/pairs/"), ",")
		for _, id := range ids {
			if strings.HasPrefix(id, "Fail") {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
		}
		parts := make([]string, 0, len(ids))
		for _, id := range ids {
			parts = append(parts, pairJSON(id))
		}
		_, _ = fmt.Fprintf(w, `{"schemaVersion": "1.0.0", "pairs": [%s]}`, strings.Join(parts, ","))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newPairClient(srv *httptest.Server) *PairClient {
	return NewPairClient(srv.Client(), PairOptions{
		BaseURL:           srv.URL + "/pairs/",
		Timeout:           time.Second,
		RequestsPerMinute: 6000,
	})
}

func TestEnrichMapsFields(t *testing.T) {
	var calls atomic.Int32
	c := newPairClient(detailServer(t, &calls))

	pairs := c.Enrich(context.Background(), []string{"Abc"})
	require.Len(t, pairs, 1)
	p := pairs[0]
	assert.Equal(t, "solana", p.ChainID)
	assert.Equal(t, "Abc", p.PairAddress)
	assert.Equal(t, "BaseAbc", p.BaseToken.Address)
	assert.Equal(t, "SOL", p.QuoteToken.Symbol)
	require.NotNil(t, p.PriceUSD)
	assert.Equal(t, "0.00001234", p.PriceUSD.String())
	require.NotNil(t, p.LiquidityUSD())
	assert.InDelta(t, 1000.5, *p.LiquidityUSD(), 1e-9)
	require.NotNil(t, p.Volume24h())
	assert.Nil(t, p.Volume.H6)
	require.NotNil(t, p.ImageURL)
	assert.Equal(t, "https://img.test/Abc.png", *p.ImageURL)
	assert.False(t, p.FetchedAt.IsZero())
}

func TestEnrichFailedChunkDoesNotBlockOthers(t *testing.T) {
	var calls atomic.Int32
	c := newPairClient(detailServer(t, &calls))

	ids := make([]string, 0, 65)
	for i := 0; i < 65; i++ {
		ids = append(ids, fmt.Sprintf("P%d", i))
	}
	ids[31] = "Fail31" // second chunk

	pairs := c.Enrich(context.Background(), ids)
	assert.EqualValues(t, 3, calls.Load())
	require.Len(t, pairs, 35)
	assert.Equal(t, "P0", pairs[0].PairAddress)
	assert.Equal(t, "P29", pairs[29].PairAddress)
	assert.Equal(t, "P60", pairs[30].PairAddress)
}

func TestEnrichDegradedResponses(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
		want   int
	}{
		"null pairs":      {http.StatusOK, `{"schemaVersion": "1.0.0", "pairs": null}`, 0},
		"missing pairs":   {http.StatusOK, `{"schemaVersion": "1.0.0"}`, 0},
		"malformed":       {http.StatusOK, `{"pairs": [`, 0},
		"rate limited":    {http.StatusTooManyRequests, `{}`, 0},
		"sparse fields":   {http.StatusOK, `{"pairs": [{"chainId": "solana", "pairAddress": "X", "baseToken": {"address": "B"}}]}`, 1},
		"unkeyable pair":  {http.StatusOK, `{"pairs": [{"pairAddress": "X", "baseToken": {"address": "B"}}, {"chainId": "solana", "baseToken": {"address": "C"}}]}`, 1},
		"bad price value": {http.StatusOK, `{"pairs": [{"chainId": "solana", "baseToken": {"address": "B"}, "priceUsd": "n/a"}]}`, 1},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			pairs := newPairClient(srv).Enrich(context.Background(), []string{"X"})
			require.Len(t, pairs, tc.want)
			for _, p := range pairs {
				assert.Nil(t, p.PriceUSD)
				assert.Nil(t, p.Liquidity)
				assert.Nil(t, p.Volume)
				assert.Nil(t, p.ImageURL)
			}
		})
	}
}

func TestEnrichEmptyInput(t *testing.T) {
	var calls atomic.Int32
	c := newPairClient(detailServer(t, &calls))
	assert.Empty(t, c.Enrich(context.Background(), nil))
	assert.Zero(t, calls.Load())
}

func TestChunkIDs(t *testing.T) {
	assert.Nil(t, chunkIDs(nil, 30))
	got := chunkIDs([]string{"a", "b", "c", "d", "e"}, 2)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, got)
}
