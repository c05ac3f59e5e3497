package dexscreener

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/sugawarayuuta/sonnet"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"profitsniffer/internal/application/port"
	"profitsniffer/internal/domain/model"
)

const DefaultPairsBaseURL = "https://api.dexscreener.com/latest/dex/pairs/solana/"

type PairOptions struct {
	BaseURL           string        // ids are appended comma-joined
	ChunkSize         int           // default 30
	Timeout           time.Duration // per chunk, default 30s
	RequestsPerMinute int           // default 300
}

// PairClient resolves identifiers into enriched pairs through the detail API.
type PairClient struct {
	client  *http.Client
	opts    PairOptions
	limiter *rate.Limiter
	now     func() time.Time
}

func NewPairClient(client *http.Client, opts PairOptions) *PairClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultPairsBaseURL
	}
	if opts.ChunkSize <= 0 || opts.ChunkSize > MaxListingIDs {
		opts.ChunkSize = MaxListingIDs
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 300
	}
	if client == nil {
		client = &http.Client{}
	}
	burst := max(opts.RequestsPerMinute/60, 1)
	return &PairClient{
		client:  client,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60), burst),
		now:     time.Now,
	}
}

type detailResponse struct {
	Pairs []detailPair `json:"pairs"`
}

type detailToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type detailPair struct {
	ChainID     string      `json:"chainId"`
	PairAddress string      `json:"pairAddress"`
	BaseToken   detailToken `json:"baseToken"`
	QuoteToken  detailToken `json:"quoteToken"`
	PriceUSD    *string     `json:"priceUsd"`
	Liquidity   *struct {
		USD   *float64 `json:"usd"`
		Base  *float64 `json:"base"`
		Quote *float64 `json:"quote"`
	} `json:"liquidity"`
	Volume *struct {
		H24 *float64 `json:"h24"`
		H6  *float64 `json:"h6"`
		H1  *float64 `json:"h1"`
		M5  *float64 `json:"m5"`
	} `json:"volume"`
	Info *struct {
		ImageURL *string `json:"imageUrl"`
	} `json:"info"`
}

// Enrich fetches ids in chunks concurrently. A failing chunk contributes
// nothing; the rest are returned in chunk order.
func (c *PairClient) Enrich(ctx context.Context, ids []string) []model.Pair {
	chunks := chunkIDs(ids, c.opts.ChunkSize)
	if len(chunks) == 0 {
		return nil
	}

	results := make([][]model.Pair, len(chunks))
	var g errgroup.Group
	for i, chunk := range chunks {
		g.Go(func() error {
			pairs, err := c.fetchChunk(ctx, chunk)
			if err != nil {
				log.Warn().Err(err).Int("chunk", i).Int("size", len(chunk)).Msg("pair chunk failed")
				return nil
			}
			results[i] = pairs
			return nil
		})
	}
	_ = g.Wait()

	var out []model.Pair
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

func (c *PairClient) fetchChunk(ctx context.Context, ids []string) ([]model.Pair, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+strings.Join(ids, ","), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("pairs http %d", resp.StatusCode)
	}

	var dr detailResponse
	if err := sonnet.Unmarshal(body, &dr); err != nil {
		return nil, fmt.Errorf("decode pairs: %w", err)
	}
	// "pairs": null is a valid empty answer
	now := c.now()
	out := make([]model.Pair, 0, len(dr.Pairs))
	for _, dp := range dr.Pairs {
		p, ok := toPair(dp, now)
		if !ok {
			log.Debug().Str("pair", dp.PairAddress).Msg("dropping pair without chain or base address")
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func toPair(dp detailPair, now time.Time) (model.Pair, bool) {
	if dp.ChainID == "" || dp.BaseToken.Address == "" {
		return model.Pair{}, false
	}
	p := model.Pair{
		ChainID:     dp.ChainID,
		PairAddress: dp.PairAddress,
		BaseToken:   model.Token(dp.BaseToken),
		QuoteToken:  model.Token(dp.QuoteToken),
		FetchedAt:   now,
	}
	if dp.PriceUSD != nil {
		if d, err := decimal.NewFromString(*dp.PriceUSD); err == nil {
			p.PriceUSD = &d
		}
	}
	if dp.Liquidity != nil {
		p.Liquidity = &model.Liquidity{USD: dp.Liquidity.USD, Base: dp.Liquidity.Base, Quote: dp.Liquidity.Quote}
	}
	if dp.Volume != nil {
		p.Volume = &model.Volume{H24: dp.Volume.H24, H6: dp.Volume.H6, H1: dp.Volume.H1, M5: dp.Volume.M5}
	}
	if dp.Info != nil && dp.Info.ImageURL != nil {
		p.ImageURL = dp.Info.ImageURL
	}
	return p, true
}

func chunkIDs(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > 0 {
		n := min(size, len(ids))
		out = append(out, ids[:n])
		ids = ids[n:]
	}
	return out
}

var _ port.PairEnricher = (*PairClient)(nil)
