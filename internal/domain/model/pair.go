package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordID identifies a stored pair. Assigned by the store on first insert of a RecordKey.
type RecordID int64

// RecordKey is the global record store key.
type RecordKey struct {
	Address string `json:"address"` // base token address
	Chain   string `json:"chain"`   // chainId
}

// Token 代币基础信息
type Token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type Liquidity struct {
	USD   *float64 `json:"usd,omitempty"`
	Base  *float64 `json:"base,omitempty"`
	Quote *float64 `json:"quote,omitempty"`
}

type Volume struct {
	H24 *float64 `json:"h24,omitempty"`
	H6  *float64 `json:"h6,omitempty"`
	H1  *float64 `json:"h1,omitempty"`
	M5  *float64 `json:"m5,omitempty"`
}

// Pair is one enriched listing entry: the market state of a pair at fetch time.
type Pair struct {
	ChainID     string           `json:"chainId"`
	PairAddress string           `json:"pairAddress"`
	BaseToken   Token            `json:"baseToken"`
	QuoteToken  Token            `json:"quoteToken"`
	PriceUSD    *decimal.Decimal `json:"priceUsd,omitempty"`
	Liquidity   *Liquidity       `json:"liquidity,omitempty"`
	Volume      *Volume          `json:"volume,omitempty"`
	ImageURL    *string          `json:"imageUrl,omitempty"`
	FetchedAt   time.Time        `json:"fetchedAt"`
}

// Key returns the record store key for the pair.
func (p *Pair) Key() RecordKey {
	return RecordKey{Address: p.BaseToken.Address, Chain: p.ChainID}
}

// LiquidityUSD returns liquidity.usd or nil.
func (p *Pair) LiquidityUSD() *float64 {
	if p.Liquidity == nil {
		return nil
	}
	return p.Liquidity.USD
}

// Volume24h returns volume.h24 or nil.
func (p *Pair) Volume24h() *float64 {
	if p.Volume == nil {
		return nil
	}
	return p.Volume.H24
}

// StoredPair is the persisted, globally shared form of a pair.
type StoredPair struct {
	ID           RecordID         `json:"id"`
	Address      string           `json:"address"`
	Chain        string           `json:"chain"`
	Name         string           `json:"name"`
	Symbol       string           `json:"symbol"`
	PriceUSD     *decimal.Decimal `json:"price_usd,omitempty"`
	LiquidityUSD *float64         `json:"liquidity_usd,omitempty"`
	Volume24h    *float64         `json:"volume_24h,omitempty"`
	ImageURL     *string          `json:"image_url,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// StoredFromPair flattens a pair into its stored shape.
func StoredFromPair(id RecordID, p *Pair, now time.Time) StoredPair {
	return StoredPair{
		ID:           id,
		Address:      p.BaseToken.Address,
		Chain:        p.ChainID,
		Name:         p.BaseToken.Name,
		Symbol:       p.BaseToken.Symbol,
		PriceUSD:     p.PriceUSD,
		LiquidityUSD: p.LiquidityUSD(),
		Volume24h:    p.Volume24h(),
		ImageURL:     p.ImageURL,
		UpdatedAt:    now,
	}
}
