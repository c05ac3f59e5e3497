package port

import (
	"context"

	"profitsniffer/internal/domain/model"
)

type ListingStatus int

const (
	// ListingOK means the provider answered; IDs may still be empty.
	ListingOK ListingStatus = iota
	// ListingExhausted means every attempt failed; IDs is empty.
	ListingExhausted
)

func (s ListingStatus) String() string {
	switch s {
	case ListingOK:
		return "ok"
	case ListingExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Listing is the ranked identifier list of one filter URL.
type Listing struct {
	IDs      []string
	Status   ListingStatus
	Attempts int
	Renewals int
}

type ListingSource interface {
	// Fetch never fails on provider errors; only caller cancellation is returned.
	Fetch(ctx context.Context, filterURL string) (Listing, error)
}

type PairEnricher interface {
	// Enrich degrades failing batches to empty results.
	Enrich(ctx context.Context, ids []string) []model.Pair
}
