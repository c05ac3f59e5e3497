package port

import (
	"context"
	"errors"

	"profitsniffer/internal/domain/model"
)

var (
	// ErrSubscriberNotFound is returned for operations on an unknown subscriber.
	ErrSubscriberNotFound = errors.New("subscriber not found")
)

type SubscriberRepository interface {
	ListSubscribers(ctx context.Context) ([]model.Subscriber, error)
	// GetSubscriber returns ErrSubscriberNotFound when id is unknown.
	GetSubscriber(ctx context.Context, id string) (*model.Subscriber, error)
	// CreateSubscriber inserts s together with an empty interest set.
	// created is false (and nothing changes) when the id already exists.
	CreateSubscriber(ctx context.Context, s *model.Subscriber) (created bool, err error)
	UpdateFilterURL(ctx context.Context, id, filterURL string) error
}

type PairRepository interface {
	// UpsertPair inserts or updates the pair keyed by (base address, chain) and returns its id.
	UpsertPair(ctx context.Context, p *model.Pair) (model.RecordID, error)
	GetPairs(ctx context.Context, ids []model.RecordID) ([]model.StoredPair, error)
	// DeleteRecordsNotIn removes every stored pair whose id is not in used.
	DeleteRecordsNotIn(ctx context.Context, used model.IDSet) (int64, error)
}

type InterestSetRepository interface {
	// GetInterestSet returns the current members; an unknown subscriber has an empty set.
	GetInterestSet(ctx context.Context, subscriberID string) (model.IDSet, error)
	// ReplaceInterestSet overwrites the members wholesale.
	ReplaceInterestSet(ctx context.Context, subscriberID string, members model.IDSet) error
	// AllInterestMembers is the union of every subscriber's interest set.
	AllInterestMembers(ctx context.Context) (model.IDSet, error)
}

// Store is the document store consumed by the pipeline.
type Store interface {
	SubscriberRepository
	PairRepository
	InterestSetRepository
	Close() error
}

// CredentialPersister mirrors the clearance credentials so a restart can reuse them.
type CredentialPersister interface {
	// LoadCredentials returns ok=false when nothing has been saved yet.
	LoadCredentials(ctx context.Context) (creds model.Credentials, ok bool, err error)
	SaveCredentials(ctx context.Context, creds model.Credentials) error
}
