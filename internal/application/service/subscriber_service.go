package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"profitsniffer/internal/application/port"
	"profitsniffer/internal/domain/model"
	domainsvc "profitsniffer/internal/domain/service"
)

// SubscriberStore is the part of the store subscriber management needs.
type SubscriberStore interface {
	port.SubscriberRepository
	port.PairRepository
	port.InterestSetRepository
}

type SubscriberService struct {
	store      SubscriberStore
	defaultURL string
}

func NewSubscriberService(store SubscriberStore, defaultURL string) *SubscriberService {
	if defaultURL == "" {
		defaultURL = domainsvc.DefaultListingURL
	}
	return &SubscriberService{store: store, defaultURL: defaultURL}
}

// Register creates the subscriber with the default listing URL and an empty
// interest set. An existing subscriber is returned unchanged with created=false.
func (s *SubscriberService) Register(ctx context.Context, id string) (*model.Subscriber, bool, error) {
	if id == "" {
		return nil, false, fmt.Errorf("register: empty subscriber id")
	}
	created, err := s.store.CreateSubscriber(ctx, &model.Subscriber{ID: id, FilterURL: s.defaultURL})
	if err != nil {
		return nil, false, err
	}
	sub, err := s.store.GetSubscriber(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if created {
		log.Info().Str("subscriber", id).Msg("subscriber registered")
	}
	return sub, created, nil
}

// UpdateFilters builds a filter URL from params and stores it.
func (s *SubscriberService) UpdateFilters(ctx context.Context, id string, params []model.FilterParam) (string, error) {
	u := domainsvc.BuildFilterURL(s.defaultURL, params)
	if err := s.store.UpdateFilterURL(ctx, id, u); err != nil {
		return "", err
	}
	log.Info().Str("subscriber", id).Str("url", u).Msg("filters updated")
	return u, nil
}

// Holdings resolves the subscriber's interest set into stored pairs.
func (s *SubscriberService) Holdings(ctx context.Context, id string) ([]model.StoredPair, error) {
	if _, err := s.store.GetSubscriber(ctx, id); err != nil {
		return nil, err
	}
	set, err := s.store.GetInterestSet(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.store.GetPairs(ctx, set.Sorted())
}

func (s *SubscriberService) List(ctx context.Context) ([]model.Subscriber, error) {
	return s.store.ListSubscribers(ctx)
}
