package memory

import (
	"context"
	"sync"
	"time"

	"profitsniffer/internal/application/port"
	"profitsniffer/internal/domain/model"
)

// Store is an in-memory implementation of port.Store. Every method is atomic.
type Store struct {
	mu sync.RWMutex

	subscribers map[string]*model.Subscriber
	order       []string // insertion order of subscribers

	pairs  map[model.RecordID]model.StoredPair
	keys   map[model.RecordKey]model.RecordID
	nextID model.RecordID

	sets map[string]*model.InterestSet

	now func() time.Time
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		subscribers: make(map[string]*model.Subscriber),
		pairs:       make(map[model.RecordID]model.StoredPair),
		keys:        make(map[model.RecordKey]model.RecordID),
		sets:        make(map[string]*model.InterestSet),
		now:         time.Now,
	}
}

func (s *Store) ListSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Subscriber, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.subscribers[id])
	}
	return out, nil
}

func (s *Store) GetSubscriber(ctx context.Context, id string) (*model.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscribers[id]
	if !ok {
		return nil, port.ErrSubscriberNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *Store) CreateSubscriber(ctx context.Context, sub *model.Subscriber) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscribers[sub.ID]; ok {
		return false, nil
	}
	now := s.now()
	cp := *sub
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.subscribers[cp.ID] = &cp
	s.order = append(s.order, cp.ID)
	s.sets[cp.ID] = &model.InterestSet{SubscriberID: cp.ID, Members: model.NewIDSet(), UpdatedAt: now}
	return true, nil
}

func (s *Store) UpdateFilterURL(ctx context.Context, id, filterURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscribers[id]
	if !ok {
		return port.ErrSubscriberNotFound
	}
	sub.FilterURL = filterURL
	sub.UpdatedAt = s.now()
	return nil
}

func (s *Store) UpsertPair(ctx context.Context, p *model.Pair) (model.RecordID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := p.Key()
	id, ok := s.keys[key]
	if !ok {
		s.nextID++
		id = s.nextID
		s.keys[key] = id
	}
	s.pairs[id] = model.StoredFromPair(id, p, s.now())
	return id, nil
}

func (s *Store) GetPairs(ctx context.Context, ids []model.RecordID) ([]model.StoredPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.StoredPair, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.pairs[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) DeleteRecordsNotIn(ctx context.Context, used model.IDSet) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, p := range s.pairs {
		if used.Has(id) {
			continue
		}
		delete(s.pairs, id)
		delete(s.keys, model.RecordKey{Address: p.Address, Chain: p.Chain})
		removed++
	}
	return removed, nil
}

func (s *Store) GetInterestSet(ctx context.Context, subscriberID string) (model.IDSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := model.NewIDSet()
	if set, ok := s.sets[subscriberID]; ok {
		out.Union(set.Members)
	}
	return out, nil
}

func (s *Store) ReplaceInterestSet(ctx context.Context, subscriberID string, members model.IDSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := model.NewIDSet()
	cp.Union(members)
	s.sets[subscriberID] = &model.InterestSet{SubscriberID: subscriberID, Members: cp, UpdatedAt: s.now()}
	return nil
}

func (s *Store) AllInterestMembers(ctx context.Context) (model.IDSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := model.NewIDSet()
	for _, set := range s.sets {
		out.Union(set.Members)
	}
	return out, nil
}

// PairCount returns the number of stored pairs.
func (s *Store) PairCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pairs)
}

func (s *Store) Close() error {
	return nil
}

var _ port.Store = (*Store)(nil)
