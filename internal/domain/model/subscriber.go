package model

import (
	"sort"
	"time"
)

// Subscriber is one alert recipient. ID is the external (chat) identifier and also
// keys the subscriber's interest set.
type Subscriber struct {
	ID        string    `json:"subscriber_id"`
	FilterURL string    `json:"filter_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FilterParam is one user preference, e.g. {"minLiquidity", "1000"}.
type FilterParam struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// IDSet is a set of record ids.
type IDSet map[RecordID]struct{}

func NewIDSet(ids ...RecordID) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Add(id RecordID) { s[id] = struct{}{} }

func (s IDSet) Has(id RecordID) bool {
	_, ok := s[id]
	return ok
}

// Minus returns the members of s that are not in other.
func (s IDSet) Minus(other IDSet) IDSet {
	out := make(IDSet)
	for id := range s {
		if !other.Has(id) {
			out.Add(id)
		}
	}
	return out
}

// Union adds every member of other to s.
func (s IDSet) Union(other IDSet) {
	for id := range other {
		s.Add(id)
	}
}

// Sorted returns the members in ascending order.
func (s IDSet) Sorted() []RecordID {
	out := make([]RecordID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// InterestSet is the current snapshot of record ids matching a subscriber's filter.
type InterestSet struct {
	SubscriberID string    `json:"subscriber_id"`
	Members      IDSet     `json:"-"`
	UpdatedAt    time.Time `json:"updated_at"`
}
