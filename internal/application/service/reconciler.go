package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"profitsniffer/internal/application/port"
	"profitsniffer/internal/domain/model"
)

// ReconcileStore is the part of the store the reconciler touches.
type ReconcileStore interface {
	port.PairRepository
	port.InterestSetRepository
}

// Reconciler turns one fetch result into record upserts, a new interest set
// snapshot and the count of pairs the subscriber has not seen before.
type Reconciler struct {
	store ReconcileStore
}

func NewReconciler(store ReconcileStore) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile replaces the subscriber's interest set with the ids of pairs.
// Added counts ids absent from the previous snapshot. An empty input clears
// the set. Repeating the same input yields Added == 0.
func (r *Reconciler) Reconcile(ctx context.Context, subscriberID string, pairs []model.Pair) (model.Outcome, error) {
	if len(pairs) == 0 {
		if err := r.store.ReplaceInterestSet(ctx, subscriberID, model.NewIDSet()); err != nil {
			return model.Outcome{}, fmt.Errorf("clear interest set: %w", err)
		}
		return model.Outcome{}, nil
	}

	newIDs := model.NewIDSet()
	for i := range pairs {
		id, err := r.store.UpsertPair(ctx, &pairs[i])
		if err != nil {
			return model.Outcome{}, err
		}
		newIDs.Add(id)
	}

	// read before overwrite
	oldIDs, err := r.store.GetInterestSet(ctx, subscriberID)
	if err != nil {
		return model.Outcome{}, fmt.Errorf("load interest set: %w", err)
	}
	added := newIDs.Minus(oldIDs)

	if err := r.store.ReplaceInterestSet(ctx, subscriberID, newIDs); err != nil {
		return model.Outcome{}, fmt.Errorf("replace interest set: %w", err)
	}

	log.Debug().
		Str("subscriber", subscriberID).
		Int("total", len(pairs)).
		Int("distinct", len(newIDs)).
		Int("added", len(added)).
		Msg("reconciled")

	return model.Outcome{Total: len(pairs), Added: len(added)}, nil
}
