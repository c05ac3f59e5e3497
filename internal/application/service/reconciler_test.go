package service

import (
	"context"
	"errors"
	"testing"

	"profitsniffer/internal/domain/model"
	"profitsniffer/internal/infrastructure/storage/memory"
)

func mkPair(addr string) model.Pair {
	return model.Pair{ChainID: "solana", PairAddress: "P" + addr, BaseToken: model.Token{Address: addr, Name: addr, Symbol: addr}}
}

func mkPairs(addrs ...string) []model.Pair {
	out := make([]model.Pair, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, mkPair(a))
	}
	return out
}

func TestReconcileCountsNewAndIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	r := NewReconciler(store)
	ctx := context.Background()

	out, err := r.Reconcile(ctx, "u1", mkPairs("A", "B", "C"))
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if out.Total != 3 || out.Added != 3 {
		t.Fatalf("expected {3 3}, got %+v", out)
	}

	out, _ = r.Reconcile(ctx, "u1", mkPairs("A", "B", "C"))
	if out.Total != 3 || out.Added != 0 {
		t.Fatalf("expected {3 0} on repeat, got %+v", out)
	}

	out, _ = r.Reconcile(ctx, "u1", mkPairs("B", "C", "D"))
	if out.Added != 1 {
		t.Fatalf("expected 1 added, got %+v", out)
	}

	set, _ := store.GetInterestSet(ctx, "u1")
	if len(set) != 3 {
		t.Fatalf("expected 3 members, got %v", set)
	}
}

func TestReconcileEmptyClears(t *testing.T) {
	store := memory.NewStore()
	r := NewReconciler(store)
	ctx := context.Background()

	_, _ = r.Reconcile(ctx, "u1", mkPairs("A", "B"))
	out, err := r.Reconcile(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if out != (model.Outcome{}) {
		t.Fatalf("expected zero outcome, got %+v", out)
	}
	set, _ := store.GetInterestSet(ctx, "u1")
	if len(set) != 0 {
		t.Fatalf("expected cleared set, got %v", set)
	}

	// everything is new again after a clear
	out, _ = r.Reconcile(ctx, "u1", mkPairs("A"))
	if out.Added != 1 {
		t.Fatalf("expected re-added pair, got %+v", out)
	}
}

func TestReconcileDuplicateKeysAreSetSemantics(t *testing.T) {
	store := memory.NewStore()
	r := NewReconciler(store)
	ctx := context.Background()

	// two listing entries resolving to the same base token
	pairs := mkPairs("A", "A", "B")
	pairs[1].PairAddress = "other-pool"

	out, err := r.Reconcile(ctx, "u1", pairs)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if out.Total != 3 || out.Added != 2 {
		t.Fatalf("expected total 3 and 2 distinct added, got %+v", out)
	}
	if store.PairCount() != 2 {
		t.Fatalf("expected 2 stored records, got %d", store.PairCount())
	}
}

func TestReconcileSubscribersAreIndependent(t *testing.T) {
	store := memory.NewStore()
	r := NewReconciler(store)
	ctx := context.Background()

	_, _ = r.Reconcile(ctx, "u1", mkPairs("A", "B"))
	out, _ := r.Reconcile(ctx, "u2", mkPairs("A"))
	if out.Added != 1 {
		t.Fatalf("u2 should see A as new, got %+v", out)
	}
}

type failingStore struct {
	*memory.Store
	upsertErr error
}

func (f *failingStore) UpsertPair(ctx context.Context, p *model.Pair) (model.RecordID, error) {
	return 0, f.upsertErr
}

func TestReconcileStoreErrorLeavesSetUntouched(t *testing.T) {
	mem := memory.NewStore()
	ctx := context.Background()
	_, _ = NewReconciler(mem).Reconcile(ctx, "u1", mkPairs("A"))

	boom := errors.New("disk full")
	_, err := NewReconciler(&failingStore{Store: mem, upsertErr: boom}).Reconcile(ctx, "u1", mkPairs("B"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected upsert error, got %v", err)
	}
	set, _ := mem.GetInterestSet(ctx, "u1")
	if len(set) != 1 {
		t.Fatalf("interest set changed on failure: %v", set)
	}
}
