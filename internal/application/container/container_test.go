package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"profitsniffer/internal/domain/model"
	sqliterepo "profitsniffer/internal/infrastructure/storage/sqlite"
)

func TestContainerWithSQLite(t *testing.T) {
	repo, err := sqliterepo.New(filepath.Join(t.TempDir(), "container.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	c := New(repo, "")
	defer c.Close()

	if c.Store() == nil {
		t.Fatalf("expected store, got nil")
	}
	if c.Reconciler() != c.Reconciler() {
		t.Errorf("expected reconciler to be built once")
	}
	if c.SubscriberService() != c.SubscriberService() {
		t.Errorf("expected subscriber service to be built once")
	}
}

func TestContainerServiceWorkflow(t *testing.T) {
	repo, err := sqliterepo.New(filepath.Join(t.TempDir(), "workflow.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	c := New(repo, "")
	defer c.Close()

	ctx := context.Background()
	if _, created, err := c.SubscriberService().Register(ctx, "1001"); err != nil || !created {
		t.Fatalf("Register failed: created=%v err=%v", created, err)
	}

	price := decimal.RequireFromString("0.0042")
	pairs := []model.Pair{{
		ChainID:     "solana",
		PairAddress: "PairA",
		BaseToken:   model.Token{Address: "MintA", Name: "Alpha", Symbol: "ALP"},
		PriceUSD:    &price,
	}}

	out, err := c.Reconciler().Reconcile(ctx, "1001", pairs)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if out.Total != 1 || out.Added != 1 {
		t.Errorf("expected total=1 added=1, got %+v", out)
	}

	holdings, err := c.SubscriberService().Holdings(ctx, "1001")
	if err != nil {
		t.Fatalf("Holdings failed: %v", err)
	}
	if len(holdings) != 1 || holdings[0].Symbol != "ALP" {
		t.Fatalf("expected one ALP holding, got %+v", holdings)
	}
	if holdings[0].PriceUSD == nil || !holdings[0].PriceUSD.Equal(price) {
		t.Errorf("expected price %s, got %v", price, holdings[0].PriceUSD)
	}
}
