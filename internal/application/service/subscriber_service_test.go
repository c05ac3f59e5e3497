package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"profitsniffer/internal/application/port"
	"profitsniffer/internal/domain/model"
	domainsvc "profitsniffer/internal/domain/service"
	"profitsniffer/internal/infrastructure/storage/memory"
)

func TestRegisterIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	svc := NewSubscriberService(store, "")
	ctx := context.Background()

	sub, created, err := svc.Register(ctx, "1001")
	if err != nil || !created {
		t.Fatalf("expected created, got created=%v err=%v", created, err)
	}
	if sub.FilterURL != domainsvc.DefaultListingURL {
		t.Fatalf("unexpected default url %q", sub.FilterURL)
	}

	if _, err := svc.UpdateFilters(ctx, "1001", []model.FilterParam{{Name: "minLiquidity", Value: "5000"}}); err != nil {
		t.Fatalf("UpdateFilters failed: %v", err)
	}
	sub, created, err = svc.Register(ctx, "1001")
	if err != nil || created {
		t.Fatalf("expected existing subscriber, got created=%v err=%v", created, err)
	}
	if !strings.HasSuffix(sub.FilterURL, "&minLiq=5000") {
		t.Fatalf("second register must not reset filters, got %q", sub.FilterURL)
	}

	if _, _, err := svc.Register(ctx, ""); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestUpdateFiltersUnknownSubscriber(t *testing.T) {
	svc := NewSubscriberService(memory.NewStore(), "")
	_, err := svc.UpdateFilters(context.Background(), "nobody", nil)
	if !errors.Is(err, port.ErrSubscriberNotFound) {
		t.Fatalf("expected ErrSubscriberNotFound, got %v", err)
	}
}

func TestHoldings(t *testing.T) {
	store := memory.NewStore()
	svc := NewSubscriberService(store, "")
	ctx := context.Background()

	_, _, _ = svc.Register(ctx, "1001")
	if got, err := svc.Holdings(ctx, "1001"); err != nil || len(got) != 0 {
		t.Fatalf("expected empty holdings, got %v err=%v", got, err)
	}

	_, _ = NewReconciler(store).Reconcile(ctx, "1001", mkPairs("A", "B"))
	got, err := svc.Holdings(ctx, "1001")
	if err != nil {
		t.Fatalf("Holdings failed: %v", err)
	}
	if len(got) != 2 || got[0].Address != "A" || got[1].Address != "B" {
		t.Fatalf("unexpected holdings %+v", got)
	}

	if _, err := svc.Holdings(ctx, "nobody"); !errors.Is(err, port.ErrSubscriberNotFound) {
		t.Fatalf("expected ErrSubscriberNotFound, got %v", err)
	}
}
