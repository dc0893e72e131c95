package listing

import (
	"context"
	"errors"
	"testing"
)

func TestPublishAndRemove(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	l, err := svc.Publish(ctx, CreateParams{
		SellerID:    "seller-1",
		SellerPhone: "9999990001",
		Title:       "Used Laptop",
		Kind:        KindProduct,
		Price:       25000,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if l.Status != StatusActive {
		t.Fatalf("expected active, got %s", l.Status)
	}

	active, err := svc.ActiveBySeller(ctx, "9999990001")
	if err != nil {
		t.Fatalf("active by seller: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active listing, got %d", len(active))
	}

	if err := svc.Remove(ctx, l.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	active, err = svc.ActiveBySeller(ctx, "9999990001")
	if err != nil {
		t.Fatalf("active by seller: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active listings after removal, got %d", len(active))
	}

	// The record survives deactivation for existing references.
	got, err := svc.GetByID(ctx, l.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.Status != StatusInactive {
		t.Fatalf("expected inactive, got %s", got.Status)
	}
}

func TestPublish_NonPositivePrice(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	if _, err := svc.Publish(context.Background(), CreateParams{Title: "Freebie", Price: 0}); err == nil {
		t.Fatal("expected an error for a zero price")
	}
}

func TestGetByID_NotFound(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	if _, err := svc.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSeedCatalog_Idempotent(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	first, err := SeedCatalog(ctx, repo, "seller-1", "9999990001")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 seeded listings, got %d", len(first))
	}

	second, err := SeedCatalog(ctx, repo, "seller-1", "9999990001")
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if len(second) != 3 {
		t.Fatalf("expected the existing catalog back, got %d", len(second))
	}

	active, err := repo.ListActiveBySeller(ctx, "9999990001")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("expected 3 active listings after reseeding, got %d", len(active))
	}
}
