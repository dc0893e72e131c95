package profile

import (
	"context"
	"errors"
	"testing"
)

func TestCreate_DuplicatePhone(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if _, err := repo.Create(ctx, CreateParams{Name: "Rahul Kumar", Role: RoleSeller, Phone: "9999990001"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := repo.Create(ctx, CreateParams{Name: "Someone Else", Role: RoleBuyer, Phone: "9999990001"})
	if !errors.Is(err, ErrDuplicatePhone) {
		t.Fatalf("expected ErrDuplicatePhone, got %v", err)
	}
}

func TestCreate_InvalidRole(t *testing.T) {
	repo := NewMemoryRepository()
	if _, err := repo.Create(context.Background(), CreateParams{Name: "X", Role: "admin", Phone: "1"}); err == nil {
		t.Fatal("expected an error for an unknown role")
	}
}

func TestGetByPhone(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, CreateParams{Name: "Amit Singh", Role: RoleBuyer, Phone: "9876543210"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetByPhone(ctx, "9876543210")
	if err != nil {
		t.Fatalf("get by phone: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("expected %s, got %s", created.ID, got.ID)
	}

	if _, err := repo.GetByPhone(ctx, "0000000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetCurrent_UnknownProfile(t *testing.T) {
	repo := NewMemoryRepository()
	if err := repo.SetCurrent(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCurrent_RoundTrip(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if _, err := repo.Current(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before any selection, got %v", err)
	}

	p, err := repo.Create(ctx, CreateParams{Name: "Rahul Kumar", Role: RoleSeller, Phone: "9999990001"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.SetCurrent(ctx, p.ID); err != nil {
		t.Fatalf("set current: %v", err)
	}

	current, err := repo.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current.ID != p.ID {
		t.Fatalf("expected %s, got %s", p.ID, current.ID)
	}
}

func TestSeedFixed(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	seeded, err := SeedFixed(ctx, repo, "hash")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(seeded) != 2 {
		t.Fatalf("expected 2 fixed identities, got %d", len(seeded))
	}
	if seeded[0].Role == seeded[1].Role {
		t.Fatal("expected one buyer and one seller")
	}

	current, err := repo.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current.Role != RoleSeller {
		t.Fatalf("expected the seller as the initial current profile, got %s", current.Role)
	}

	// Seeding again is a no-op on a populated store.
	again, err := SeedFixed(ctx, repo, "other-hash")
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if len(again) != 2 {
		t.Fatalf("expected the existing 2 profiles back, got %d", len(again))
	}
	if again[0].PasscodeHash != "hash" {
		t.Fatal("second seed overwrote the stored hash")
	}
}
