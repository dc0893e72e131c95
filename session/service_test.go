package session

import (
	"context"
	"errors"
	"testing"

	"escrowflow/profile"
)

func seedProfile(t *testing.T, repo profile.Repository, phone, passcode string) profile.Profile {
	t.Helper()

	hash, err := HashPasscode(passcode)
	if err != nil {
		t.Fatalf("hash passcode: %v", err)
	}
	p, err := repo.Create(context.Background(), profile.CreateParams{
		Name:         "Rahul Kumar",
		Role:         profile.RoleSeller,
		Phone:        phone,
		PasscodeHash: hash,
	})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	return p
}

func TestHashPasscode_RejectsShort(t *testing.T) {
	if _, err := HashPasscode("123"); !errors.Is(err, ErrWeakPasscode) {
		t.Fatalf("expected ErrWeakPasscode, got %v", err)
	}
}

func TestLogin_Success(t *testing.T) {
	repo := profile.NewMemoryRepository()
	p := seedProfile(t, repo, "9999990001", "1234")
	svc := NewService(repo, "test-secret")

	result, err := svc.Login(context.Background(), "9999990001", "1234")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected a token")
	}
	if result.Profile.ID != p.ID {
		t.Fatalf("expected profile %s, got %s", p.ID, result.Profile.ID)
	}

	// A successful login becomes the current profile selector.
	current, err := repo.Current(context.Background())
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current.ID != p.ID {
		t.Fatalf("expected current profile %s, got %s", p.ID, current.ID)
	}
}

func TestLogin_WrongPasscode(t *testing.T) {
	repo := profile.NewMemoryRepository()
	seedProfile(t, repo, "9999990001", "1234")
	svc := NewService(repo, "test-secret")

	if _, err := svc.Login(context.Background(), "9999990001", "4321"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_UnknownPhone(t *testing.T) {
	svc := NewService(profile.NewMemoryRepository(), "test-secret")

	if _, err := svc.Login(context.Background(), "0000000000", "1234"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyToken_RoundTrip(t *testing.T) {
	repo := profile.NewMemoryRepository()
	p := seedProfile(t, repo, "9999990001", "1234")
	svc := NewService(repo, "test-secret")

	result, err := svc.Login(context.Background(), "9999990001", "1234")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	id, role, err := svc.VerifyToken(result.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if id != p.ID {
		t.Fatalf("expected profile id %s, got %s", p.ID, id)
	}
	if role != profile.RoleSeller {
		t.Fatalf("expected seller role, got %s", role)
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	repo := profile.NewMemoryRepository()
	seedProfile(t, repo, "9999990001", "1234")

	issuer := NewService(repo, "secret-a")
	verifier := NewService(repo, "secret-b")

	result, err := issuer.Login(context.Background(), "9999990001", "1234")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, _, err := verifier.VerifyToken(result.Token); err == nil {
		t.Fatal("expected verification to fail under a different secret")
	}
}

func TestVerifyToken_Garbage(t *testing.T) {
	svc := NewService(profile.NewMemoryRepository(), "test-secret")
	if _, _, err := svc.VerifyToken("not-a-token"); err == nil {
		t.Fatal("expected an error for a malformed token")
	}
}
