package memory

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/rryowa/tubeauth/internal/models"
	"github.com/rryowa/tubeauth/internal/storage"
)

func newStoreWithAlice(t *testing.T) *InMemoryPrincipalStore {
	t.Helper()
	s := NewPrincipalStore(zap.NewNop().Sugar())
	err := s.CreatePrincipal(context.Background(), &models.Principal{
		ID:       "p-1",
		Username: "alice",
		Email:    "alice@example.com",
	})
	if err != nil {
		t.Fatalf("CreatePrincipal: %v", err)
	}
	return s
}

func TestCreatePrincipal_Duplicate(t *testing.T) {
	s := newStoreWithAlice(t)
	ctx := context.Background()

	err := s.CreatePrincipal(ctx, &models.Principal{ID: "p-2", Username: "alice", Email: "other@example.com"})
	if !errors.Is(err, storage.ErrPrincipalExists) {
		t.Fatalf("expected ErrPrincipalExists for username, got %v", err)
	}
	err = s.CreatePrincipal(ctx, &models.Principal{ID: "p-3", Username: "bob", Email: "alice@example.com"})
	if !errors.Is(err, storage.ErrPrincipalExists) {
		t.Fatalf("expected ErrPrincipalExists for email, got %v", err)
	}
}

func TestFindByUsernameOrEmail(t *testing.T) {
	s := newStoreWithAlice(t)
	ctx := context.Background()

	for _, ident := range []string{"alice", "alice@example.com"} {
		p, err := s.FindByUsernameOrEmail(ctx, ident)
		if err != nil {
			t.Fatalf("FindByUsernameOrEmail(%q): %v", ident, err)
		}
		if p.ID != "p-1" {
			t.Fatalf("unexpected principal %q", p.ID)
		}
	}

	if _, err := s.FindByUsernameOrEmail(ctx, "mallory"); !errors.Is(err, storage.ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
}

func TestSwapRefreshToken(t *testing.T) {
	s := newStoreWithAlice(t)
	ctx := context.Background()

	if err := s.SwapRefreshToken(ctx, "p-1", "", "h1"); !errors.Is(err, storage.ErrRefreshTokenMismatch) {
		t.Fatalf("swap from empty must fail, got %v", err)
	}
	if err := s.SetRefreshToken(ctx, "p-1", "h1"); err != nil {
		t.Fatalf("SetRefreshToken: %v", err)
	}
	if err := s.SwapRefreshToken(ctx, "p-1", "h1", "h2"); err != nil {
		t.Fatalf("SwapRefreshToken: %v", err)
	}
	if err := s.SwapRefreshToken(ctx, "p-1", "h1", "h3"); !errors.Is(err, storage.ErrRefreshTokenMismatch) {
		t.Fatalf("stale swap must fail, got %v", err)
	}

	p, err := s.FindByID(ctx, "p-1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if p.RefreshTokenHash != "h2" {
		t.Fatalf("stored hash = %q, want h2", p.RefreshTokenHash)
	}

	if err := s.SwapRefreshToken(ctx, "missing", "h2", "h3"); !errors.Is(err, storage.ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
}

func TestFindByID_ReturnsCopy(t *testing.T) {
	s := newStoreWithAlice(t)
	ctx := context.Background()

	p, _ := s.FindByID(ctx, "p-1")
	p.RefreshTokenHash = "tampered"

	again, _ := s.FindByID(ctx, "p-1")
	if again.RefreshTokenHash != "" {
		t.Fatalf("store leaked internal state")
	}
}

func TestUpdateAccountDetails(t *testing.T) {
	s := newStoreWithAlice(t)
	ctx := context.Background()
	if err := s.CreatePrincipal(ctx, &models.Principal{ID: "p-2", Username: "bob", Email: "bob@example.com"}); err != nil {
		t.Fatalf("CreatePrincipal: %v", err)
	}

	if err := s.UpdateAccountDetails(ctx, "p-1", "Alice", "bob@example.com"); !errors.Is(err, storage.ErrPrincipalExists) {
		t.Fatalf("expected ErrPrincipalExists, got %v", err)
	}
	if err := s.UpdateAccountDetails(ctx, "p-1", "Alice", "alice@example.com"); err != nil {
		t.Fatalf("keeping own email must succeed: %v", err)
	}
	if err := s.UpdateAccountDetails(ctx, "missing", "X", "x@example.com"); !errors.Is(err, storage.ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}

	if err := s.UpdateAccountDetails(ctx, "p-1", "Alice L", "alice@wonderland.org"); err != nil {
		t.Fatalf("UpdateAccountDetails: %v", err)
	}
	p, err := s.FindByUsernameOrEmail(ctx, "alice@wonderland.org")
	if err != nil {
		t.Fatalf("FindByUsernameOrEmail: %v", err)
	}
	if p.FullName != "Alice L" {
		t.Fatalf("full name = %q", p.FullName)
	}
}

func TestSwapRefreshToken_ClearsWithEmptyNext(t *testing.T) {
	s := newStoreWithAlice(t)
	ctx := context.Background()
	if err := s.SetRefreshToken(ctx, "p-1", "live"); err != nil {
		t.Fatalf("SetRefreshToken: %v", err)
	}

	if err := s.SwapRefreshToken(ctx, "p-1", "other", ""); !errors.Is(err, storage.ErrRefreshTokenMismatch) {
		t.Fatalf("clear with a stale digest must fail, got %v", err)
	}
	if err := s.SwapRefreshToken(ctx, "p-1", "live", ""); err != nil {
		t.Fatalf("SwapRefreshToken: %v", err)
	}
	p, _ := s.FindByID(ctx, "p-1")
	if p.RefreshTokenHash != "" {
		t.Fatalf("refresh token must be cleared")
	}
}
