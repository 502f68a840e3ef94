package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/faucetdb/rolekeeper/internal/config"
	"github.com/faucetdb/rolekeeper/internal/model"
)

func newTestAuth(t *testing.T) (*AuthService, *config.Store) {
	t.Helper()
	store, err := config.NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	auth := NewAuthService(store, "test-secret-key-for-jwt")
	return auth, store
}

func seedLogin(t *testing.T, store *config.Store, email, password string, role model.Role, active bool) *model.Admin {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	a := &model.Admin{Email: email, Name: "Test", PasswordHash: hash, Role: role, IsActive: active}
	if err := store.CreateAdmin(context.Background(), a); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	return a
}

func TestJWTRoundTrip(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	admin := &model.Admin{ID: 42, Email: "admin@example.com", Role: model.RoleSuperAdmin}
	token, err := auth.IssueJWT(ctx, admin, time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	if token == "" {
		t.Fatal("IssueJWT returned empty token")
	}

	session, err := auth.ValidateJWT(ctx, token)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if session.AdminID != 42 {
		t.Errorf("AdminID = %d, want 42", session.AdminID)
	}
	if session.Email != "admin@example.com" {
		t.Errorf("Email = %q, want admin@example.com", session.Email)
	}
	if !session.IsSuperAdmin {
		t.Error("IsSuperAdmin = false, want true")
	}
}

func TestJWTRegularAdmin(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	token, err := auth.IssueJWT(ctx, &model.Admin{ID: 7, Email: "r@example.com", Role: model.RoleRegularAdmin}, time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	session, err := auth.ValidateJWT(ctx, token)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if session.IsSuperAdmin {
		t.Error("IsSuperAdmin = true for a regular admin")
	}
}

func TestJWTExpired(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	token, err := auth.IssueJWT(ctx, &model.Admin{ID: 1, Email: "a@example.com"}, -time.Minute)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	if _, err := auth.ValidateJWT(ctx, token); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("ValidateJWT(expired) err = %v, want ErrInvalidCredentials", err)
	}
}

func TestJWTWrongSecret(t *testing.T) {
	auth, store := newTestAuth(t)
	other := NewAuthService(store, "a-different-secret")
	ctx := context.Background()

	token, err := other.IssueJWT(ctx, &model.Admin{ID: 1, Email: "a@example.com"}, time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	if _, err := auth.ValidateJWT(ctx, token); err == nil {
		t.Error("expected error for token signed with another secret")
	}
}

func TestJWTGarbage(t *testing.T) {
	auth, _ := newTestAuth(t)
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := auth.ValidateJWT(context.Background(), tok); err == nil {
			t.Errorf("ValidateJWT(%q) succeeded, want error", tok)
		}
	}
}

func TestAuthenticate(t *testing.T) {
	auth, store := newTestAuth(t)
	ctx := context.Background()
	seeded := seedLogin(t, store, "login@example.com", "correct horse", model.RoleRegularAdmin, true)

	admin, err := auth.Authenticate(ctx, "  Login@Example.com", "correct horse")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if admin.ID != seeded.ID {
		t.Errorf("ID = %d, want %d", admin.ID, seeded.ID)
	}

	got, err := store.GetAdmin(ctx, seeded.ID)
	if err != nil {
		t.Fatalf("GetAdmin: %v", err)
	}
	if got.LastLoginAt == nil {
		t.Error("LastLoginAt not recorded")
	}
	if got.Version != seeded.Version {
		t.Errorf("login changed version %d -> %d", seeded.Version, got.Version)
	}
}

func TestAuthenticateRejects(t *testing.T) {
	auth, store := newTestAuth(t)
	ctx := context.Background()
	seedLogin(t, store, "login@example.com", "correct horse", model.RoleRegularAdmin, true)
	seedLogin(t, store, "gone@example.com", "correct horse", model.RoleRegularAdmin, false)

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"wrong password", "login@example.com", "battery staple", ErrInvalidCredentials},
		{"unknown email", "nobody@example.com", "correct horse", ErrInvalidCredentials},
		{"malformed email", "nobody", "correct horse", ErrInvalidCredentials},
		{"disabled", "gone@example.com", "correct horse", ErrAccountDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Authenticate(ctx, tt.email, tt.password)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHashPassword(t *testing.T) {
	h1, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, _ := HashPassword("secret")
	if h1 == h2 {
		t.Error("expected salted hashes to differ")
	}
	if h1 == "secret" {
		t.Error("hash equals plaintext")
	}
}
