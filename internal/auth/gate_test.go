package auth

import (
	"errors"
	"testing"
	"time"

	"interview-copilot/internal/store"
)

func newTestGate(t *testing.T) (*Gate, *TokenService, *store.Store) {
	t.Helper()
	st := store.New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init store: %v", err)
	}
	tokens := newTestTokenService(t, time.Hour)
	return NewGate(tokens, st), tokens, st
}

func TestGateResolve(t *testing.T) {
	gate, tokens, st := newTestGate(t)

	if _, err := st.CreateUser("alice", "h1"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, _, err := tokens.Issue("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	user, err := gate.Resolve(token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if user.Username != "alice" || user.ID != 1 {
		t.Fatalf("unexpected identity: %+v", user)
	}
}

func TestGateMissingCredential(t *testing.T) {
	gate, _, _ := newTestGate(t)
	if _, err := gate.Resolve(""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestGateInvalidCredential(t *testing.T) {
	gate, _, _ := newTestGate(t)
	if _, err := gate.Resolve("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestGatePrincipalVanished(t *testing.T) {
	gate, tokens, _ := newTestGate(t)

	// token verifies, but no user row exists for the subject
	token, _, err := tokens.Issue("ghost")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := gate.Resolve(token); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
