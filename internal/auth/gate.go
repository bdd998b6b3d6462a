package auth

import (
	"errors"

	"interview-copilot/internal/store"
)

var (
	// ErrMissingToken means the request carried no bearer credential at all.
	ErrMissingToken = errors.New("missing access token")
	// ErrUserNotFound means the token verified but its subject no longer has
	// a user record.
	ErrUserNotFound = errors.New("user not found")
)

// UserFinder is the slice of the record store the gate needs.
type UserFinder interface {
	FindUserByUsername(username string) (*store.User, error)
}

// Gate resolves a bearer credential into an authenticated user. It is a pure
// function of the token, the clock and the store; nothing is cached between
// requests.
type Gate struct {
	tokens *TokenService
	users  UserFinder
}

func NewGate(tokens *TokenService, users UserFinder) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// Resolve verifies the credential and looks up its subject. Verification
// failures all map to ErrInvalidToken; a vanished principal maps to
// ErrUserNotFound.
func (g *Gate) Resolve(bearer string) (*store.User, error) {
	if bearer == "" {
		return nil, ErrMissingToken
	}
	subject, err := g.tokens.Verify(bearer)
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := g.users.FindUserByUsername(subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
