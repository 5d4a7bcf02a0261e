package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"stash/internal/server/database"
)

// ErrUnauthorized is returned for missing, invalid or expired credentials.
var ErrUnauthorized = errors.New("unauthorized")

// sessionPrefix namespaces session keys inside the shared key-value store.
const sessionPrefix = "auth_"

// Gateway resolves bearer tokens to user identities and manages the
// login/logout lifecycle of session tokens.
type Gateway struct {
	sessions SessionStore
	users    database.UserStore
	ttl      time.Duration
}

// NewGateway creates a gateway issuing tokens with the given TTL.
func NewGateway(sessions SessionStore, users database.UserStore, ttl time.Duration) *Gateway {
	return &Gateway{
		sessions: sessions,
		users:    users,
		ttl:      ttl,
	}
}

// ResolveToken maps a token to the user id it was issued for.
// A pure lookup: no session state is mutated. Returns ErrUnauthorized when
// the token is empty, unknown or expired.
func (g *Gateway) ResolveToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}

	userID, err := g.sessions.Get(ctx, sessionPrefix+token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return "", ErrUnauthorized
		}
		return "", fmt.Errorf("failed to resolve token: %w", err)
	}
	if userID == "" {
		return "", ErrUnauthorized
	}
	return userID, nil
}

// Login verifies the credentials and issues a fresh session token.
// A user may hold any number of concurrent tokens.
func (g *Gateway) Login(ctx context.Context, email, password string) (string, error) {
	user, err := g.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return "", ErrUnauthorized
		}
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrUnauthorized
	}

	token := uuid.NewString()
	if err := g.sessions.Set(ctx, sessionPrefix+token, user.ID, g.ttl); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	slog.Info("session opened", "user_id", user.ID)
	return token, nil
}

// Logout invalidates the token. Later lookups for it report ErrUnauthorized,
// never a stale user id.
func (g *Gateway) Logout(ctx context.Context, token string) error {
	userID, err := g.ResolveToken(ctx, token)
	if err != nil {
		return err
	}

	if err := g.sessions.Delete(ctx, sessionPrefix+token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("session closed", "user_id", userID)
	return nil
}
