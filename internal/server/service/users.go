package service

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

// Stats holds the aggregate counts served by the stats endpoint.
type Stats struct {
	Users int64 `json:"users"`
	Files int64 `json:"files"`
}

// UserService handles account registration and lookups.
type UserService struct {
	db database.Store
}

// NewUserService creates a new user service.
func NewUserService(db database.Store) *UserService {
	return &UserService{db: db}
}

// Register creates a new account. The password is stored only as a bcrypt
// hash; a duplicate email reports ErrEmailExists.
func (s *UserService) Register(ctx context.Context, email, password string) (*database.User, error) {
	if email == "" {
		return nil, ErrMissingEmail
	}
	if password == "" {
		return nil, ErrMissingPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &database.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.db.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrEmailTaken) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", "id", user.ID, "email", user.Email)
	return user, nil
}

// Me returns the account behind a resolved token.
func (s *UserService) Me(ctx context.Context, userID string) (*database.User, error) {
	user, err := s.db.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// Counts returns aggregate user and file counts.
func (s *UserService) Counts(ctx context.Context) (*Stats, error) {
	users, err := s.db.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	files, err := s.db.CountFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count files: %w", err)
	}
	return &Stats{Users: users, Files: files}, nil
}
