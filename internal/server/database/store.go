package database

import (
	"context"
	"errors"
	"fmt"

	"stash/internal/server/config"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrFileNotFound = errors.New("file not found")
)

// UserStore provides persistence for user accounts.
type UserStore interface {
	// CreateUser inserts a new user. Returns ErrEmailTaken when the email
	// is already registered.
	CreateUser(ctx context.Context, user *User) error
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByID(ctx context.Context, id string) (*User, error)
	CountUsers(ctx context.Context) (int64, error)
}

// FileStore provides persistence for file and folder records.
// Implementations must return listings in insertion order so that
// pagination windows are stable.
type FileStore interface {
	InsertFile(ctx context.Context, file *File) error
	FileByID(ctx context.Context, id string) (*File, error)
	FileByIDAndOwner(ctx context.Context, id, ownerID string) (*File, error)
	ListFiles(ctx context.Context, ownerID string, parent ParentID, skip, limit int) ([]*File, error)
	// SetFilePublic flips the visibility flag on a record owned by ownerID
	// and returns the updated record. Returns ErrFileNotFound when the
	// record does not exist or belongs to someone else.
	SetFilePublic(ctx context.Context, id, ownerID string, public bool) (*File, error)
	CountFiles(ctx context.Context) (int64, error)
}

// Store is the full metadata store contract consumed by the services.
type Store interface {
	UserStore
	FileStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Open constructs the metadata store selected by the configuration.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.MetadataBackend {
	case "memory":
		return NewMemoryStore(), nil
	case "postgres":
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case "mongo":
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown metadata backend %q", cfg.MetadataBackend)
	}
}
