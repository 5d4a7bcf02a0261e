package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations contains all database migrations in order.
// Each migration has a version key and SQL to execute.
var migrations = []struct {
	Version string
	SQL     string
}{
	{
		Version: "000001_create_users_and_files",
		SQL: `
			CREATE TABLE IF NOT EXISTS users (
				id            VARCHAR(36)  PRIMARY KEY,
				email         VARCHAR(255) NOT NULL UNIQUE,
				password_hash VARCHAR(255) NOT NULL,
				created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);
			CREATE TABLE IF NOT EXISTS files (
				id         VARCHAR(36)  PRIMARY KEY,
				seq        BIGSERIAL,
				owner_id   VARCHAR(36)  NOT NULL REFERENCES users(id),
				name       VARCHAR(255) NOT NULL,
				type       VARCHAR(16)  NOT NULL,
				is_public  BOOLEAN      NOT NULL DEFAULT FALSE,
				parent_id  VARCHAR(36)  NOT NULL DEFAULT '',
				local_path TEXT         NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_files_listing ON files(owner_id, parent_id, seq);
		`,
	},
}

// PostgresStore is the pgx-backed metadata store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres, applies pending migrations and
// returns the store.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	slog.Info("connected to postgres metadata store")
	return s, nil
}

// runMigrations applies all pending database migrations in order.
func (s *PostgresStore) runMigrations(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists bool
		err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration status for %s: %w", m.Version, err)
		}
		if exists {
			continue
		}

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to execute migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.Version, err)
		}

		slog.Info("applied migration", "version", m.Version)
	}

	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, user.ID, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at FROM users WHERE email = $1
	`, email))
}

func (s *PostgresStore) UserByID(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at FROM users WHERE id = $1
	`, id))
}

func (s *PostgresStore) scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) InsertFile(ctx context.Context, file *File) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO files (id, owner_id, name, type, is_public, parent_id, local_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		file.ID,
		file.OwnerID,
		file.Name,
		string(file.Type),
		file.IsPublic,
		string(file.ParentID),
		file.LocalPath,
		file.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert file: %w", err)
	}
	return nil
}

const fileColumns = "id, owner_id, name, type, is_public, parent_id, local_path, created_at"

func (s *PostgresStore) FileByID(ctx context.Context, id string) (*File, error) {
	return scanFile(s.pool.QueryRow(ctx,
		"SELECT "+fileColumns+" FROM files WHERE id = $1", id))
}

func (s *PostgresStore) FileByIDAndOwner(ctx context.Context, id, ownerID string) (*File, error) {
	return scanFile(s.pool.QueryRow(ctx,
		"SELECT "+fileColumns+" FROM files WHERE id = $1 AND owner_id = $2", id, ownerID))
}

func scanFile(row pgx.Row) (*File, error) {
	file := &File{}
	var fileType, parentID string
	err := row.Scan(
		&file.ID,
		&file.OwnerID,
		&file.Name,
		&fileType,
		&file.IsPublic,
		&parentID,
		&file.LocalPath,
		&file.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	file.Type = FileType(fileType)
	file.ParentID = ParentID(parentID)
	return file, nil
}

func (s *PostgresStore) ListFiles(ctx context.Context, ownerID string, parent ParentID, skip, limit int) ([]*File, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+fileColumns+` FROM files
		 WHERE owner_id = $1 AND parent_id = $2
		 ORDER BY seq
		 OFFSET $3 LIMIT $4
	`, ownerID, string(parent), skip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	files := make([]*File, 0, limit)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (s *PostgresStore) SetFilePublic(ctx context.Context, id, ownerID string, public bool) (*File, error) {
	return scanFile(s.pool.QueryRow(ctx, `
		UPDATE files SET is_public = $3
		WHERE id = $1 AND owner_id = $2
		RETURNING `+fileColumns,
		id, ownerID, public))
}

func (s *PostgresStore) CountFiles(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM files").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return n, nil
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (s *PostgresStore) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}
