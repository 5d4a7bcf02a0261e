package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"stash/internal/server/database"
)

func TestRegister(t *testing.T) {
	db := database.NewMemoryStore()
	svc := NewUserService(db)
	ctx := context.Background()

	t.Run("creates user with hashed password", func(t *testing.T) {
		user, err := svc.Register(ctx, "bob@dylan.com", "toto1234!")
		require.NoError(t, err)

		assert.NotEmpty(t, user.ID)
		assert.Equal(t, "bob@dylan.com", user.Email)
		assert.NotEqual(t, "toto1234!", user.PasswordHash, "plaintext must never be stored")
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("toto1234!")))
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.Register(ctx, "bob@dylan.com", "other")
		assert.ErrorIs(t, err, ErrEmailExists)
	})

	t.Run("missing email", func(t *testing.T) {
		_, err := svc.Register(ctx, "", "pw")
		assert.ErrorIs(t, err, ErrMissingEmail)
	})

	t.Run("missing password", func(t *testing.T) {
		_, err := svc.Register(ctx, "a@b.c", "")
		assert.ErrorIs(t, err, ErrMissingPassword)
	})
}

func TestMe(t *testing.T) {
	db := database.NewMemoryStore()
	svc := NewUserService(db)
	ctx := context.Background()

	user, err := svc.Register(ctx, "me@example.com", "pw")
	require.NoError(t, err)

	got, err := svc.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	_, err = svc.Me(ctx, "gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCounts(t *testing.T) {
	db := database.NewMemoryStore()
	users := NewUserService(db)
	files := NewFileService(db, nil, nil)
	ctx := context.Background()

	_, err := users.Register(ctx, "one@example.com", "pw")
	require.NoError(t, err)
	_, err = users.Register(ctx, "two@example.com", "pw")
	require.NoError(t, err)
	_, err = files.Create(ctx, "u", CreateFileInput{Name: "d", Type: "folder"})
	require.NoError(t, err)

	stats, err := users.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Users)
	assert.Equal(t, int64(1), stats.Files)
}
