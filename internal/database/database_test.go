package database

import (
	"context"
	"path/filepath"
	"testing"

	"cabo/internal/config"
	"cabo/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := Open(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "cabo.db"),
	}, &logger)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	db, err := Open(config.DatabaseConfig{Driver: "sqlite", Path: dbPath}, nil)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.Equal(t, "sqlite", db.Driver())
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "mysql"}, nil)
	assert.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Migrate())
	assert.NoError(t, db.PingContext(context.Background()))
}

func TestSeedAdmin(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	created, err := db.SeedAdmin(ctx, "Owner@Example.com", "s3cret")
	require.NoError(t, err)
	assert.True(t, created)

	user, err := db.GetUserByEmail(ctx, "owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.NotEqual(t, "s3cret", user.PasswordHash)

	created, err = db.SeedAdmin(ctx, "other@example.com", "x")
	require.NoError(t, err)
	assert.False(t, created, "seeding must not run when users exist")

	created, err = db.SeedAdmin(ctx, "", "")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestDuplicateUserEmail(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateUser(ctx, &models.User{Email: "a@example.com", PasswordHash: "x"}))
	err := db.CreateUser(ctx, &models.User{Email: "A@example.com", PasswordHash: "y"})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = db.GetUserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}
