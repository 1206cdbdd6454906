package leveldb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/repository/repotest"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	users := repo.Users()

	u := &domain.User{Username: "alice", PasswordHash: "h", Role: domain.RolePatient}
	require.NoError(t, users.Create(ctx, u))
	assert.NotEqual(t, uuid.Nil, u.ID)

	err = users.Create(ctx, &domain.User{Username: "alice", PasswordHash: "x", Role: domain.RoleDoctor})
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)

	_, err = users.GetByUsername(ctx, "bob")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.ErrorIs(t, users.UpdateLastLogin(ctx, "bob", time.Now()), domain.ErrUserNotFound)

	require.NoError(t, users.UpdateLastLogin(ctx, "alice", time.Now()))
	require.NoError(t, users.UpdateDisplayName(ctx, "alice", "Alice"))

	got, err := users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, domain.RolePatient, got.Role)
	assert.Equal(t, "Alice", got.DisplayName)
	require.NotNil(t, got.LastLoginAt)
}

func TestUserRepository_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store")

	repo, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, repo.Users().Create(ctx, &domain.User{Username: "alice", PasswordHash: "h", Role: domain.RolePatient}))
	require.NoError(t, repo.Append(ctx, repotest.NewRecord("20240101_100000", "alice")))
	require.NoError(t, repo.Close())

	repo, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	err = repo.Users().Create(ctx, &domain.User{Username: "alice", PasswordHash: "other", Role: domain.RoleDoctor})
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)

	got, err := repo.Users().GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "h", got.PasswordHash)

	// user entries stay out of record scans
	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
