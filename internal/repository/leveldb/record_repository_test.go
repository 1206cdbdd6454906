package leveldb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain/record"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/repository/repotest"
)

func TestRecordRepository(t *testing.T) {
	repotest.RunRecordRepository(t, func(t *testing.T) record.Repository {
		repo, err := OpenInMemory()
		require.NoError(t, err)
		t.Cleanup(func() { _ = repo.Close() })
		return repo
	})
}

func TestRecordRepository_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "records")

	repo, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, repotest.NewRecord("20240101_100000", "alice")))
	require.NoError(t, repo.Append(ctx, repotest.NewRecord("20240101_100000_1", "alice")))
	require.NoError(t, repo.Close())

	repo, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	require.NoError(t, repo.Append(ctx, repotest.NewRecord("20230101_000000", "alice")))

	all, err := repo.FilterByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, all, 3)
	// insertion order, not key order
	assert.Equal(t, "20240101_100000", all[0].Key)
	assert.Equal(t, "20240101_100000_1", all[1].Key)
	assert.Equal(t, "20230101_000000", all[2].Key)
}
