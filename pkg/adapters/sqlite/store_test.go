package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/venueflow/pkg/adapters/sqlite"
	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "venueflow.db"))
	ports.RunRepositoryContract(t, store)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "venueflow.db")
	ctx := context.Background()

	first, err := sqlite.Open(path)
	require.NoError(t, err)
	ok, err := first.Append(ctx, domain.StageEvent{StageType: domain.StageReview, RequestFormID: "f", Sequence: 1})
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, first.Close())

	second := openStore(t, path)
	events, err := second.Events(ctx, "f")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.StageReview, events[0].StageType)

	ok, err = second.Append(ctx, domain.StageEvent{StageType: domain.StageBid, RequestFormID: "f", Sequence: 1})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_RequiresPath(t *testing.T) {
	_, err := sqlite.Open("  ")
	assert.Error(t, err)
}
