package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "audit", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewStore_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "history.db")

	store, err := NewStore(path)

	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestNewStore_ReopenExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	first, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, first.RecordRegister(context.Background(), "m", "1.0.0", "abc"))
	require.NoError(t, first.Close())

	// Migrations are a no-op the second time
	second, err := NewStore(path)
	require.NoError(t, err)
	defer second.Close()

	events, err := second.Events(context.Background(), "m", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestStore_RecordAndQueryEvents(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordRegister(ctx, "llama-7b", "1.0.0", "hash-a"))
	require.NoError(t, store.RecordRegister(ctx, "llama-7b", "2.0.0", "hash-b"))
	require.NoError(t, store.RecordDelete(ctx, "llama-7b", "1.0.0"))
	require.NoError(t, store.RecordRegister(ctx, "whisper", "1.0.0", "hash-c"))

	events, err := store.Events(ctx, "llama-7b", 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	// Newest first
	require.Equal(t, "delete", events[0].EventType)
	require.Equal(t, "1.0.0", events[0].Version)
	require.Equal(t, "register", events[1].EventType)
	require.Equal(t, "2.0.0", events[1].Version)

	all, err := store.Events(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 4)
}

func TestStore_EventsRespectsLimit(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	for _, v := range []string{"1.0.0", "1.1.0", "1.2.0"} {
		require.NoError(t, store.RecordRegister(ctx, "m", v, ""))
	}

	events, err := store.Events(ctx, "m", 2)

	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "1.2.0", events[0].Version)
}

func TestStore_RecordMigrationOutcomes(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordMigration(ctx, "m", "1.0.0", "2.0.0", nil))
	require.NoError(t, store.RecordMigration(ctx, "m", "2.0.0", "3.0.0", errors.New("conversion failed")))

	runs, err := store.MigrationRuns(ctx, "m", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	require.Equal(t, "failure", runs[0].Outcome)
	require.Equal(t, "conversion failed", runs[0].Error)
	require.Equal(t, "success", runs[1].Outcome)
	require.Empty(t, runs[1].Error)
	require.NotEmpty(t, runs[0].RunID)
	require.NotEqual(t, runs[0].RunID, runs[1].RunID)
}
