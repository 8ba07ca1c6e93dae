package buffer

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "buffer.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreOrdersByPriorityThenAge(t *testing.T) {
	store := openStore(t)
	base := time.Now()

	require.NoError(t, store.Enqueue(Item{ID: "user-old", Entity: EntityUser, Priority: PriorityUser, Timestamp: base}))
	require.NoError(t, store.Enqueue(Item{ID: "task-new", Entity: EntityTask, Priority: PriorityTask, Timestamp: base.Add(time.Second)}))
	require.NoError(t, store.Enqueue(Item{ID: "task-old", Entity: EntityTask, Priority: PriorityTask, Timestamp: base}))

	items, err := store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"task-old", "task-new", "user-old"}, []string{items[0].ID, items[1].ID, items[2].ID})

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 3, size)
}

func TestStoreNormalizesItems(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Enqueue(Item{Entity: EntityTask, Priority: 42}))

	items, err := store.GetBatch(0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].ID)
	assert.Equal(t, defaultPriority, items[0].Priority)
	assert.False(t, items[0].Timestamp.IsZero())
}

func TestStoreRemoveAndRetry(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Enqueue(Item{ID: "a", Priority: PriorityTask}))
	require.NoError(t, store.Enqueue(Item{ID: "b", Priority: PriorityTask}))

	items, err := store.GetBatch(10)
	require.NoError(t, err)
	require.NoError(t, store.Retry(items[0]))

	items, err = store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, 1, items[0].Retries)
	assert.Equal(t, "b", items[1].ID)

	require.NoError(t, store.Retry(Item{ID: "a"}))
	items, err = store.GetBatch(10)
	require.NoError(t, err)
	assert.Equal(t, 2, items[0].Retries)

	require.NoError(t, store.Remove(Item{ID: "b"}))
	require.NoError(t, store.Remove(items[0]))
	size, err := store.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestStoreCleanup(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Enqueue(Item{ID: "stale", Timestamp: time.Now().Add(-48 * time.Hour)}))
	require.NoError(t, store.Enqueue(Item{ID: "fresh"}))

	removed, err := store.Cleanup(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	items, err := store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "fresh", items[0].ID)
}

func TestNilStore(t *testing.T) {
	var store *Store
	_, err := store.Size()
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}
