package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testDay(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestLoadFreshState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	store, err := Load(path, zap.NewNop())
	require.NoError(t, err)

	_, ok := store.Bookmark("reservations")
	assert.False(t, ok)
	assert.Empty(t, store.CurrentlySyncing())
}

func TestBookmarkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	store, err := Load(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.SetBookmark("reservations", testDay(2024, 1, 5)))

	// a separate store reading the same file sees the persisted bookmark
	reloaded, err := Load(path, zap.NewNop())
	require.NoError(t, err)

	day, ok := reloaded.Bookmark("reservations")
	require.True(t, ok)
	assert.Equal(t, testDay(2024, 1, 5), day)
}

func TestBookmarkPersistedImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	store, err := Load(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.SetBookmark("clients", testDay(2024, 3, 9)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var onDisk State
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, "2024-03-09", onDisk.Bookmarks["clients"])
}

func TestCurrentlySyncingMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	store, err := Load(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.SetCurrentlySyncing("venues"))

	reloaded, err := Load(path, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "venues", reloaded.CurrentlySyncing())

	require.NoError(t, reloaded.ClearCurrentlySyncing())

	final, err := Load(path, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, final.CurrentlySyncing())
}

func TestPersistLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	store, err := Load(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.SetBookmark("reservations", testDay(2024, 1, 5)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestLoadCorruptState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load(path, zap.NewNop())
	assert.Error(t, err)
}

func TestSnapshotIsACopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	store, err := Load(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.SetBookmark("reservations", testDay(2024, 1, 5)))

	snap := store.Snapshot()
	snap.Bookmarks["reservations"] = "mutated"

	day, ok := store.Bookmark("reservations")
	require.True(t, ok)
	assert.Equal(t, testDay(2024, 1, 5), day)
}

func TestBookmarksIndependentPerStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	store, err := Load(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.SetBookmark("reservations", testDay(2024, 1, 5)))
	require.NoError(t, store.SetBookmark("clients", testDay(2024, 1, 3)))

	r, _ := store.Bookmark("reservations")
	c, _ := store.Bookmark("clients")
	assert.Equal(t, testDay(2024, 1, 5), r)
	assert.Equal(t, testDay(2024, 1, 3), c)
}
