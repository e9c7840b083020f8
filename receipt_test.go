package flowsetup

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *ReceiptStore {
	t.Helper()
	store, err := OpenReceipts(filepath.Join(t.TempDir(), "receipts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleReceipt() *Receipt {
	return &Receipt{
		App:       "Flowly",
		Version:   "1.2.0",
		Publisher: "Flowly Team",
		Dir:       "/home/u/.local/opt/Flowly",
		Scope:     ScopeUser,
		Files: []ReceiptFile{
			{Path: "/home/u/.local/opt/Flowly/Flowly.exe", SHA256: "aa", Size: 100},
			{Path: "/home/u/.config/Flowly/habit_tracker.sqlite3", SHA256: "bb", Size: 50, Keep: true},
		},
		Dirs:      []string{"/home/u/.local/opt/Flowly", "/home/u/.config/Flowly"},
		Shortcuts: []string{"/home/u/.local/share/applications/flowly.desktop"},
	}
}

func TestReceiptRoundtrip(t *testing.T) {
	store := openTestStore(t)

	r := sampleReceipt()
	require.NoError(t, store.Record(r))
	assert.NotEmpty(t, r.ID, "Record assigns an id")
	assert.False(t, r.CreatedAt.IsZero(), "Record assigns a timestamp")

	got, err := store.Lookup("Flowly")
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, "1.2.0", got.Version)
	assert.Equal(t, "Flowly Team", got.Publisher)
	assert.Equal(t, ScopeUser, got.Scope)
	assert.Equal(t, r.Files, got.Files)
	assert.Equal(t, r.Dirs, got.Dirs)
	assert.Equal(t, r.Shortcuts, got.Shortcuts)
	assert.WithinDuration(t, r.CreatedAt, got.CreatedAt, time.Second)
}

func TestReceiptReinstallReplaces(t *testing.T) {
	store := openTestStore(t)

	first := sampleReceipt()
	require.NoError(t, store.Record(first))

	second := sampleReceipt()
	second.Version = "1.3.0"
	second.Files = second.Files[:1]
	require.NoError(t, store.Record(second))

	got, err := store.Lookup("Flowly")
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", got.Version)
	assert.Len(t, got.Files, 1, "old detail rows are gone")

	all, err := store.List()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestReceiptLookupByDir(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Record(sampleReceipt()))

	got, err := store.LookupByDir("/home/u/.local/opt/Flowly")
	require.NoError(t, err)
	assert.Equal(t, "Flowly", got.App)

	_, err = store.LookupByDir("/nowhere")
	assert.ErrorIs(t, err, ErrNotInstalled)
}

func TestReceiptList(t *testing.T) {
	store := openTestStore(t)

	a := sampleReceipt()
	a.App = "Zeta"
	a.Dir = "/opt/zeta"
	require.NoError(t, store.Record(a))
	b := sampleReceipt()
	b.App = "Alpha"
	b.Dir = "/opt/alpha"
	require.NoError(t, store.Record(b))

	all, err := store.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Alpha", all[0].App)
	assert.Equal(t, "Zeta", all[1].App)
	assert.Empty(t, all[0].Files, "List leaves details out")
}

func TestReceiptRemove(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Record(sampleReceipt()))

	require.NoError(t, store.Remove("Flowly"))
	_, err := store.Lookup("Flowly")
	assert.ErrorIs(t, err, ErrNotInstalled)

	assert.ErrorIs(t, store.Remove("Flowly"), ErrNotInstalled)
}

func TestDefaultReceiptsPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path, err := DefaultReceiptsPath()
	require.NoError(t, err)
	assert.Contains(t, path, "flowsetup")
	assert.Equal(t, "receipts.db", filepath.Base(path))
}
