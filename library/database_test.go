package library

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempDB(t *testing.T) *Database {
	t.Helper()
	dir := t.TempDir()
	db, err := NewDatabase(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDatabaseFreshLoadIsEmpty(t *testing.T) {
	db := tempDB(t)
	snap, err := db.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Books)
	assert.Empty(t, snap.Members)
}

func TestDatabaseRoundTrip(t *testing.T) {
	db := tempDB(t)
	want := sampleSnapshot()
	require.NoError(t, db.Save(want))

	got, err := db.Load()
	require.NoError(t, err)

	// Rows come back ordered by key.
	require.Len(t, got.Books, 2)
	assert.Equal(t, "978-0", got.Books[0].ISBN)
	assert.Equal(t, want.Books[1], got.Books[1])
	assertSnapshotsEqual(t, want, got)
}

func TestDatabaseSaveReplacesSnapshot(t *testing.T) {
	db := tempDB(t)
	require.NoError(t, db.Save(sampleSnapshot()))

	c, _ := newCatalog(t)
	c.AddOrUpdateBook("B9", "Only", "One", 1)
	require.NoError(t, db.Save(c.Snapshot()))

	got, err := db.Load()
	require.NoError(t, err)
	require.Len(t, got.Books, 1)
	assert.Equal(t, "B9", got.Books[0].ISBN)
	assert.Empty(t, got.Members)
}

func TestDatabaseRejectsBrokenCounts(t *testing.T) {
	db := tempDB(t)
	require.NoError(t, db.Save(sampleSnapshot()))

	err := db.Save(&Snapshot{Books: []Book{{ISBN: "X", Title: "t", Author: "a", Total: 1, Available: 2}}})
	assert.Error(t, err)

	// The failed transaction leaves the previous snapshot in place.
	got, err := db.Load()
	require.NoError(t, err)
	assert.Len(t, got.Books, 2)
}

func TestDatabaseReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib.db")
	db, err := NewDatabase(path)
	require.NoError(t, err)
	require.NoError(t, db.Save(sampleSnapshot()))
	require.NoError(t, db.Close())

	db, err = NewDatabase(path)
	require.NoError(t, err)
	defer db.Close()
	got, err := db.Load()
	require.NoError(t, err)
	assertSnapshotsEqual(t, sampleSnapshot(), got)
}
