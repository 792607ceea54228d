package library

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tempFileStore(t *testing.T) (*FileStore, string, string) {
	t.Helper()
	dir := t.TempDir()
	books := filepath.Join(dir, "books.csv")
	members := filepath.Join(dir, "members.csv")
	return NewFileStore(books, members, discardLogger()), books, members
}

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Books: []Book{
			{ISBN: "978-0", Title: "War and Peace", Author: "Leo Tolstoy", Total: 3, Available: 2},
			{ISBN: "B,2", Title: "Commas, \"quotes\"\nand  double  spaces", Author: " padded ", Total: 1, Available: 0},
		},
		Members: []Member{
			{
				ID:       "MB001",
				Name:     "Alice Smith",
				Email:    "alice@example.com",
				Category: "faculty",
				Loans: map[string]time.Time{
					"978-0": time.UnixMilli(1_700_000_000_123),
					"B,2":   time.UnixMilli(1_700_000_100_000),
				},
			},
			{ID: "MB002", Name: "Bob", Category: "student", Loans: map[string]time.Time{}},
		},
	}
}

func assertSnapshotsEqual(t *testing.T, want, got *Snapshot) {
	t.Helper()
	require.Len(t, got.Books, len(want.Books))
	for i := range want.Books {
		assert.Equal(t, want.Books[i], got.Books[i])
	}
	require.Len(t, got.Members, len(want.Members))
	for i, w := range want.Members {
		g := got.Members[i]
		assert.Equal(t, w.ID, g.ID)
		assert.Equal(t, w.Name, g.Name)
		assert.Equal(t, w.Email, g.Email)
		assert.Equal(t, w.Category, g.Category)
		require.Len(t, g.Loans, len(w.Loans), "member %s", w.ID)
		for isbn, at := range w.Loans {
			assert.Equal(t, at.UnixMilli(), g.Loans[isbn].UnixMilli(), "loan %s/%s", w.ID, isbn)
		}
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, _, _ := tempFileStore(t)
	want := sampleSnapshot()

	require.NoError(t, store.Save(want))
	got, err := store.Load()
	require.NoError(t, err)
	assertSnapshotsEqual(t, want, got)
}

func TestFileStoreFieldOrder(t *testing.T) {
	store, books, members := tempFileStore(t)
	require.NoError(t, store.Save(&Snapshot{
		Books: []Book{{ISBN: "B1", Title: "Dune", Author: "Herbert", Total: 2, Available: 1}},
		Members: []Member{{
			ID:       "MB001",
			Name:     "Alice",
			Category: "student",
			Loans:    map[string]time.Time{"B1": time.UnixMilli(1000)},
		}},
	}))

	data, err := os.ReadFile(books)
	require.NoError(t, err)
	assert.Equal(t, "B1,Dune,Herbert,2,1\n", string(data))

	data, err = os.ReadFile(members)
	require.NoError(t, err)
	assert.Equal(t, "MB001,Alice,,student,B1:1000\n", string(data))
}

func TestFileStoreMissingFilesLoadEmpty(t *testing.T) {
	store, _, _ := tempFileStore(t)
	snap, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Books)
	assert.Empty(t, snap.Members)
}

func TestFileStoreSkipsMalformedRows(t *testing.T) {
	store, books, members := tempFileStore(t)
	bookRows := strings.Join([]string{
		"B1,Dune,Herbert,2,2",
		"SHORT,row",
		"B2,Bad,Count,two,1",
		`B3,bare"quote,A,1,1`,
		"B4,Emma,Austen,1,0",
	}, "\n") + "\n"
	memberRows := strings.Join([]string{
		"MB001,Alice,,student,B1:1000;garbage;B4:notanumber",
		"MB002,too,few",
		"MB010,Zed,z@example.com,faculty,",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(books, []byte(bookRows), 0o644))
	require.NoError(t, os.WriteFile(members, []byte(memberRows), 0o644))

	snap, err := store.Load()
	require.NoError(t, err)

	var isbns []string
	for _, b := range snap.Books {
		isbns = append(isbns, b.ISBN)
	}
	assert.Equal(t, []string{"B1", "B4"}, isbns)

	require.Len(t, snap.Members, 2)
	assert.Equal(t, "MB001", snap.Members[0].ID)
	assert.Equal(t, []string{"B1"}, snap.Members[0].LoanISBNs())
	assert.Equal(t, "MB010", snap.Members[1].ID)
	assert.Empty(t, snap.Members[1].Loans)
}

func TestFileStoreSaveFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	members := filepath.Join(dir, "members.csv")

	good := NewFileStore(filepath.Join(dir, "books.csv"), members, discardLogger())
	require.NoError(t, good.Save(sampleSnapshot()))
	before, err := os.ReadFile(members)
	require.NoError(t, err)

	broken := NewFileStore(filepath.Join(blocker, "books.csv"), members, discardLogger())
	assert.Error(t, broken.Save(&Snapshot{}))

	after, err := os.ReadFile(members)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover temp file %s", e.Name())
	}
}

func TestFileStoreSaveIsAllOrNothing(t *testing.T) {
	dir := t.TempDir()
	books := filepath.Join(dir, "books.csv")
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	good := NewFileStore(books, filepath.Join(dir, "members.csv"), discardLogger())
	require.NoError(t, good.Save(sampleSnapshot()))
	before, err := os.ReadFile(books)
	require.NoError(t, err)

	// The books file is writable; the members file cannot be created.
	broken := NewFileStore(books, filepath.Join(blocker, "members.csv"), discardLogger())
	assert.Error(t, broken.Save(&Snapshot{
		Books: []Book{{ISBN: "NEW", Title: "New", Author: "A", Total: 1, Available: 1}},
	}))

	after, err := os.ReadFile(books)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover temp file %s", e.Name())
	}
}

func TestCatalogRepairsTornSave(t *testing.T) {
	store, books, _ := tempFileStore(t)
	c, _ := newCatalog(t)
	c.AddOrUpdateBook("B1", "Dune", "Herbert", 1)
	alice := c.RegisterMember("Alice", "", "")
	require.True(t, c.Issue(alice, "B1").OK())
	require.NoError(t, store.Save(c.Snapshot()))

	// A books file from after the return next to a members file from
	// before it.
	require.NoError(t, os.WriteFile(books, []byte("B1,Dune,Herbert,1,1\n"), 0o644))

	snap, err := store.Load()
	require.NoError(t, err)
	restored, _ := newCatalog(t)
	assert.Equal(t, RestoreReport{ReconciledBooks: 1}, restored.Restore(snap))

	assert.Equal(t, 0, mustBook(t, restored, "B1").Available)
	assert.ErrorIs(t, restored.RemoveBook("B1"), ErrCopiesOnLoan)
	require.True(t, restored.Return(alice, "B1").OK())
	require.NoError(t, restored.RemoveBook("B1"))
	require.NoError(t, store.Save(restored.Snapshot()))
}

func TestLoanEntryEscaping(t *testing.T) {
	m := Member{Loans: map[string]time.Time{
		"a:b;c": time.UnixMilli(42),
		"plain": time.UnixMilli(7),
	}}
	field := formatLoans(m)
	assert.Equal(t, "a%3Ab%3Bc:42;plain:7", field)

	got, bad, err := parseMemberRow([]string{"MB001", "n", "", "", field})
	require.NoError(t, err)
	assert.Empty(t, bad)
	assert.Equal(t, int64(42), got.Loans["a:b;c"].UnixMilli())
	assert.Equal(t, int64(7), got.Loans["plain"].UnixMilli())
}

func TestCatalogSurvivesFileRoundTrip(t *testing.T) {
	store, _, _ := tempFileStore(t)
	c, clock := newCatalog(t)
	c.AddOrUpdateBook("B1", "The Left Hand of Darkness", "Ursula K. Le Guin", 2)
	c.AddOrUpdateBook("B2", "Kindred", "Octavia E. Butler", 1)
	alice := c.RegisterMember("Alice", "alice@example.com", "student")
	c.RegisterMember("Bob", "", "faculty")
	require.True(t, c.Issue(alice, "B1").OK())
	require.NoError(t, store.Save(c.Snapshot()))

	snap, err := store.Load()
	require.NoError(t, err)
	restored := NewCatalog(WithClock(clock.Now))
	assert.Equal(t, RestoreReport{}, restored.Restore(snap))

	assert.Equal(t, c.ListBooks(), restored.ListBooks())
	assertSnapshotsEqual(t, c.Snapshot(), restored.Snapshot())
	assert.Equal(t, "MB003", restored.RegisterMember("Carol", "", ""))

	clock.Advance(16 * 24 * time.Hour)
	res := restored.Return(alice, "B1")
	require.True(t, res.OK())
	assert.Equal(t, int64(2), res.LateDays)
}
