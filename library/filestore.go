package library

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	bookFields   = 5
	memberFields = 5

	loanSep      = ";"
	loanFieldSep = ":"
)

// FileStore keeps books and members in two CSV files. Fields are quoted
// per RFC 4180 so titles and names round-trip exactly.
//
// books:   isbn,title,author,total,available
// members: id,name,email,category,loans
//
// loans is a list of isbn:epochMillis entries joined by ';', with the isbn
// query-escaped.
type FileStore struct {
	booksPath   string
	membersPath string
	log         *slog.Logger
}

// NewFileStore returns a store over the two given paths. Neither file has
// to exist yet.
func NewFileStore(booksPath, membersPath string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{booksPath: booksPath, membersPath: membersPath, log: logger}
}

func (s *FileStore) Close() error { return nil }

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

// Load reads both files. Malformed rows are skipped with a warning; a
// missing file reads as empty.
func (s *FileStore) Load() (*Snapshot, error) {
	snap := &Snapshot{}

	err := s.readRows(s.booksPath, func(line int, row []string) {
		b, err := parseBookRow(row)
		if err != nil {
			s.log.Warn("skipping book row", "file", s.booksPath, "line", line, "error", err)
			return
		}
		snap.Books = append(snap.Books, b)
	})
	if err != nil {
		return nil, err
	}

	err = s.readRows(s.membersPath, func(line int, row []string) {
		m, bad, err := parseMemberRow(row)
		if err != nil {
			s.log.Warn("skipping member row", "file", s.membersPath, "line", line, "error", err)
			return
		}
		for _, entry := range bad {
			s.log.Warn("skipping loan entry", "file", s.membersPath, "line", line, "member", m.ID, "entry", entry)
		}
		snap.Members = append(snap.Members, m)
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *FileStore) readRows(path string, fn func(line int, row []string)) error {
	f, err := os.Open(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			s.log.Warn("skipping unreadable row", "file", path, "line", perr.Line, "error", perr.Err)
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		line, _ := r.FieldPos(0)
		fn(line, row)
	}
}

func parseBookRow(row []string) (Book, error) {
	if len(row) < bookFields {
		return Book{}, fmt.Errorf("want %d fields, got %d", bookFields, len(row))
	}
	total, err := strconv.Atoi(row[3])
	if err != nil {
		return Book{}, fmt.Errorf("total: %w", err)
	}
	avail, err := strconv.Atoi(row[4])
	if err != nil {
		return Book{}, fmt.Errorf("available: %w", err)
	}
	return Book{ISBN: row[0], Title: row[1], Author: row[2], Total: total, Available: avail}, nil
}

// parseMemberRow returns the member plus any loan entries it could not
// understand.
func parseMemberRow(row []string) (Member, []string, error) {
	if len(row) < memberFields {
		return Member{}, nil, fmt.Errorf("want %d fields, got %d", memberFields, len(row))
	}
	m := Member{
		ID:       row[0],
		Name:     row[1],
		Email:    row[2],
		Category: row[3],
		Loans:    make(map[string]time.Time),
	}
	var bad []string
	if row[4] == "" {
		return m, nil, nil
	}
	for _, entry := range strings.Split(row[4], loanSep) {
		isbn, at, err := parseLoanEntry(entry)
		if err != nil {
			bad = append(bad, entry)
			continue
		}
		m.Loans[isbn] = at
	}
	return m, bad, nil
}

func parseLoanEntry(entry string) (string, time.Time, error) {
	i := strings.LastIndex(entry, loanFieldSep)
	if i <= 0 {
		return "", time.Time{}, fmt.Errorf("malformed loan %q", entry)
	}
	isbn, err := url.QueryUnescape(entry[:i])
	if err != nil {
		return "", time.Time{}, err
	}
	ms, err := strconv.ParseInt(entry[i+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, err
	}
	return isbn, time.UnixMilli(ms), nil
}

// ---------------------------------------------------------------------------
// Save
// ---------------------------------------------------------------------------

// Save rewrites both files. Both are written to temp files next to their
// targets first and only renamed into place once both writes succeed, so a
// failed write leaves the previous pair intact.
func (s *FileStore) Save(snap *Snapshot) error {
	books := make([][]string, 0, len(snap.Books))
	for _, b := range snap.Books {
		books = append(books, []string{b.ISBN, b.Title, b.Author, strconv.Itoa(b.Total), strconv.Itoa(b.Available)})
	}
	members := make([][]string, 0, len(snap.Members))
	for _, m := range snap.Members {
		members = append(members, []string{m.ID, m.Name, m.Email, m.Category, formatLoans(m)})
	}

	booksTmp, err := writeTemp(s.booksPath, books)
	if err != nil {
		return err
	}
	defer os.Remove(booksTmp)

	membersTmp, err := writeTemp(s.membersPath, members)
	if err != nil {
		return err
	}
	defer os.Remove(membersTmp)

	if err := os.Rename(booksTmp, filepath.Clean(s.booksPath)); err != nil {
		return fmt.Errorf("replace %s: %w", s.booksPath, err)
	}
	if err := os.Rename(membersTmp, filepath.Clean(s.membersPath)); err != nil {
		return fmt.Errorf("replace %s: %w", s.membersPath, err)
	}
	return nil
}

func formatLoans(m Member) string {
	entries := make([]string, 0, len(m.Loans))
	for _, isbn := range m.LoanISBNs() {
		entries = append(entries, url.QueryEscape(isbn)+loanFieldSep+strconv.FormatInt(m.Loans[isbn].UnixMilli(), 10))
	}
	return strings.Join(entries, loanSep)
}

// writeTemp writes rows to a temp file in the directory of path and
// returns its name. The caller renames or removes it.
func writeTemp(path string, rows [][]string) (string, error) {
	path = filepath.Clean(path)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create dir for %s: %w", path, err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", path, err)
	}

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return tmp.Name(), nil
}
