package library

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Database is a Store backed by a SQLite file. Each Save replaces the
// stored snapshot inside one transaction.
type Database struct {
	db *sql.DB
}

// NewDatabase opens (or creates) the SQLite database at dbPath and applies
// schema migrations.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Database{db: db}, nil
}

// Close closes the DB.
func (d *Database) Close() error { return d.db.Close() }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
            isbn TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            total INTEGER NOT NULL CHECK (total >= 0),
            available INTEGER NOT NULL CHECK (available BETWEEN 0 AND total)
        );`,
		`CREATE TABLE IF NOT EXISTS members (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL DEFAULT '',
            category TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE TABLE IF NOT EXISTS loans (
            member_id TEXT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
            isbn TEXT NOT NULL REFERENCES books(isbn),
            issued_at INTEGER NOT NULL,
            PRIMARY KEY (member_id, isbn)
        );`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Snapshot I/O
// ---------------------------------------------------------------------------

// Load reads the stored snapshot. A fresh database yields an empty one.
func (d *Database) Load() (*Snapshot, error) {
	snap := &Snapshot{}

	rows, err := d.db.Query(`SELECT isbn,title,author,total,available FROM books ORDER BY isbn`)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ISBN, &b.Title, &b.Author, &b.Total, &b.Available); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan book: %w", err)
		}
		snap.Books = append(snap.Books, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}

	rows, err = d.db.Query(`SELECT id,name,email,category FROM members ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	index := make(map[string]int)
	for rows.Next() {
		m := Member{Loans: make(map[string]time.Time)}
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Category); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan member: %w", err)
		}
		index[m.ID] = len(snap.Members)
		snap.Members = append(snap.Members, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}

	rows, err = d.db.Query(`SELECT member_id,isbn,issued_at FROM loans`)
	if err != nil {
		return nil, fmt.Errorf("query loans: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			memberID, isbn string
			issuedAt       int64
		)
		if err := rows.Scan(&memberID, &isbn, &issuedAt); err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		if i, ok := index[memberID]; ok {
			snap.Members[i].Loans[isbn] = time.UnixMilli(issuedAt)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query loans: %w", err)
	}
	return snap, nil
}

// Save replaces everything stored with snap.
func (d *Database) Save(snap *Snapshot) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM loans`, `DELETE FROM members`, `DELETE FROM books`} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}
	}

	addBook, err := tx.Prepare(`INSERT INTO books(isbn,title,author,total,available) VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer addBook.Close()
	for _, b := range snap.Books {
		if _, err := addBook.Exec(b.ISBN, b.Title, b.Author, b.Total, b.Available); err != nil {
			return fmt.Errorf("save book %s: %w", b.ISBN, err)
		}
	}

	addMember, err := tx.Prepare(`INSERT INTO members(id,name,email,category) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer addMember.Close()
	addLoan, err := tx.Prepare(`INSERT INTO loans(member_id,isbn,issued_at) VALUES(?,?,?)`)
	if err != nil {
		return err
	}
	defer addLoan.Close()
	for _, m := range snap.Members {
		if _, err := addMember.Exec(m.ID, m.Name, m.Email, m.Category); err != nil {
			return fmt.Errorf("save member %s: %w", m.ID, err)
		}
		for _, isbn := range m.LoanISBNs() {
			if _, err := addLoan.Exec(m.ID, isbn, m.Loans[isbn].UnixMilli()); err != nil {
				return fmt.Errorf("save loan %s/%s: %w", m.ID, isbn, err)
			}
		}
	}

	return tx.Commit()
}
