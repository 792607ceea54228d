package library

import (
	"fmt"
	"log/slog"
)

// Store persists catalog snapshots between runs.
type Store interface {
	// Load returns the saved state. A store that has never been saved
	// returns an empty snapshot and no error.
	Load() (*Snapshot, error)
	Save(*Snapshot) error
	Close() error
}

// Store kinds understood by OpenStore.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// StoreOptions selects and locates a Store.
type StoreOptions struct {
	Kind        string
	BooksPath   string
	MembersPath string
	DBPath      string
	Logger      *slog.Logger
}

// OpenStore opens the store described by opts.
func OpenStore(opts StoreOptions) (Store, error) {
	switch opts.Kind {
	case StoreFile, "":
		return NewFileStore(opts.BooksPath, opts.MembersPath, opts.Logger), nil
	case StoreSQLite:
		return NewDatabase(opts.DBPath)
	default:
		return nil, fmt.Errorf("unknown store kind %q", opts.Kind)
	}
}
