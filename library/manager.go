package library

import (
	"errors"
	"log/slog"
)

// LibraryManager is a thin façade pairing a Catalog with the Store it is
// loaded from and saved to, keeping CLI code simple.
type LibraryManager struct {
	catalog *Catalog
	store   Store
	log     *slog.Logger
	opts    []Option
}

// NewLibraryManager returns a manager over an empty catalog. Call Load to
// pull in the stored state.
func NewLibraryManager(store Store, logger *slog.Logger, opts ...Option) *LibraryManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &LibraryManager{
		catalog: NewCatalog(opts...),
		store:   store,
		log:     logger,
		opts:    opts,
	}
}

// Close closes the underlying store.
func (lm *LibraryManager) Close() error { return lm.store.Close() }

// ------------------ Persistence ------------------

// Load replaces the catalog with the stored state. On failure the manager
// is left with an empty catalog and the error is returned so the caller can
// tell the operator it is starting fresh.
func (lm *LibraryManager) Load() error {
	snap, err := lm.store.Load()
	if err != nil {
		lm.catalog = NewCatalog(lm.opts...)
		lm.log.Warn("load failed, starting fresh", "error", err)
		return err
	}
	report := lm.catalog.Restore(snap)
	if report.DroppedLoans > 0 {
		lm.log.Warn("dropped loans for books no longer in the catalog", "count", report.DroppedLoans)
	}
	if report.ReconciledBooks > 0 {
		lm.log.Warn("reconciled copy counts with member loans", "books", report.ReconciledBooks)
	}
	lm.log.Info("catalog loaded", "books", len(snap.Books), "members", len(snap.Members))
	return nil
}

// Save writes the catalog to the store. The in-memory state is kept
// whatever the outcome.
func (lm *LibraryManager) Save() error {
	snap := lm.catalog.Snapshot()
	if err := lm.store.Save(snap); err != nil {
		lm.log.Error("save failed", "error", err)
		return err
	}
	lm.log.Info("catalog saved", "books", len(snap.Books), "members", len(snap.Members))
	return nil
}

// ------------------ Book helpers ------------------

func (lm *LibraryManager) AddOrUpdateBook(isbn, title, author string, copies int) bool {
	ok := lm.catalog.AddOrUpdateBook(isbn, title, author, copies)
	lm.log.Debug("add book", "isbn", isbn, "copies", copies, "ok", ok)
	return ok
}

func (lm *LibraryManager) RemoveBook(isbn string) error {
	err := lm.catalog.RemoveBook(isbn)
	switch {
	case err == nil:
		lm.log.Debug("remove book", "isbn", isbn)
	case errors.Is(err, ErrCopiesOnLoan), errors.Is(err, ErrBookNotFound):
		lm.log.Debug("remove book refused", "isbn", isbn, "reason", err)
	}
	return err
}

func (lm *LibraryManager) GetBook(isbn string) (Book, bool) { return lm.catalog.Book(isbn) }
func (lm *LibraryManager) ListBooks() []Book                { return lm.catalog.ListBooks() }
func (lm *LibraryManager) ListAvailable() []Book            { return lm.catalog.ListAvailable() }

// ------------------ Member helpers ------------------

func (lm *LibraryManager) RegisterMember(name, email, category string) string {
	id := lm.catalog.RegisterMember(name, email, category)
	lm.log.Debug("register member", "id", id, "category", category)
	return id
}

func (lm *LibraryManager) GetMember(id string) (Member, bool) { return lm.catalog.Member(id) }
func (lm *LibraryManager) ListMembers() []Member              { return lm.catalog.ListMembers() }

// ------------------ Circulation ------------------

func (lm *LibraryManager) Issue(memberID, isbn string) Result {
	res := lm.catalog.Issue(memberID, isbn)
	lm.log.Debug("issue", "member", memberID, "isbn", isbn, "status", res.Status.String())
	return res
}

func (lm *LibraryManager) Return(memberID, isbn string) Result {
	res := lm.catalog.Return(memberID, isbn)
	lm.log.Debug("return", "member", memberID, "isbn", isbn, "status", res.Status.String(), "late_days", res.LateDays, "fine", res.Fine)
	return res
}
