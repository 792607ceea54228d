package library

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const msPerDay = int64(24 * time.Hour / time.Millisecond)

// Catalog owns every book and member record along with the counter used
// to mint member ids. All mutation goes through its methods.
//
// A Catalog is not safe for concurrent use.
type Catalog struct {
	books   map[string]*Book
	members map[string]*Member
	lastID  int
	now     func() time.Time
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithClock replaces time.Now as the source of loan and return times.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

// NewCatalog returns an empty catalog.
func NewCatalog(opts ...Option) *Catalog {
	c := &Catalog{
		books:   make(map[string]*Book),
		members: make(map[string]*Member),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ------------------ Books ------------------

// AddOrUpdateBook records copies of a book. An existing catalog number only
// gains copies; its title and author are left as they were. It reports
// false, without touching anything, for an empty catalog number or a copy
// count below one.
func (c *Catalog) AddOrUpdateBook(isbn, title, author string, copies int) bool {
	if isbn == "" || copies < 1 {
		return false
	}
	if b, ok := c.books[isbn]; ok {
		b.Total += copies
		b.Available += copies
		return true
	}
	c.books[isbn] = &Book{ISBN: isbn, Title: title, Author: author, Total: copies, Available: copies}
	return true
}

// RemoveBook deletes a book that has no copies out on loan.
func (c *Catalog) RemoveBook(isbn string) error {
	b, ok := c.books[isbn]
	if !ok {
		return fmt.Errorf("%w: %s", ErrBookNotFound, isbn)
	}
	if b.Available != b.Total {
		return fmt.Errorf("%w: %d of %d out", ErrCopiesOnLoan, b.OnLoan(), b.Total)
	}
	delete(c.books, isbn)
	return nil
}

// Book returns a copy of the record for isbn.
func (c *Catalog) Book(isbn string) (Book, bool) {
	b, ok := c.books[isbn]
	if !ok {
		return Book{}, false
	}
	return *b, true
}

// ListBooks returns every book ordered by catalog number.
func (c *Catalog) ListBooks() []Book {
	return c.filterBooks(func(Book) bool { return true })
}

// ListAvailable returns the books with at least one copy on the shelf.
func (c *Catalog) ListAvailable() []Book {
	return c.filterBooks(func(b Book) bool { return b.Available > 0 })
}

func (c *Catalog) filterBooks(keep func(Book) bool) []Book {
	books := make([]Book, 0, len(c.books))
	for _, b := range c.books {
		if keep(*b) {
			books = append(books, *b)
		}
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ISBN < books[j].ISBN })
	return books
}

// ------------------ Members ------------------

// RegisterMember stores a new member and returns the id minted for them.
func (c *Catalog) RegisterMember(name, email, category string) string {
	c.lastID++
	id := formatMemberID(c.lastID)
	c.members[id] = &Member{
		ID:       id,
		Name:     name,
		Email:    email,
		Category: category,
		Loans:    make(map[string]time.Time),
	}
	return id
}

// Member returns a copy of the record for id.
func (c *Catalog) Member(id string) (Member, bool) {
	m, ok := c.members[id]
	if !ok {
		return Member{}, false
	}
	return m.clone(), true
}

// ListMembers returns every member ordered by id.
func (c *Catalog) ListMembers() []Member {
	members := make([]Member, 0, len(c.members))
	for _, m := range c.members {
		members = append(members, m.clone())
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members
}

func formatMemberID(n int) string {
	return fmt.Sprintf("%s%03d", memberIDPrefix, n)
}

// parseMemberID extracts the numeric suffix of an id minted by
// formatMemberID.
func parseMemberID(id string) (int, bool) {
	if !strings.HasPrefix(id, memberIDPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(id[len(memberIDPrefix):])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ------------------ Circulation ------------------

// Issue lends one copy of isbn to memberID. The checks run in a fixed
// order: member, book, existing loan of the same book, loan limit, stock.
func (c *Catalog) Issue(memberID, isbn string) Result {
	m, ok := c.members[memberID]
	if !ok {
		return Result{Status: StatusNoSuchMember, Detail: "No such member."}
	}
	b, ok := c.books[isbn]
	if !ok {
		return Result{Status: StatusBookNotFound, Detail: "Book not found."}
	}
	if _, held := m.Loans[isbn]; held {
		return Result{Status: StatusAlreadyBorrowed, Detail: "This member already has a copy of that book."}
	}
	limit := m.LoanLimit()
	if len(m.Loans) >= limit {
		return Result{
			Status: StatusLimitReached,
			Limit:  limit,
			Detail: fmt.Sprintf("Loan limit reached (%d). Return something first.", limit),
		}
	}
	if b.Available <= 0 {
		return Result{Status: StatusNoneAvailable, Detail: "Sorry, none available right now."}
	}

	b.Available--
	m.Loans[isbn] = c.now()
	return Result{
		Status: StatusOK,
		Limit:  limit,
		Detail: fmt.Sprintf("Issued. Remember to bring it back within %d days.", LoanPeriodDays),
	}
}

// Return takes a copy back from memberID and computes the fine owed.
// Elapsed time is measured from the issue time to the current clock
// reading, so the same loan returned later costs more.
func (c *Catalog) Return(memberID, isbn string) Result {
	m, ok := c.members[memberID]
	if !ok {
		return Result{Status: StatusNoSuchMember, Detail: "Member unknown."}
	}
	b, ok := c.books[isbn]
	if !ok {
		return Result{Status: StatusBookNotFound, Detail: "That ISBN is not in our system."}
	}
	issuedAt, ok := m.Loans[isbn]
	if !ok {
		return Result{Status: StatusNotBorrowed, Detail: "This member didn't borrow that book."}
	}

	lateDays, fine := Fine(issuedAt, c.now())

	delete(m.Loans, isbn)
	if b.Available < b.Total {
		b.Available++
	}

	if lateDays > 0 {
		return Result{
			Status:   StatusOK,
			LateDays: lateDays,
			Fine:     fine,
			Detail:   fmt.Sprintf("Returned. Late by %d day(s). Fine: %.2f", lateDays, fine),
		}
	}
	return Result{Status: StatusOK, Detail: "Returned on time. Thanks!"}
}

// Fine reports the whole days past the loan period and the amount owed
// for a copy issued at issuedAt and returned at returnedAt.
func Fine(issuedAt, returnedAt time.Time) (lateDays int64, fine float64) {
	elapsed := returnedAt.Sub(issuedAt).Milliseconds() / msPerDay
	late := elapsed - LoanPeriodDays
	if late <= 0 {
		return 0, 0
	}
	return late, float64(late) * FinePerDay
}

// ------------------ Snapshots ------------------

// Snapshot copies the full state out of the catalog.
func (c *Catalog) Snapshot() *Snapshot {
	return &Snapshot{Books: c.ListBooks(), Members: c.ListMembers()}
}

// RestoreReport counts the repairs Restore made to an inconsistent
// snapshot.
type RestoreReport struct {
	// DroppedLoans were held against books missing from the snapshot.
	DroppedLoans int
	// ReconciledBooks had copy counts that disagreed with their holders.
	ReconciledBooks int
}

// Restore replaces the catalog state with s and moves the id counter past
// the highest id seen. Loans naming books that are not in s are dropped.
// Member loans are taken as the record of what is lent out: every book's
// available count is set to total minus its holders, and total is raised
// when there are more holders than copies.
func (c *Catalog) Restore(s *Snapshot) RestoreReport {
	c.books = make(map[string]*Book, len(s.Books))
	c.members = make(map[string]*Member, len(s.Members))
	c.lastID = 0

	for _, b := range s.Books {
		if b.ISBN == "" {
			continue
		}
		c.books[b.ISBN] = &b
	}

	var report RestoreReport
	holders := make(map[string]int)
	for _, m := range s.Members {
		if m.ID == "" {
			continue
		}
		m := m.clone()
		for isbn := range m.Loans {
			if _, ok := c.books[isbn]; !ok {
				delete(m.Loans, isbn)
				report.DroppedLoans++
				continue
			}
			holders[isbn]++
		}
		c.members[m.ID] = &m
		if n, ok := parseMemberID(m.ID); ok && n > c.lastID {
			c.lastID = n
		}
	}

	for isbn, b := range c.books {
		total := max(b.Total, holders[isbn])
		available := total - holders[isbn]
		if total != b.Total || available != b.Available {
			report.ReconciledBooks++
			b.Total, b.Available = total, available
		}
	}
	return report
}
