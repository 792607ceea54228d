package library

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	// LoanPeriodDays is how long a copy may be kept before fines accrue.
	LoanPeriodDays = 14
	// FinePerDay is charged for every whole day past the loan period.
	FinePerDay = 1.0

	defaultLoanLimit = 3
	facultyLoanLimit = 10

	memberIDPrefix = "MB"
)

// Book is one catalog entry. Copies are tracked as a total owned and the
// subset currently on the shelf.
type Book struct {
	ISBN      string `json:"isbn"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Total     int    `json:"total"`
	Available int    `json:"available"`
}

// OnLoan is the number of copies currently lent out.
func (b Book) OnLoan() int { return b.Total - b.Available }

func (b Book) String() string {
	return fmt.Sprintf("%s | %s | %s | total=%d avail=%d", b.ISBN, b.Title, b.Author, b.Total, b.Available)
}

// Member represents a registered library member and the loans they hold,
// keyed by catalog number.
type Member struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	Email    string               `json:"email,omitempty"`
	Category string               `json:"category"`
	Loans    map[string]time.Time `json:"loans"`
}

// LoanLimit is 10 for faculty (any letter case) and 3 for everyone else.
func (m Member) LoanLimit() int {
	if strings.EqualFold(m.Category, "faculty") {
		return facultyLoanLimit
	}
	return defaultLoanLimit
}

// LoanISBNs returns the catalog numbers the member holds, sorted.
func (m Member) LoanISBNs() []string {
	isbns := make([]string, 0, len(m.Loans))
	for isbn := range m.Loans {
		isbns = append(isbns, isbn)
	}
	sort.Strings(isbns)
	return isbns
}

func (m Member) String() string {
	return fmt.Sprintf("%s | %s | %s | loans=[%s]", m.ID, m.Name, m.Category, strings.Join(m.LoanISBNs(), ", "))
}

func (m Member) clone() Member {
	c := m
	c.Loans = make(map[string]time.Time, len(m.Loans))
	for isbn, at := range m.Loans {
		c.Loans[isbn] = at
	}
	return c
}

// Snapshot is the complete catalog state handed to and from a Store.
type Snapshot struct {
	Books   []Book   `json:"books"`
	Members []Member `json:"members"`
}
