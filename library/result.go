package library

import "errors"

var (
	// ErrBookNotFound is returned when a catalog number is not in the catalog.
	ErrBookNotFound = errors.New("book not found")
	// ErrCopiesOnLoan is returned when removing a book with copies lent out.
	ErrCopiesOnLoan = errors.New("some copies are currently on loan")
)

// Status classifies the outcome of a lending operation.
type Status int

const (
	StatusOK Status = iota
	StatusNoSuchMember
	StatusBookNotFound
	StatusAlreadyBorrowed
	StatusLimitReached
	StatusNoneAvailable
	StatusNotBorrowed
)

var statusNames = map[Status]string{
	StatusOK:              "ok",
	StatusNoSuchMember:    "no such member",
	StatusBookNotFound:    "book not found",
	StatusAlreadyBorrowed: "already borrowed",
	StatusLimitReached:    "limit reached",
	StatusNoneAvailable:   "none available",
	StatusNotBorrowed:     "not borrowed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Result is what Issue and Return report back. Detail is the operator
// facing message; the numeric fields are only set where they apply.
type Result struct {
	Status Status `json:"status"`
	Detail string `json:"detail"`

	Limit    int     `json:"limit,omitempty"`
	LateDays int64   `json:"late_days,omitempty"`
	Fine     float64 `json:"fine,omitempty"`
}

// OK reports whether the operation went through.
func (r Result) OK() bool { return r.Status == StatusOK }

func (r Result) String() string { return r.Detail }
