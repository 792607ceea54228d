package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"library-catalog/library"
)

const menuLine = "Library > choose: 1:add book 2:rm book 3:list all 4:available 5:reg member 6:issue 7:return 8:members 9:save+exit"

// menu is one interactive session over a manager.
type menu struct {
	sc  *bufio.Scanner
	out io.Writer
	mgr *library.LibraryManager
}

// runMenu reads numbered commands from in until 9 or end of input, then
// saves. The menu line is only shown when interactive is set.
func runMenu(in io.Reader, out io.Writer, mgr *library.LibraryManager, interactive bool) error {
	m := &menu{sc: bufio.NewScanner(in), out: out, mgr: mgr}

	for {
		if interactive {
			fmt.Fprintln(out, menuLine)
		}
		if !m.sc.Scan() {
			break
		}

		switch strings.TrimSpace(m.sc.Text()) {
		case "1":
			m.handleAddBook()
		case "2":
			m.handleRemoveBook()
		case "3":
			m.handleListBooks()
		case "4":
			m.handleListAvailable()
		case "5":
			m.handleRegister()
		case "6":
			m.handleIssue()
		case "7":
			m.handleReturn()
		case "8":
			m.handleListMembers()
		case "9":
			return m.save()
		case "":
			continue
		default:
			fmt.Fprintln(out, "Huh? Try one of the numbers.")
		}
	}
	return m.save()
}

func (m *menu) save() error {
	if err := m.mgr.Save(); err != nil {
		fmt.Fprintf(m.out, "Save failed: %v\n", err)
		return err
	}
	fmt.Fprintln(m.out, "All good, saved.")
	return nil
}

// prompt prints label and returns the next trimmed line.
func (m *menu) prompt(label string) (string, bool) {
	fmt.Fprint(m.out, label)
	if !m.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(m.sc.Text()), true
}

// readInt keeps asking until it gets an integer >= least.
func (m *menu) readInt(least int) (int, bool) {
	for m.sc.Scan() {
		v, err := strconv.Atoi(strings.TrimSpace(m.sc.Text()))
		if err == nil && v >= least {
			return v, true
		}
		fmt.Fprintf(m.out, "Please enter a number >= %d: ", least)
	}
	return 0, false
}

func (m *menu) handleAddBook() {
	title, ok := m.prompt("Title? ")
	if !ok {
		return
	}
	author, ok := m.prompt("Author? ")
	if !ok {
		return
	}
	isbn, ok := m.prompt("ISBN? ")
	if !ok {
		return
	}
	fmt.Fprint(m.out, "Copies? ")
	copies, ok := m.readInt(1)
	if !ok {
		return
	}

	if m.mgr.AddOrUpdateBook(isbn, title, author, copies) {
		fmt.Fprintln(m.out, "Book recorded.")
	} else {
		fmt.Fprintln(m.out, "Could not add book. Is the ISBN empty?")
	}
}

func (m *menu) handleRemoveBook() {
	isbn, ok := m.prompt("ISBN to remove: ")
	if !ok {
		return
	}
	err := m.mgr.RemoveBook(isbn)
	switch {
	case err == nil:
		fmt.Fprintln(m.out, "Removed.")
	case errors.Is(err, library.ErrBookNotFound):
		fmt.Fprintf(m.out, "No book with ISBN %s.\n", isbn)
	case errors.Is(err, library.ErrCopiesOnLoan):
		fmt.Fprintf(m.out, "Can't remove: %v\n", err)
	default:
		fmt.Fprintf(m.out, "Error removing book: %v\n", err)
	}
}

func (m *menu) handleListBooks() {
	books := m.mgr.ListBooks()
	if len(books) == 0 {
		fmt.Fprintln(m.out, "No books. The shelves are bare.")
		return
	}
	fmt.Fprintln(m.out, "--- Books ---")
	printBooks(m.out, books)
}

func (m *menu) handleListAvailable() {
	fmt.Fprintln(m.out, "--- Available ---")
	printBooks(m.out, m.mgr.ListAvailable())
}

func (m *menu) handleListMembers() {
	fmt.Fprintln(m.out, "--- Members ---")
	members := m.mgr.ListMembers()
	if len(members) == 0 {
		fmt.Fprintln(m.out, "No members yet.")
		return
	}
	printMembers(m.out, members)
}

func (m *menu) handleRegister() {
	name, ok := m.prompt("Name: ")
	if !ok {
		return
	}
	email, ok := m.prompt("Email (optional): ")
	if !ok {
		return
	}
	category, ok := m.prompt("Member type (student/faculty/other): ")
	if !ok {
		return
	}
	id := m.mgr.RegisterMember(name, email, category)
	fmt.Fprintf(m.out, "Welcome, your member id is %s\n", id)
}

func (m *menu) handleIssue() {
	memberID, isbn, ok := m.promptLoan()
	if !ok {
		return
	}
	fmt.Fprintln(m.out, m.mgr.Issue(memberID, isbn))
}

func (m *menu) handleReturn() {
	memberID, isbn, ok := m.promptLoan()
	if !ok {
		return
	}
	fmt.Fprintln(m.out, m.mgr.Return(memberID, isbn))
}

func (m *menu) promptLoan() (memberID, isbn string, ok bool) {
	if memberID, ok = m.prompt("Member id: "); !ok {
		return "", "", false
	}
	if isbn, ok = m.prompt("ISBN: "); !ok {
		return "", "", false
	}
	return memberID, isbn, true
}

// ------------------ Tables ------------------

func printBooks(w io.Writer, books []library.Book) {
	fmt.Fprintf(w, "%-15s %-30s %-25s %-6s %s\n", "ISBN", "Title", "Author", "Total", "Available")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, b := range books {
		fmt.Fprintf(w, "%-15s %-30s %-25s %-6d %d\n",
			truncateString(b.ISBN, 15),
			truncateString(b.Title, 30),
			truncateString(b.Author, 25),
			b.Total,
			b.Available)
	}
}

func printMembers(w io.Writer, members []library.Member) {
	fmt.Fprintf(w, "%-7s %-25s %-10s %s\n", "ID", "Name", "Type", "Loans")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, mem := range members {
		loans := "None"
		if len(mem.Loans) > 0 {
			loans = strings.Join(mem.LoanISBNs(), ", ")
		}
		fmt.Fprintf(w, "%-7s %-25s %-10s %s\n", mem.ID, truncateString(mem.Name, 25), truncateString(mem.Category, 10), loans)
	}
}

func truncateString(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(r[:maxLength])
	}
	return string(r[:maxLength-3]) + "..."
}
