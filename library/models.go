package library

import (
	"slices"
	"strings"
)

// Book is a catalog item. Rental state is not stored here; ask the Librarian.
type Book struct {
	Serial int    `json:"serial"`
	Author string `json:"author"`
	Title  string `json:"title"`
}

// Account roles. RoleLibrarian grants the librarian menu in the shell; any
// other role is a regular member.
const (
	RoleLibrarian = "librarian"
	RoleUser      = "user"
)

// Account represents one registered user.
//
// Books is an in-memory convenience list. It is not persisted and the
// Librarian never updates it; use Librarian.BooksHeldBy for the real view.
type Account struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Password string `json:"-"`
	Role     string `json:"role"`
	Books    []int  `json:"books,omitempty"`
}

// IsLibrarian reports whether the account role is "librarian", ignoring case.
func (a Account) IsLibrarian() bool {
	return strings.EqualFold(strings.TrimSpace(a.Role), RoleLibrarian)
}

// AddBook appends serial to the account's book list.
func (a *Account) AddBook(serial int) {
	a.Books = append(a.Books, serial)
}

// RemoveBook drops the first occurrence of serial and reports whether it was present.
func (a *Account) RemoveBook(serial int) bool {
	i := slices.Index(a.Books, serial)
	if i < 0 {
		return false
	}
	a.Books = slices.Delete(a.Books, i, i+1)
	return true
}

// clone returns a copy that shares no slice memory with a.
func (a Account) clone() Account {
	a.Books = slices.Clone(a.Books)
	return a
}
