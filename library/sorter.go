package library

import (
	"cmp"
	"slices"
	"strings"
)

// SortKey selects the ordering applied by SortBooks.
type SortKey int

const (
	SortByTitle  SortKey = 1
	SortByAuthor SortKey = 2
	SortBySerial SortKey = 3
)

// ParseSortKey maps "title", "author" or "serial" (any case) to a SortKey.
// Anything else yields 0, which SortBooks rejects.
func ParseSortKey(s string) SortKey {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "title":
		return SortByTitle
	case "author":
		return SortByAuthor
	case "serial", "serial number":
		return SortBySerial
	}
	return 0
}

// SortBooks orders books in place by key. Title and author compare without
// regard to case; serial compares numerically. An unknown key leaves books
// untouched and returns false.
func SortBooks(books []Book, key SortKey) bool {
	var compare func(a, b Book) int
	switch key {
	case SortByTitle:
		compare = func(a, b Book) int { return cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)) }
	case SortByAuthor:
		compare = func(a, b Book) int { return cmp.Compare(strings.ToLower(a.Author), strings.ToLower(b.Author)) }
	case SortBySerial:
		compare = func(a, b Book) int { return cmp.Compare(a.Serial, b.Serial) }
	default:
		return false
	}
	slices.SortStableFunc(books, compare)
	return true
}
