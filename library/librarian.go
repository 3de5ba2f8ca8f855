package library

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	// LoanPeriodDays is how long a checkout lasts before fines accrue.
	LoanPeriodDays = 14
	// FinePerOverdueDay is charged for each whole day past the due date.
	FinePerOverdueDay = 0.50
)

// AccountLookup is the part of the AccountStore the Librarian depends on.
type AccountLookup interface {
	GetByID(id int) (Account, bool)
}

// Recorder receives completed circulation events. A failing recorder aborts
// the checkout or return before any rental state changes.
type Recorder interface {
	RecordCheckout(serial, accountID int, checkedOutAt, due time.Time) error
	RecordReturn(serial, accountID int, returnedAt time.Time, fine float64) error
}

// Rental is one active checkout.
type Rental struct {
	Serial    int       `json:"serial"`
	AccountID int       `json:"account_id"`
	Due       time.Time `json:"due"`
}

type rental struct {
	accountID int
	due       time.Time
}

// Librarian owns the book inventory and the active rentals.
//
// The inventory is mirrored to a text file on every add/remove. Rentals and due
// dates live only in memory: a restart keeps the books and forgets who has them.
type Librarian struct {
	mu       sync.Mutex
	path     string
	accounts AccountLookup
	log      *slog.Logger
	now      func() time.Time
	recorder Recorder

	inventory map[int]Book
	// serial -> renter and due date; one map keeps both in lockstep
	rentals map[int]rental
}

// NewLibrarian loads the inventory at path. A missing file yields an empty
// inventory; any other read failure is returned as a *StorageError.
func NewLibrarian(path string, accounts AccountLookup, opts ...Option) (*Librarian, error) {
	if accounts == nil {
		return nil, errors.New("librarian needs an account lookup")
	}
	cfg := newSettings(opts)
	l := &Librarian{
		path:      path,
		accounts:  accounts,
		log:       cfg.logger.With("store", "inventory", "path", path),
		now:       cfg.now,
		recorder:  cfg.recorder,
		inventory: make(map[int]Book),
		rentals:   make(map[int]rental),
	}
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Librarian) load() error {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		l.log.Info("inventory file missing, starting empty")
		return nil
	}
	if err != nil {
		return storageErr("open", l.path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		b, err := decodeBook(line)
		if err != nil {
			l.log.Warn("skipping malformed book record",
				"err", &MalformedRecordError{Path: l.path, Line: lineNo, Reason: err.Error()})
			continue
		}
		l.inventory[b.Serial] = b
	}
	if err := sc.Err(); err != nil {
		return storageErr("read", l.path, err)
	}
	l.log.Debug("inventory loaded", "count", len(l.inventory))
	return nil
}

func (l *Librarian) saveLocked() error {
	var sb strings.Builder
	for _, b := range l.sortedLocked() {
		sb.WriteString(encodeBook(b))
		sb.WriteByte('\n')
	}
	return writeFileAtomic(l.path, []byte(sb.String()))
}

// AddBook inserts b, replacing any book with the same serial, and rewrites the
// inventory file. Rental state for the serial is left alone. An author or
// title containing a line break is rejected before anything changes.
func (l *Librarian) AddBook(b Book) error {
	if err := validateBook(b); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, replaced := l.inventory[b.Serial]
	l.inventory[b.Serial] = b
	if err := l.saveLocked(); err != nil {
		return err
	}
	l.log.Info("book added", "serial", b.Serial, "title", b.Title, "replaced", replaced)
	return nil
}

// RemoveBook deletes the book unless it is unknown or rented, in which case it
// returns false and changes nothing.
func (l *Librarian) RemoveBook(serial int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.inventory[serial]; !ok {
		return false, nil
	}
	if _, rented := l.rentals[serial]; rented {
		return false, nil
	}
	delete(l.inventory, serial)
	if err := l.saveLocked(); err != nil {
		return false, err
	}
	l.log.Info("book removed", "serial", serial)
	return true, nil
}

// GetBook returns the book with the given serial.
func (l *Librarian) GetBook(serial int) (Book, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.inventory[serial]
	return b, ok
}

// ListAllBooks returns a copy of the inventory ordered by serial.
func (l *Librarian) ListAllBooks() []Book {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sortedLocked()
}

// SearchByTitle matches fragment case-insensitively anywhere in the title.
// An empty fragment matches every book.
func (l *Librarian) SearchByTitle(fragment string) []Book {
	return l.search(fragment, func(b Book) string { return b.Title })
}

// SearchByAuthor matches fragment case-insensitively anywhere in the author.
func (l *Librarian) SearchByAuthor(fragment string) []Book {
	return l.search(fragment, func(b Book) string { return b.Author })
}

func (l *Librarian) search(fragment string, field func(Book) string) []Book {
	f := strings.ToLower(fragment)
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []Book{}
	for _, b := range l.sortedLocked() {
		if strings.Contains(strings.ToLower(field(b)), f) {
			out = append(out, b)
		}
	}
	return out
}

// CheckoutBook rents serial to accountID and returns the due date, today plus
// LoanPeriodDays. Checks run in order: book exists, book not rented, account exists.
func (l *Librarian) CheckoutBook(serial, accountID int) (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.inventory[serial]; !ok {
		return time.Time{}, &BookNotFoundError{Serial: serial}
	}
	if _, rented := l.rentals[serial]; rented {
		return time.Time{}, &BookAlreadyRentedError{Serial: serial}
	}
	if _, ok := l.accounts.GetByID(accountID); !ok {
		return time.Time{}, &AccountNotFoundError{ID: accountID}
	}

	now := l.now()
	due := dateOf(now).AddDate(0, 0, LoanPeriodDays)
	if l.recorder != nil {
		if err := l.recorder.RecordCheckout(serial, accountID, now, due); err != nil {
			return time.Time{}, errors.Wrap(err, "record checkout")
		}
	}
	l.rentals[serial] = rental{accountID: accountID, due: due}
	l.log.Info("book checked out", "serial", serial, "account", accountID, "due", due.Format(time.DateOnly))
	return due, nil
}

// ReturnBook ends the rental of serial by accountID and returns the fine:
// FinePerOverdueDay for every whole day past the due date, zero otherwise.
func (l *Librarian) ReturnBook(serial, accountID int) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.inventory[serial]; !ok {
		return 0, &BookNotFoundError{Serial: serial}
	}
	r, rented := l.rentals[serial]
	if !rented {
		return 0, &NotRentedError{Serial: serial}
	}
	if r.accountID != accountID {
		return 0, &NotRentedByAccountError{Serial: serial, Renter: r.accountID, Attempted: accountID}
	}

	now := l.now()
	fine := fineFor(r.due, dateOf(now))
	if l.recorder != nil {
		if err := l.recorder.RecordReturn(serial, accountID, now, fine); err != nil {
			return 0, errors.Wrap(err, "record return")
		}
	}
	delete(l.rentals, serial)
	l.log.Info("book returned", "serial", serial, "account", accountID, "fine", fine)
	return fine, nil
}

// IsRented reports whether serial has an active rental.
func (l *Librarian) IsRented(serial int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.rentals[serial]
	return ok
}

// Renter returns the account holding serial.
func (l *Librarian) Renter(serial int) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rentals[serial]
	return r.accountID, ok
}

// DueDate returns when serial is due back.
func (l *Librarian) DueDate(serial int) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rentals[serial]
	return r.due, ok
}

// Rentals returns the active rentals ordered by serial.
func (l *Librarian) Rentals() []Rental {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rentalsLocked()
}

func (l *Librarian) rentalsLocked() []Rental {
	out := make([]Rental, 0, len(l.rentals))
	for serial, r := range l.rentals {
		out = append(out, Rental{Serial: serial, AccountID: r.accountID, Due: r.due})
	}
	slices.SortFunc(out, func(a, b Rental) int { return a.Serial - b.Serial })
	return out
}

// BooksHeldBy derives the books currently rented by accountID from the rental table.
func (l *Librarian) BooksHeldBy(accountID int) []Book {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []Book{}
	for _, r := range l.rentalsLocked() {
		if r.AccountID == accountID {
			out = append(out, l.inventory[r.Serial])
		}
	}
	return out
}

// ListRenters describes every active rental on one line: the book, the renter
// id and name (bare id when the account is gone) and the due date.
func (l *Librarian) ListRenters() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.rentals))
	for _, r := range l.rentalsLocked() {
		title, author := "(unknown book)", "unknown"
		if b, ok := l.inventory[r.Serial]; ok {
			title, author = b.Title, b.Author
		}
		renter := fmt.Sprint(r.AccountID)
		if a, ok := l.accounts.GetByID(r.AccountID); ok {
			renter = fmt.Sprintf("%d (%s)", a.ID, a.Name)
		}
		due := "no due date"
		if !r.Due.IsZero() {
			due = "due " + r.Due.Format(time.DateOnly)
		}
		out = append(out, fmt.Sprintf("%d: %q by %s, rented by %s, %s", r.Serial, title, author, renter, due))
	}
	return out
}

func (l *Librarian) sortedLocked() []Book {
	out := make([]Book, 0, len(l.inventory))
	for _, b := range l.inventory {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b Book) int { return a.Serial - b.Serial })
	return out
}

// dateOf takes the calendar day of t in t's own location and returns it as
// midnight UTC of that date, so day arithmetic is free of DST shifts.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fineFor(due, today time.Time) float64 {
	days := int(today.Sub(due).Hours() / 24)
	if days <= 0 {
		return 0
	}
	return float64(days) * FinePerOverdueDay
}
