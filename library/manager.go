package library

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// Default credentials seeded into a newly created accounts file.
const (
	DefaultLibrarianName     = "librarian"
	DefaultLibrarianPassword = "admin"
)

// Paths locates the backing files. An empty History disables the loan ledger.
type Paths struct {
	Books    string
	Accounts string
	History  string
}

// LibraryManager is a thin façade over the stores, keeping CLI code simple.
type LibraryManager struct {
	accounts  *AccountStore
	librarian *Librarian
	history   *History
}

// NewLibraryManager opens every store named in paths. On first run it creates
// the accounts file holding a default librarian account so someone can log in.
func NewLibraryManager(paths Paths, opts ...Option) (*LibraryManager, error) {
	if err := seedAccountsFile(paths.Accounts); err != nil {
		return nil, err
	}
	accounts, err := NewAccountStore(paths.Accounts, opts...)
	if err != nil {
		return nil, err
	}

	lm := &LibraryManager{accounts: accounts}
	if paths.History != "" {
		if lm.history, err = NewHistory(paths.History, opts...); err != nil {
			return nil, err
		}
		opts = append(opts, WithRecorder(lm.history))
	}
	if lm.librarian, err = NewLibrarian(paths.Books, accounts, opts...); err != nil {
		lm.Close()
		return nil, err
	}
	return lm, nil
}

// seedAccountsFile writes a missing accounts file in one atomic step, so a
// failure never leaves an empty file that would skip seeding next time.
func seedAccountsFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return storageErr("stat", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return storageErr("create dir", dir, err)
		}
	}
	seed := Account{ID: 0, Name: DefaultLibrarianName, Password: DefaultLibrarianPassword, Role: RoleLibrarian}
	if err := writeFileAtomic(path, []byte(encodeAccount(seed)+"\n")); err != nil {
		return errors.Wrap(err, "seed librarian account")
	}
	return nil
}

// Close closes the loan ledger, if any. The text stores hold no open handles.
func (lm *LibraryManager) Close() error {
	if lm.history != nil {
		return lm.history.Close()
	}
	return nil
}

func (lm *LibraryManager) Accounts() *AccountStore { return lm.accounts }
func (lm *LibraryManager) Librarian() *Librarian   { return lm.librarian }

// ------------------ Accounts ------------------

// Login authenticates by name and plain-text password.
func (lm *LibraryManager) Login(name, password string) (Account, error) {
	return lm.accounts.Authenticate(name, password)
}

// Register adds an account after checking the name is free.
func (lm *LibraryManager) Register(name, password, role string) (Account, error) {
	if _, taken := lm.accounts.GetByName(name); taken {
		return Account{}, errors.Errorf("account name %q is already taken", name)
	}
	return lm.accounts.AddAccount(name, password, role)
}

// ------------------ Circulation ------------------

func (lm *LibraryManager) Checkout(serial, accountID int) (time.Time, error) {
	return lm.librarian.CheckoutBook(serial, accountID)
}

func (lm *LibraryManager) Return(serial, accountID int) (float64, error) {
	return lm.librarian.ReturnBook(serial, accountID)
}

// LoanHistory returns the ledger rows for accountID; empty when the ledger is disabled.
func (lm *LibraryManager) LoanHistory(accountID int) ([]LoanRecord, error) {
	if lm.history == nil {
		return []LoanRecord{}, nil
	}
	return lm.history.ForAccount(accountID)
}

// TotalFines sums the fines recorded for accountID; zero when the ledger is disabled.
func (lm *LibraryManager) TotalFines(accountID int) (float64, error) {
	if lm.history == nil {
		return 0, nil
	}
	return lm.history.TotalFines(accountID)
}

// ------------------ Utilities ------------------

// PrettyBook formats a book for lists.
func (lm *LibraryManager) PrettyBook(b Book) string {
	status := "in"
	if renter, ok := lm.librarian.Renter(b.Serial); ok {
		status = fmt.Sprintf("out (%d)", renter)
		if a, ok := lm.accounts.GetByID(renter); ok {
			status = fmt.Sprintf("out (%s)", a.Name)
		}
	}
	return fmt.Sprintf("%-8d %-30s %-25s %-20s", b.Serial, truncate(b.Title, 30), truncate(b.Author, 25), status)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
