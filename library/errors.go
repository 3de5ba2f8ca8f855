package library

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidCredentials is returned by AccountStore.Authenticate when the name
// is unknown or the password does not match.
var ErrInvalidCredentials = errors.New("invalid name or password")

// BookNotFoundError reports a serial number that is not in the inventory.
type BookNotFoundError struct {
	Serial int
}

func (e *BookNotFoundError) Error() string {
	return fmt.Sprintf("book not found: serial=%d", e.Serial)
}

// BookAlreadyRentedError reports a checkout of a book that is already out.
type BookAlreadyRentedError struct {
	Serial int
}

func (e *BookAlreadyRentedError) Error() string {
	return fmt.Sprintf("book already rented: serial=%d", e.Serial)
}

// NotRentedError reports a return of a book with no active rental.
type NotRentedError struct {
	Serial int
}

func (e *NotRentedError) Error() string {
	return fmt.Sprintf("book is not rented: serial=%d", e.Serial)
}

// NotRentedByAccountError reports a return attempted by someone other than the renter.
type NotRentedByAccountError struct {
	Serial    int
	Renter    int
	Attempted int
}

func (e *NotRentedByAccountError) Error() string {
	return fmt.Sprintf("book serial=%d is rented by account %d, not by account %d", e.Serial, e.Renter, e.Attempted)
}

// AccountNotFoundError reports an account id unknown to the AccountStore.
type AccountNotFoundError struct {
	ID int
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("account not found: id=%d", e.ID)
}

// DuplicateAccountError is a load-time consistency failure: two records share an id.
type DuplicateAccountError struct {
	Path string
	ID   int
}

func (e *DuplicateAccountError) Error() string {
	return fmt.Sprintf("%s: duplicate account id %d", e.Path, e.ID)
}

// MalformedRecordError describes a corrupt line in a backing file. Loaders log
// and skip these; they never abort a load.
type MalformedRecordError struct {
	Path   string
	Line   int
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("%s:%d: malformed record: %s", e.Path, e.Line, e.Reason)
}

// StorageError wraps an I/O failure on a backing file. When returned from a
// mutating call the in-memory state has already diverged from disk.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op, path string, err error) error {
	return &StorageError{Op: op, Path: path, Err: errors.WithStack(err)}
}
