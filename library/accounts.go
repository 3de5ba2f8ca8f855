package library

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// AccountStore owns the accounts file: one id,name,password,role record per line.
// Every method is serialized by a single lock.
type AccountStore struct {
	mu       sync.Mutex
	path     string
	log      *slog.Logger
	accounts map[int]Account
	nextID   int
	// the file does not end in a newline, so the next append must add one
	needsNewline bool
}

// NewAccountStore loads the accounts file at path. A file that cannot be opened
// is fatal, as is a duplicate id. Malformed lines are logged and skipped.
func NewAccountStore(path string, opts ...Option) (*AccountStore, error) {
	cfg := newSettings(opts)
	s := &AccountStore{
		path:     path,
		log:      cfg.logger.With("store", "accounts", "path", path),
		accounts: make(map[int]Account),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *AccountStore) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		return storageErr("open", s.path, err)
	}
	defer f.Close()

	maxID := -1
	br := bufio.NewReader(f)
	for lineNo := 1; ; lineNo++ {
		raw, readErr := br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return storageErr("read", s.path, readErr)
		}
		if raw != "" {
			s.needsNewline = !strings.HasSuffix(raw, "\n")
		}
		line := strings.TrimRight(raw, "\r\n")
		if strings.TrimSpace(line) != "" {
			a, err := decodeAccount(line)
			if err != nil {
				s.log.Warn("skipping malformed account record",
					"err", &MalformedRecordError{Path: s.path, Line: lineNo, Reason: err.Error()})
			} else {
				if _, dup := s.accounts[a.ID]; dup {
					return &DuplicateAccountError{Path: s.path, ID: a.ID}
				}
				s.accounts[a.ID] = a
				maxID = max(maxID, a.ID)
			}
		}
		if readErr == io.EOF {
			break
		}
	}
	s.nextID = max(len(s.accounts), maxID+1)
	s.log.Debug("accounts loaded", "count", len(s.accounts), "next_id", s.nextID)
	return nil
}

// AddAccount assigns the next id, stores the account and appends it to the file.
// Name uniqueness is the caller's concern. On a write failure the account stays
// in memory and a *StorageError is returned.
func (s *AccountStore) AddAccount(name, password, role string) (Account, error) {
	for _, f := range []struct{ name, value string }{{"name", name}, {"password", password}, {"role", role}} {
		if err := validateAccountField(f.name, f.value); err != nil {
			return Account{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// the live count is never behind nextID unless ids were skipped on disk
	id := max(s.nextID, len(s.accounts))
	a := Account{ID: id, Name: name, Password: password, Role: role}
	s.accounts[id] = a
	s.nextID = id + 1

	if err := s.appendLocked(a); err != nil {
		return Account{}, err
	}
	s.log.Info("account added", "id", id, "name", name)
	return a.clone(), nil
}

func (s *AccountStore) appendLocked(a Account) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return storageErr("append", s.path, err)
	}
	line := encodeAccount(a) + "\n"
	if s.needsNewline {
		line = "\n" + line
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return storageErr("append", s.path, err)
	}
	if err := f.Close(); err != nil {
		return storageErr("append", s.path, err)
	}
	s.needsNewline = false
	return nil
}

// UpdateByID replaces the account stored under id and rewrites the whole file.
// The replacement keeps id regardless of a.ID.
func (s *AccountStore) UpdateByID(id int, a Account) error {
	for _, f := range []struct{ name, value string }{{"name", a.Name}, {"password", a.Password}, {"role", a.Role}} {
		if err := validateAccountField(f.name, f.value); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return &AccountNotFoundError{ID: id}
	}
	a = a.clone()
	a.ID = id
	s.accounts[id] = a
	if err := s.saveLocked(); err != nil {
		return err
	}
	s.log.Info("account updated", "id", id)
	return nil
}

func (s *AccountStore) saveLocked() error {
	var sb strings.Builder
	for _, a := range s.sortedLocked() {
		sb.WriteString(encodeAccount(a))
		sb.WriteByte('\n')
	}
	if err := writeFileAtomic(s.path, []byte(sb.String())); err != nil {
		return err
	}
	s.needsNewline = false
	return nil
}

// GetByID returns the account with the given id.
func (s *AccountStore) GetByID(id int) (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	return a.clone(), ok
}

// GetByName returns the account whose name matches exactly. If several share
// the name the lowest id wins.
func (s *AccountStore) GetByName(name string) (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.sortedLocked() {
		if a.Name == name {
			return a.clone(), true
		}
	}
	return Account{}, false
}

// ListAll returns every account ordered by id. An empty slice means no
// accounts are loaded; this call cannot fail.
func (s *AccountStore) ListAll() []Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sortedLocked()
	for i := range out {
		out[i] = out[i].clone()
	}
	return out
}

// Authenticate looks the account up by name and compares the password as plain text.
func (s *AccountStore) Authenticate(name, password string) (Account, error) {
	a, ok := s.GetByName(name)
	if !ok || a.Password != password {
		return Account{}, ErrInvalidCredentials
	}
	return a, nil
}

// Len reports how many accounts are loaded.
func (s *AccountStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

func (s *AccountStore) sortedLocked() []Account {
	out := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b Account) int { return a.ID - b.ID })
	return out
}

// writeFileAtomic replaces path with data through a temp file in the same directory.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return storageErr("write", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return storageErr("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		return storageErr("write", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return storageErr("write", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return storageErr("write", path, errors.Wrap(err, "replace"))
	}
	return nil
}
