package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-checkout/library"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	dir := t.TempDir()
	cfg := config{
		BooksFile:    filepath.Join(dir, "books.txt"),
		AccountsFile: filepath.Join(dir, "users.txt"),
		HistoryDB:    filepath.Join(dir, "library.db"),
	}
	mgr, err := library.NewLibraryManager(cfg.paths(), library.WithLogger(cfg.logger(&bytes.Buffer{})))
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return &app{cfg: cfg, mgr: mgr, validate: newValidator()}
}

func runScript(t *testing.T, a *app, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, a.runShell(strings.NewReader(strings.Join(lines, "\n")+"\n"), &out))
	return out.String()
}

func TestShellLibrarianCirculation(t *testing.T) {
	a := newTestApp(t)

	out := runScript(t, a,
		"librarian", "admin",
		"add book", "42", "Dune", "Frank Herbert",
		"list books",
		"checkout", "42", "",
		"list renters",
		"my books",
		"return", "42", "",
		"my history",
		"exit",
	)

	assert.Contains(t, out, "Added book 42.")
	assert.Contains(t, out, "Book 'Dune' checked out to account 0, due ")
	assert.Contains(t, out, `42: "Dune" by Frank Herbert, rented by 0 (librarian), due `)
	assert.Contains(t, out, "Book 42 returned. No fine.")
	assert.Contains(t, out, "Total fines: 0.00")
	assert.True(t, strings.HasSuffix(out, "Goodbye!\n"))
	assert.False(t, a.mgr.Librarian().IsRented(42))
}

func TestShellMemberCannotUseLibrarianCommands(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, a.mgr.Librarian().AddBook(library.Book{Serial: 5, Author: "Sun Tzu", Title: "The Art of War"}))
	member, err := a.mgr.Register("reader", "pw", "user")
	require.NoError(t, err)

	out := runScript(t, a,
		"reader", "pw",
		"add book",
		"checkout", "5",
		"logout",
		"exit",
	)

	assert.NotContains(t, out, "Librarian:")
	assert.Contains(t, out, "Unknown command.")
	assert.Contains(t, out, "Logged out reader.")
	renter, ok := a.mgr.Librarian().Renter(5)
	require.True(t, ok)
	assert.Equal(t, member.ID, renter)
}

func TestShellReportsDomainErrors(t *testing.T) {
	a := newTestApp(t)

	out := runScript(t, a,
		"nobody", "secret",
		"librarian", "admin",
		"checkout", "999", "",
		"return", "999", "",
		"add account", "bad,name", "pw", "user",
		"sort books", "9",
	)

	assert.Contains(t, out, "Login failed: invalid username or password.")
	assert.Contains(t, out, "Error checking out book: No book with serial 999.")
	assert.Contains(t, out, "Error returning book: No book with serial 999.")
	assert.Contains(t, out, "Error: Invalid input: name (excludesall)")
	assert.Contains(t, out, "Invalid sorting option.")
	assert.Len(t, a.mgr.Accounts().ListAll(), 1)
}

func TestShellRegisterThenLogin(t *testing.T) {
	a := newTestApp(t)

	out := runScript(t, a,
		"register", "  newbie  ", "pw",
		"register", "newbie", "other",
		"register", "", "pw",
		"register", "blank", "",
		"newbie", "pw",
		"add book",
		"logout",
		"exit",
	)

	assert.Contains(t, out, "Account created. Your ID is 1. You can now log in as newbie.")
	assert.Contains(t, out, `Could not create account: account name "newbie" is already taken`)
	assert.Contains(t, out, "Could not create account: Invalid input: name (required)")
	assert.Contains(t, out, "Could not create account: Invalid input: password (required)")
	assert.Contains(t, out, "Logged in as newbie (ID 1).")
	assert.Contains(t, out, "Unknown command.")

	acct, ok := a.mgr.Accounts().GetByName("newbie")
	require.True(t, ok)
	assert.Equal(t, library.RoleUser, acct.Role)
	assert.Len(t, a.mgr.Accounts().ListAll(), 2)
}

func TestAddBookRejectsLineBreaks(t *testing.T) {
	a := newTestApp(t)

	err := a.addBook(bookInput{Serial: 5, Author: "Ann", Title: "Line one\nLine two"})
	assert.Equal(t, "Invalid input: title (singleline)", describeError(err))
	_, ok := a.mgr.Librarian().GetBook(5)
	assert.False(t, ok)
}

func TestShellHistoryErrorIsReportedOnce(t *testing.T) {
	a := newTestApp(t)
	// closing the manager closes the loan ledger underneath the shell
	require.NoError(t, a.mgr.Close())

	out := runScript(t, a, "librarian", "admin", "my history", "exit")

	assert.Contains(t, out, "Error loading history:")
	assert.NotContains(t, out, "No recorded loans.")
}

func TestTruncateStringCutsRunes(t *testing.T) {
	assert.Equal(t, "Zoë Ad...", truncateString("Zoë Adébáyò", 9))
	assert.Equal(t, "Zoë", truncateString("Zoë", 3))
}

func TestDescribeError(t *testing.T) {
	assert.Equal(t, "Book 3 is checked out by account 1, not 2.",
		describeError(&library.NotRentedByAccountError{Serial: 3, Renter: 1, Attempted: 2}))
	assert.Equal(t, "No account with id 8.", describeError(&library.AccountNotFoundError{ID: 8}))
	assert.Equal(t, "disk on fire", describeError(errors.New("disk on fire")))
	assert.Contains(t, describeError(&library.StorageError{Op: "write", Path: "books.txt", Err: errors.New("EIO")}),
		"Storage failure")
}

func execRoot(t *testing.T, dir, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{
		"--books", filepath.Join(dir, "books.txt"),
		"--accounts", filepath.Join(dir, "users.txt"),
		"--history", filepath.Join(dir, "library.db"),
	}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestBooksCommands(t *testing.T) {
	dir := t.TempDir()

	_, err := execRoot(t, dir, "", "books", "add", "--serial", "2", "--author", "Orwell", "--title", "1984")
	require.NoError(t, err)
	_, err = execRoot(t, dir, "", "books", "add", "--serial", "1", "--author", "Orwell", "--title", "Animal Farm")
	require.NoError(t, err)

	out, err := execRoot(t, dir, "", "books", "list", "--sort", "title", "--json")
	require.NoError(t, err)
	var books []library.Book
	require.NoError(t, jsoniter.ConfigFastest.Unmarshal([]byte(out), &books))
	require.Len(t, books, 2)
	assert.Equal(t, "1984", books[0].Title)
	assert.Equal(t, "Animal Farm", books[1].Title)

	out, err = execRoot(t, dir, "", "books", "search", "--title", "farm")
	require.NoError(t, err)
	assert.Contains(t, out, "Animal Farm")
	assert.NotContains(t, out, "1984")

	_, err = execRoot(t, dir, "", "books", "remove", "2")
	require.NoError(t, err)
	_, err = execRoot(t, dir, "", "books", "remove", "2")
	assert.Error(t, err)
}

func TestBooksAddValidatesInput(t *testing.T) {
	dir := t.TempDir()

	out, err := execRoot(t, dir, "", "books", "add", "--author", "Nobody", "--title", "No Serial")
	require.Error(t, err)
	assert.Contains(t, out, "serial (gte)")
}

func TestAccountsCommands(t *testing.T) {
	dir := t.TempDir()

	out, err := execRoot(t, dir, "hunter2\n", "accounts", "add", "--name", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Added account 'alice' with ID 1")

	_, err = execRoot(t, dir, "pw\n", "accounts", "add", "--name", "bob", "--role", "admin")
	assert.Error(t, err)

	out, err = execRoot(t, dir, "", "accounts", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "librarian")
	assert.Contains(t, out, "alice")
	assert.NotContains(t, out, "bob")
}

func TestHistoryCommandWithoutLoans(t *testing.T) {
	dir := t.TempDir()

	out, err := execRoot(t, dir, "", "history", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "No recorded loans.")

	_, err = execRoot(t, dir, "", "history", "zero")
	assert.Error(t, err)
}
