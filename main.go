package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-checkout/library"
)

// app carries what every command needs. The manager is opened lazily in
// PersistentPreRunE so flags are parsed first.
type app struct {
	cfg      config
	mgr      *library.LibraryManager
	validate *validator.Validate
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: loadConfig(), validate: newValidator()}

	root := &cobra.Command{
		Use:           "library",
		Short:         "Library inventory, accounts and checkouts backed by flat files",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := library.NewLibraryManager(a.cfg.paths(), library.WithLogger(a.cfg.logger(cmd.ErrOrStderr())))
			if err != nil {
				return errors.Wrap(err, "open library")
			}
			a.mgr = mgr
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.mgr != nil {
				return a.mgr.Close()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runShell(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfg.BooksFile, "books", a.cfg.BooksFile, "inventory file (env LIBRARY_BOOKS_FILE)")
	pf.StringVar(&a.cfg.AccountsFile, "accounts", a.cfg.AccountsFile, "accounts file (env LIBRARY_ACCOUNTS_FILE)")
	pf.StringVar(&a.cfg.HistoryDB, "history", a.cfg.HistoryDB, "loan history database (env LIBRARY_HISTORY_DB)")
	pf.BoolVar(&a.cfg.NoHistory, "no-history", false, "do not record loans")
	pf.BoolVarP(&a.cfg.Verbose, "verbose", "v", false, "debug logging on stderr")

	root.AddCommand(
		&cobra.Command{
			Use:   "shell",
			Short: "Interactive session with login (the default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.runShell(cmd.InOrStdin(), cmd.OutOrStdout())
			},
		},
		a.booksCmd(),
		a.accountsCmd(),
		a.historyCmd(),
	)
	return root
}

// prompter reads answers line by line. Passwords are masked when the input is a terminal.
type prompter struct {
	in  io.Reader
	sc  *bufio.Scanner
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: in, sc: bufio.NewScanner(in), out: out}
}

func (p *prompter) line(prompt string) (string, bool) {
	fmt.Fprint(p.out, prompt)
	if !p.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.sc.Text()), true
}

// password securely reads a password with masking
func (p *prompter) password(prompt string) (string, bool) {
	f, ok := p.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return p.line(prompt)
	}
	fmt.Fprint(p.out, prompt)
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(p.out) // Add newline after password input
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(b)), true
}

// describeError turns domain errors into messages for the end user.
func describeError(err error) string {
	var (
		notFound    *library.BookNotFoundError
		rented      *library.BookAlreadyRentedError
		notRented   *library.NotRentedError
		wrongRenter *library.NotRentedByAccountError
		noAccount   *library.AccountNotFoundError
		storage     *library.StorageError
		invalid     validator.ValidationErrors
	)
	switch {
	case errors.As(err, &notFound):
		return fmt.Sprintf("No book with serial %d.", notFound.Serial)
	case errors.As(err, &rented):
		return fmt.Sprintf("Book %d is already checked out.", rented.Serial)
	case errors.As(err, &notRented):
		return fmt.Sprintf("Book %d is not checked out.", notRented.Serial)
	case errors.As(err, &wrongRenter):
		return fmt.Sprintf("Book %d is checked out by account %d, not %d.", wrongRenter.Serial, wrongRenter.Renter, wrongRenter.Attempted)
	case errors.As(err, &noAccount):
		return fmt.Sprintf("No account with id %d.", noAccount.ID)
	case errors.As(err, &invalid):
		fields := make([]string, 0, len(invalid))
		for _, fe := range invalid {
			fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
		}
		return "Invalid input: " + strings.Join(fields, ", ")
	case errors.As(err, &storage):
		return fmt.Sprintf("Storage failure, changes may not be saved: %v", storage)
	}
	return err.Error()
}

func writeJSON(w io.Writer, v any) error {
	data, err := jsoniter.ConfigFastest.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode json")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// truncateString shortens s to maxLength runes, marking the cut with "...".
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
