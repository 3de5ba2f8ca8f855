// Command import_books bulk loads an inventory file from a CSV of
// author,title,serial rows. A header row is detected and skipped.
package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"library-checkout/library"
)

func main() {
	if err := newImportCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newImportCmd() *cobra.Command {
	var (
		booksFile    string
		accountsFile string
	)
	cmd := &cobra.Command{
		Use:          "import_books CSV_FILE",
		Short:        "Load author,title,serial rows into the inventory file",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "open csv")
			}
			defer f.Close()

			// The manager creates a missing accounts file as the CLI does. No
			// loan ledger is opened.
			log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
			mgr, err := library.NewLibraryManager(library.Paths{Books: booksFile, Accounts: accountsFile}, library.WithLogger(log))
			if err != nil {
				return err
			}
			defer mgr.Close()
			return importBooks(f, mgr.Librarian(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&booksFile, "books", "books.txt", "inventory file to write")
	cmd.Flags().StringVar(&accountsFile, "accounts", "users.txt", "accounts file, created with the default librarian if missing")
	return cmd
}

// importBooks adds every well-formed row and reports the rest.
func importBooks(r io.Reader, lib *library.Librarian, out io.Writer) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	successCount, errorCount := 0, 0
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(out, "Row %d: ERROR - %v\n", row, err)
			errorCount++
			continue
		}
		if row == 1 && isHeader(rec) {
			continue
		}

		b, err := parseRow(rec)
		if err != nil {
			fmt.Fprintf(out, "Row %d: ERROR - %v\n", row, err)
			errorCount++
			continue
		}
		fmt.Fprintf(out, "Importing: %s by %s... ", b.Title, b.Author)
		if err := lib.AddBook(b); err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Fprintf(out, "SUCCESS (serial: %d)\n", b.Serial)
		successCount++
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d books\n", successCount)
	fmt.Fprintf(out, "Errors: %d\n", errorCount)

	if successCount > 0 {
		fmt.Fprintln(out, "\nInventory:")
		fmt.Fprintf(out, "%-8s %-50s %-30s\n", "Serial", "Title", "Author")
		fmt.Fprintln(out, strings.Repeat("-", 90))
		for _, b := range lib.ListAllBooks() {
			fmt.Fprintf(out, "%-8d %-50s %-30s\n", b.Serial, truncateString(b.Title, 50), truncateString(b.Author, 30))
		}
	}
	return nil
}

func isHeader(rec []string) bool {
	return len(rec) == 3 && strings.EqualFold(strings.TrimSpace(rec[2]), "serial")
}

func parseRow(rec []string) (library.Book, error) {
	if len(rec) != 3 {
		return library.Book{}, errors.Errorf("want 3 fields (author,title,serial), got %d", len(rec))
	}
	author, title := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])
	if author == "" || title == "" {
		return library.Book{}, errors.New("author and title are required")
	}
	serial, err := strconv.Atoi(strings.TrimSpace(rec[2]))
	if err != nil {
		return library.Book{}, errors.Errorf("invalid serial %q", rec[2])
	}
	return library.Book{Serial: serial, Author: author, Title: title}, nil
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
