package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"library-checkout/library"
)

type bookInput struct {
	Serial int    `validate:"gte=0"`
	Author string `validate:"required,singleline"`
	Title  string `validate:"required,singleline"`
}

type accountInput struct {
	Name     string `validate:"required,singleline,excludesall=0x2C"`
	Password string `validate:"required,singleline,excludesall=0x2C"`
	Role     string `validate:"required,oneof=user librarian"`
}

// newValidator adds the singleline tag: stored records are one per line.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("singleline", func(fl validator.FieldLevel) bool {
		return !strings.ContainsAny(fl.Field().String(), "\r\n")
	})
	return v
}

func (a *app) addBook(in bookInput) error {
	if err := a.validate.Struct(in); err != nil {
		return err
	}
	return a.mgr.Librarian().AddBook(library.Book{Serial: in.Serial, Author: in.Author, Title: in.Title})
}

func (a *app) addAccount(in accountInput) (library.Account, error) {
	if err := a.validate.Struct(in); err != nil {
		return library.Account{}, err
	}
	return a.mgr.Register(in.Name, in.Password, in.Role)
}

func (a *app) booksCmd() *cobra.Command {
	books := &cobra.Command{Use: "books", Short: "Manage the inventory"}

	var (
		sortBy string
		asJSON bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List every book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all := a.mgr.Librarian().ListAllBooks()
			if sortBy != "" && !library.SortBooks(all, library.ParseSortKey(sortBy)) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Unknown sort key %q, no sorting applied.\n", sortBy)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), all)
			}
			a.printBooks(cmd.OutOrStdout(), all)
			return nil
		},
	}
	list.Flags().StringVar(&sortBy, "sort", "", "order by title, author or serial")
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	var in bookInput
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a book, replacing any book with the same serial",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.addBook(in); err != nil {
				return errors.New(describeError(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added book %d.\n", in.Serial)
			return nil
		},
	}
	add.Flags().IntVar(&in.Serial, "serial", -1, "serial number")
	add.Flags().StringVar(&in.Author, "author", "", "author")
	add.Flags().StringVar(&in.Title, "title", "", "title")

	remove := &cobra.Command{
		Use:   "remove SERIAL",
		Short: "Remove a book that is not checked out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serial, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.Errorf("invalid serial: %s", args[0])
			}
			removed, err := a.mgr.Librarian().RemoveBook(serial)
			if err != nil {
				return errors.New(describeError(err))
			}
			if !removed {
				return errors.Errorf("book %d was not removed: unknown or checked out", serial)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed book %d.\n", serial)
			return nil
		},
	}

	var byTitle, byAuthor string
	search := &cobra.Command{
		Use:   "search",
		Short: "Find books by title or author fragment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var found []library.Book
			if cmd.Flags().Changed("author") {
				found = a.mgr.Librarian().SearchByAuthor(byAuthor)
			} else {
				found = a.mgr.Librarian().SearchByTitle(byTitle)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), found)
			}
			a.printBooks(cmd.OutOrStdout(), found)
			return nil
		},
	}
	search.Flags().StringVar(&byTitle, "title", "", "title fragment")
	search.Flags().StringVar(&byAuthor, "author", "", "author fragment")
	search.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	search.MarkFlagsMutuallyExclusive("title", "author")

	books.AddCommand(list, add, remove, search)
	return books
}

func (a *app) accountsCmd() *cobra.Command {
	accounts := &cobra.Command{Use: "accounts", Short: "Manage accounts"}

	var in accountInput
	add := &cobra.Command{
		Use:   "add",
		Short: "Register an account; the password is prompted for",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			pw, ok := p.password(fmt.Sprintf("Enter password for %s: ", in.Name))
			if !ok {
				return errors.New("no password given")
			}
			in.Password = pw
			acct, err := a.addAccount(in)
			if err != nil {
				return errors.New(describeError(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added account '%s' with ID %d\n", acct.Name, acct.ID)
			return nil
		},
	}
	add.Flags().StringVar(&in.Name, "name", "", "login name")
	add.Flags().StringVar(&in.Role, "role", "user", "user or librarian")

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all := a.mgr.Accounts().ListAll()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), all)
			}
			printAccounts(cmd.OutOrStdout(), all)
			return nil
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	accounts.AddCommand(add, list)
	return accounts
}

func (a *app) historyCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history ACCOUNT_ID",
		Short: "Show recorded loans and fines for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.Errorf("invalid account id: %s", args[0])
			}
			loans, err := a.mgr.LoanHistory(id)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), loans)
			}
			return a.printLoans(cmd.OutOrStdout(), id, loans)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (a *app) printBooks(w io.Writer, books []library.Book) {
	if len(books) == 0 {
		fmt.Fprintln(w, "No books found.")
		return
	}
	fmt.Fprintf(w, "%-8s %-30s %-25s %-20s\n", "Serial", "Title", "Author", "Status")
	fmt.Fprintln(w, strings.Repeat("-", 86))
	for _, b := range books {
		fmt.Fprintln(w, a.mgr.PrettyBook(b))
	}
}

func printAccounts(w io.Writer, accounts []library.Account) {
	if len(accounts) == 0 {
		fmt.Fprintln(w, "No accounts registered.")
		return
	}
	fmt.Fprintf(w, "%-5s %-30s %-12s\n", "ID", "Name", "Role")
	fmt.Fprintln(w, strings.Repeat("-", 50))
	for _, acct := range accounts {
		fmt.Fprintf(w, "%-5d %-30s %-12s\n", acct.ID, truncateString(acct.Name, 30), acct.Role)
	}
}

func (a *app) printLoans(w io.Writer, accountID int, loans []library.LoanRecord) error {
	if len(loans) == 0 {
		fmt.Fprintln(w, "No recorded loans.")
		return nil
	}
	fmt.Fprintf(w, "%-8s %-30s %-12s %-12s %-10s %s\n", "Serial", "Title", "Out", "Due", "Status", "Fine")
	fmt.Fprintln(w, strings.Repeat("-", 86))
	for _, l := range loans {
		title := "(removed)"
		if b, ok := a.mgr.Librarian().GetBook(l.Serial); ok {
			title = b.Title
		}
		fmt.Fprintf(w, "%-8d %-30s %-12s %-12s %-10s %.2f\n",
			l.Serial, truncateString(title, 30),
			l.CheckedOutAt.Format("2006-01-02"), l.Due.Format("2006-01-02"),
			l.Status, l.Fine)
	}
	total, err := a.mgr.TotalFines(accountID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nTotal fines: %.2f\n", total)
	return nil
}
