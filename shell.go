package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"library-checkout/library"
)

// session is one logged-in shell user.
type session struct {
	*app
	p    *prompter
	out  io.Writer
	user library.Account
}

func (a *app) runShell(in io.Reader, out io.Writer) error {
	p := newPrompter(in, out)
	fmt.Fprintln(out, "Welcome to the Library Management System!")

	for {
		name, ok := p.line("\nUsername (or 'register', 'exit'): ")
		if !ok || name == "exit" {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}
		if name == "register" {
			if !a.registerMember(p, out) {
				fmt.Fprintln(out, "Goodbye!")
				return nil
			}
			continue
		}
		if name == "" {
			fmt.Fprintln(out, "Username cannot be empty.")
			continue
		}
		password, ok := p.password("Password: ")
		if !ok {
			return nil
		}
		user, err := a.mgr.Login(name, password)
		if err != nil {
			fmt.Fprintln(out, "Login failed: invalid username or password.")
			continue
		}

		s := &session{app: a, p: p, out: out, user: user}
		if quit := s.loop(); quit {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}
	}
}

// registerMember is the self-service signup at the login prompt. New accounts
// are always members. It returns false when input ends.
func (a *app) registerMember(p *prompter, out io.Writer) bool {
	name, ok := p.line("Choose a username: ")
	if !ok {
		return false
	}
	password, ok := p.password("Choose a password: ")
	if !ok {
		return false
	}
	acct, err := a.addAccount(accountInput{Name: name, Password: password, Role: library.RoleUser})
	if err != nil {
		fmt.Fprintf(out, "Could not create account: %s\n", describeError(err))
		return true
	}
	fmt.Fprintf(out, "Account created. Your ID is %d. You can now log in as %s.\n", acct.ID, acct.Name)
	return true
}

// loop runs commands until logout (false) or exit/EOF (true).
func (s *session) loop() bool {
	s.help()
	for {
		cmd, ok := s.p.line("\n> ")
		if !ok {
			return true
		}

		switch cmd {
		case "list books":
			s.printBooks(s.out, s.mgr.Librarian().ListAllBooks())
		case "search title":
			s.handleSearch(true)
		case "search author":
			s.handleSearch(false)
		case "sort books":
			s.handleSort()
		case "checkout":
			s.handleCheckout()
		case "return":
			s.handleReturn()
		case "my books":
			s.printBooks(s.out, s.mgr.Librarian().BooksHeldBy(s.user.ID))
		case "my history":
			if err := s.showHistory(); err != nil {
				fmt.Fprintf(s.out, "Error loading history: %s\n", describeError(err))
			}
		case "help":
			s.help()
		case "logout":
			fmt.Fprintf(s.out, "Logged out %s.\n", s.user.Name)
			return false
		case "exit":
			return true
		default:
			if !s.user.IsLibrarian() || !s.librarianCommand(cmd) {
				fmt.Fprintln(s.out, "Unknown command. Type 'help' for the list.")
			}
		}
	}
}

func (s *session) librarianCommand(cmd string) bool {
	switch cmd {
	case "add book":
		s.handleAddBook()
	case "remove book":
		s.handleRemoveBook()
	case "list renters":
		lines := s.mgr.Librarian().ListRenters()
		if len(lines) == 0 {
			fmt.Fprintln(s.out, "No books are checked out.")
		}
		for _, l := range lines {
			fmt.Fprintln(s.out, l)
		}
	case "add account":
		s.handleAddAccount()
	case "list accounts":
		printAccounts(s.out, s.mgr.Accounts().ListAll())
	default:
		return false
	}
	return true
}

func (s *session) help() {
	fmt.Fprintf(s.out, "Logged in as %s (ID %d).\n", s.user.Name, s.user.ID)
	fmt.Fprintln(s.out, "Available commands:")
	fmt.Fprintln(s.out, "  Books: list books, search title, search author, sort books")
	fmt.Fprintln(s.out, "  Circulation: checkout, return, my books, my history")
	if s.user.IsLibrarian() {
		fmt.Fprintln(s.out, "  Librarian: add book, remove book, list renters, add account, list accounts")
	}
	fmt.Fprintln(s.out, "  Session: help, logout, exit")
}

func (s *session) askInt(prompt string) (int, bool) {
	raw, ok := s.p.line(prompt)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		fmt.Fprintf(s.out, "Invalid number: %s\n", raw)
		return 0, false
	}
	return n, true
}

// accountFor asks librarians which account to act for; members act for themselves.
func (s *session) accountFor() (int, bool) {
	if !s.user.IsLibrarian() {
		return s.user.ID, true
	}
	raw, ok := s.p.line(fmt.Sprintf("Account ID (Enter for %d): ", s.user.ID))
	if !ok {
		return 0, false
	}
	if raw == "" {
		return s.user.ID, true
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		fmt.Fprintf(s.out, "Invalid account ID: %s\n", raw)
		return 0, false
	}
	return id, true
}

func (s *session) handleSearch(byTitle bool) {
	q, ok := s.p.line("Query: ")
	if !ok {
		return
	}
	var found []library.Book
	if byTitle {
		found = s.mgr.Librarian().SearchByTitle(q)
	} else {
		found = s.mgr.Librarian().SearchByAuthor(q)
	}
	fmt.Fprintf(s.out, "Found %d book(s) matching '%s':\n", len(found), q)
	s.printBooks(s.out, found)
}

func (s *session) handleSort() {
	fmt.Fprintln(s.out, "1. Title (A-Z)\n2. Author (A-Z)\n3. Serial number (low to high)")
	choice, ok := s.askInt("Enter your choice: ")
	if !ok {
		return
	}
	books := s.mgr.Librarian().ListAllBooks()
	if !library.SortBooks(books, library.SortKey(choice)) {
		fmt.Fprintln(s.out, "Invalid sorting option. No sorting applied.")
		return
	}
	s.printBooks(s.out, books)
}

func (s *session) handleCheckout() {
	serial, ok := s.askInt("Book serial: ")
	if !ok {
		return
	}
	accountID, ok := s.accountFor()
	if !ok {
		return
	}
	due, err := s.mgr.Checkout(serial, accountID)
	if err != nil {
		fmt.Fprintf(s.out, "Error checking out book: %s\n", describeError(err))
		return
	}
	b, _ := s.mgr.Librarian().GetBook(serial)
	fmt.Fprintf(s.out, "Book '%s' checked out to account %d, due %s\n", b.Title, accountID, due.Format("2006-01-02"))
}

func (s *session) handleReturn() {
	serial, ok := s.askInt("Book serial: ")
	if !ok {
		return
	}
	accountID, ok := s.accountFor()
	if !ok {
		return
	}
	fine, err := s.mgr.Return(serial, accountID)
	if err != nil {
		fmt.Fprintf(s.out, "Error returning book: %s\n", describeError(err))
		return
	}
	if fine > 0 {
		fmt.Fprintf(s.out, "Book %d returned late. Fine due: %.2f\n", serial, fine)
		return
	}
	fmt.Fprintf(s.out, "Book %d returned. No fine.\n", serial)
}

func (s *session) handleAddBook() {
	serial, ok := s.askInt("Serial number: ")
	if !ok {
		return
	}
	title, ok := s.p.line("Title: ")
	if !ok {
		return
	}
	author, ok := s.p.line("Author: ")
	if !ok {
		return
	}
	if _, exists := s.mgr.Librarian().GetBook(serial); exists {
		fmt.Fprintf(s.out, "Replacing existing book %d.\n", serial)
	}
	if err := s.addBook(bookInput{Serial: serial, Author: author, Title: title}); err != nil {
		fmt.Fprintf(s.out, "Error adding book: %s\n", describeError(err))
		return
	}
	fmt.Fprintf(s.out, "Added book %d.\n", serial)
}

func (s *session) handleRemoveBook() {
	serial, ok := s.askInt("Book serial: ")
	if !ok {
		return
	}
	removed, err := s.mgr.Librarian().RemoveBook(serial)
	switch {
	case err != nil:
		fmt.Fprintf(s.out, "Error removing book: %s\n", describeError(err))
	case !removed:
		fmt.Fprintf(s.out, "Book %d was not removed: unknown or checked out.\n", serial)
	default:
		fmt.Fprintf(s.out, "Removed book %d.\n", serial)
	}
}

func (s *session) handleAddAccount() {
	name, ok := s.p.line("Name: ")
	if !ok {
		return
	}
	password, ok := s.p.password(fmt.Sprintf("Enter password for %s: ", name))
	if !ok {
		return
	}
	role, ok := s.p.line("Role (user/librarian): ")
	if !ok {
		return
	}
	acct, err := s.addAccount(accountInput{Name: name, Password: password, Role: strings.ToLower(role)})
	if err != nil {
		fmt.Fprintf(s.out, "Error: %s\n", describeError(err))
		return
	}
	fmt.Fprintf(s.out, "Added account '%s' with ID %d\n", acct.Name, acct.ID)
}

func (s *session) showHistory() error {
	loans, err := s.mgr.LoanHistory(s.user.ID)
	if err != nil {
		return err
	}
	return s.printLoans(s.out, s.user.ID, loans)
}
