package main

import (
	"io"
	"log/slog"
	"os"

	"library-checkout/library"
)

const (
	defaultBooksFile    = "books.txt"
	defaultAccountsFile = "users.txt"
	defaultHistoryDB    = "library.db"
)

// config holds the backing file locations. Flags override the environment.
type config struct {
	BooksFile    string
	AccountsFile string
	HistoryDB    string
	NoHistory    bool
	Verbose      bool
}

func loadConfig() config {
	return config{
		BooksFile:    getenv("LIBRARY_BOOKS_FILE", defaultBooksFile),
		AccountsFile: getenv("LIBRARY_ACCOUNTS_FILE", defaultAccountsFile),
		HistoryDB:    getenv("LIBRARY_HISTORY_DB", defaultHistoryDB),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func (c config) paths() library.Paths {
	p := library.Paths{Books: c.BooksFile, Accounts: c.AccountsFile}
	if !c.NoHistory {
		p.History = c.HistoryDB
	}
	return p
}

func (c config) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if c.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
