package library

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Loan statuses stored in the ledger.
const (
	LoanOpen      = "open"
	LoanReturned  = "returned"
	LoanAbandoned = "abandoned"
)

// LoanRecord is one row of the loan ledger.
type LoanRecord struct {
	ID           uuid.UUID  `json:"id"`
	Serial       int        `json:"serial"`
	AccountID    int        `json:"account_id"`
	CheckedOutAt time.Time  `json:"checked_out_at"`
	Due          time.Time  `json:"due"`
	ReturnedAt   *time.Time `json:"returned_at,omitempty"`
	Fine         float64    `json:"fine"`
	Status       string     `json:"status"`
}

// History is an append-mostly SQLite ledger of checkouts and returns. It
// implements Recorder. It never feeds rental state back into a Librarian:
// loans left open by an earlier process are marked abandoned when opened.
type History struct {
	db   *sql.DB
	path string
	log  *slog.Logger

	insertStmt *sql.Stmt
	returnStmt *sql.Stmt
}

// NewHistory opens (or creates) the ledger at dbPath and applies migrations.
func NewHistory(dbPath string, opts ...Option) (*History, error) {
	cfg := newSettings(opts)

	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, storageErr("create dir", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, storageErr("open", dbPath, err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, storageErr("migrate", dbPath, err)
	}

	h := &History{db: db, path: dbPath, log: cfg.logger.With("store", "history", "path", dbPath)}
	if err := h.prepareStatements(); err != nil {
		h.Close()
		return nil, storageErr("prepare", dbPath, err)
	}
	if err := h.abandonOpenLoans(); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

// Close releases prepared statements and closes the DB.
func (h *History) Close() error {
	if h.insertStmt != nil {
		h.insertStmt.Close()
	}
	if h.returnStmt != nil {
		h.returnStmt.Close()
	}
	return h.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return errors.Wrap(err, "enable WAL")
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS loans (
            id TEXT PRIMARY KEY,
            serial INTEGER NOT NULL,
            account_id INTEGER NOT NULL,
            checked_out_at DATETIME NOT NULL,
            due_at DATETIME NOT NULL,
            returned_at DATETIME,
            fine REAL NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'open'
        );`,
		`CREATE INDEX IF NOT EXISTS idx_loans_account ON loans(account_id);`,
		`CREATE INDEX IF NOT EXISTS idx_loans_open ON loans(serial) WHERE status = 'open';`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return errors.Wrap(err, "apply migration")
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return errors.Wrap(err, "record schema version")
	}

	return tx.Commit()
}

func (h *History) prepareStatements() error {
	var err error
	if h.insertStmt, err = h.db.Prepare(`INSERT INTO loans(id,serial,account_id,checked_out_at,due_at,status) VALUES(?,?,?,?,?,?)`); err != nil {
		return err
	}
	if h.returnStmt, err = h.db.Prepare(`UPDATE loans SET returned_at=?, fine=?, status=? WHERE serial=? AND account_id=? AND status=?`); err != nil {
		return err
	}
	return nil
}

func (h *History) abandonOpenLoans() error {
	res, err := h.db.Exec(`UPDATE loans SET status=? WHERE status=?`, LoanAbandoned, LoanOpen)
	if err != nil {
		return storageErr("abandon open loans", h.path, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		h.log.Warn("open loans from a previous run marked abandoned", "count", n)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Recorder
// ---------------------------------------------------------------------------

// RecordCheckout opens a ledger row for serial.
func (h *History) RecordCheckout(serial, accountID int, checkedOutAt, due time.Time) error {
	id, err := uuid.NewV7()
	if err != nil {
		return errors.Wrap(err, "generate loan id")
	}
	if _, err := h.insertStmt.Exec(id.String(), serial, accountID, checkedOutAt.UTC(), due.UTC(), LoanOpen); err != nil {
		return storageErr("record checkout", h.path, err)
	}
	return nil
}

// RecordReturn closes the open row for serial held by accountID.
func (h *History) RecordReturn(serial, accountID int, returnedAt time.Time, fine float64) error {
	res, err := h.returnStmt.Exec(returnedAt.UTC(), fine, LoanReturned, serial, accountID, LoanOpen)
	if err != nil {
		return storageErr("record return", h.path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("record return", h.path, err)
	}
	if n == 0 {
		return errors.Errorf("no open loan for serial %d and account %d", serial, accountID)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// ForAccount lists every loan of accountID, oldest first.
func (h *History) ForAccount(accountID int) ([]LoanRecord, error) {
	rows, err := h.db.Query(`SELECT id,serial,account_id,checked_out_at,due_at,returned_at,fine,status
        FROM loans WHERE account_id=? ORDER BY checked_out_at, rowid`, accountID)
	if err != nil {
		return nil, storageErr("query loans", h.path, err)
	}
	defer rows.Close()

	loans := []LoanRecord{}
	for rows.Next() {
		var (
			l        LoanRecord
			id       string
			returned sql.NullTime
		)
		if err := rows.Scan(&id, &l.Serial, &l.AccountID, &l.CheckedOutAt, &l.Due, &returned, &l.Fine, &l.Status); err != nil {
			return nil, storageErr("scan loan", h.path, err)
		}
		if l.ID, err = uuid.Parse(id); err != nil {
			return nil, storageErr("scan loan", h.path, err)
		}
		if returned.Valid {
			t := returned.Time
			l.ReturnedAt = &t
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query loans", h.path, err)
	}
	return loans, nil
}

// TotalFines sums the fines charged to accountID across all returns.
func (h *History) TotalFines(accountID int) (float64, error) {
	var total float64
	err := h.db.QueryRow(`SELECT COALESCE(SUM(fine),0) FROM loans WHERE account_id=?`, accountID).Scan(&total)
	if err != nil {
		return 0, storageErr("sum fines", h.path, err)
	}
	return total, nil
}

var _ Recorder = (*History)(nil)
