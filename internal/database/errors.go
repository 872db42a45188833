package database

import (
	"errors"
	"strings"

	"cobranza-ledger-go/internal/store"

	"github.com/mattn/go-sqlite3"
	moderncsqlite "modernc.org/sqlite"
)

// SQLite primary result codes (low byte of the extended code).
const (
	sqliteBusy       = 5
	sqliteLocked     = 6
	sqliteConstraint = 19
)

// classify maps driver errors onto the store sentinels callers act on. Errors it
// does not recognise are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var mattnErr sqlite3.Error
	if errors.As(err, &mattnErr) {
		switch mattnErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return errors.Join(store.ErrTransactionConflict, err)
		}
		return err
	}

	var moderncErr *moderncsqlite.Error
	if errors.As(err, &moderncErr) {
		switch moderncErr.Code() & 0xff {
		case sqliteBusy, sqliteLocked:
			return errors.Join(store.ErrTransactionConflict, err)
		}
		return err
	}

	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") {
		return errors.Join(store.ErrTransactionConflict, err)
	}
	return err
}

// isUniqueViolation reports whether err is a UNIQUE/PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var mattnErr sqlite3.Error
	if errors.As(err, &mattnErr) {
		return mattnErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			mattnErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var moderncErr *moderncsqlite.Error
	if errors.As(err, &moderncErr) && moderncErr.Code()&0xff == sqliteConstraint {
		return strings.Contains(moderncErr.Error(), "UNIQUE") || strings.Contains(moderncErr.Error(), "PRIMARY KEY")
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
