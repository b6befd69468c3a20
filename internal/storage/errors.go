package storage

import (
	"database/sql"
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateName    = errors.New("name already exists")
	ErrInUse            = errors.New("still referenced by an expense")
	ErrUnknownReference = errors.New("referenced category or payment method does not exist")
	ErrVersionConflict  = errors.New("expense was changed concurrently")
)

func isUniqueViolation(err error) bool {
	return isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE, "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, "FOREIGN KEY constraint failed")
}

// isConstraint matches the extended result code, falling back to the
// message when only the primary code is reported.
func isConstraint(err error, code int, msg string) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == code {
		return true
	}
	return strings.Contains(err.Error(), msg)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
