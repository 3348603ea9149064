// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user holds no link to
// the event a resource belongs to, while ErrConflict signals that an
// operation would break a uniqueness rule or strand a seated guest.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNotRegistered is returned when verified claims match no local user.
// Handlers should translate this into an HTTP 404 response.
var ErrNotRegistered = errors.New("user not registered")

// ErrNotFound is returned when the addressed resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource of an event they are not linked to. Handlers should
// translate this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write collides with existing state, such
// as a duplicate email or a guest that already holds a seat. Handlers
// should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// isUniqueViolation reports whether err is a duplicate-key failure from
// either supported driver (MySQL 1062, SQLite UNIQUE/PRIMARY KEY).
func isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT: // extended codes off
			return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}
