// Package repository contains the MySQL data access layer.  Sentinel errors
// defined here let the service and handler layers distinguish missing rows
// and uniqueness violations from infrastructure failures.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed row does not exist.  Handlers
// translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrDuplicateKey is returned when an insert violates a unique key.
var ErrDuplicateKey = errors.New("duplicate key")

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already exists")

// isDuplicate detects MySQL error 1062 (ER_DUP_ENTRY).
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(err.Error(), "1062")
}
