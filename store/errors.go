package store

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound covers both genuine absence and cross-tenant access: a
	// caller probing another owner's records gets the same answer as for a
	// record that never existed.
	ErrNotFound = errors.New("record not found")

	// ErrTokenExhausted is returned when share-token generation keeps
	// colliding with existing tokens after the bounded retries.
	ErrTokenExhausted = errors.New("share token generation exhausted")
)

// isUniqueViolation reports whether err is a unique-constraint failure from
// the database. The driver message is the authority here; the application
// retry on top of it is only an optimization.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "sqlstate 23505")
}
