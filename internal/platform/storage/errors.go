// Package storage holds the error vocabulary shared by the Postgres repositories.
package storage

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when an insert collides with an existing primary key.
	ErrConflict = errors.New("storage: conflict")
	// ErrStale is returned by compare-and-set updates when the row exists but no longer holds the expected value.
	ErrStale = errors.New("storage: stale")
)

const uniqueViolation = "23505"

// StorageError wraps a failure of the backing store. Op names the repository method.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Wrap returns nil for a nil err and a *StorageError otherwise.
// Unique violations are translated to ErrConflict so callers can match them with errors.Is.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsUniqueViolation(err) {
		return &StorageError{Op: op, Err: fmt.Errorf("%w: %v", ErrConflict, err)}
	}
	return &StorageError{Op: op, Err: err}
}

// IsUniqueViolation reports whether err is a Postgres unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// IsStorageError reports whether err carries a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
