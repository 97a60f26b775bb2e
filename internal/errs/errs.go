// Package errs defines the error kinds shared by every layer.
//
// Callers wrap one of the sentinels with context using fmt.Errorf and %w, and
// check for a kind with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input or a request that breaks a rule,
	// such as joining the queue twice.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an operation on a missing match or queue entry.
	ErrNotFound = errors.New("not found")

	// ErrPermission marks a non-host attempting a host-only action.
	ErrPermission = errors.New("permission denied")

	// ErrCapacity marks an action blocked by a full roster.
	ErrCapacity = errors.New("roster is full")

	// ErrTransient marks an I/O failure talking to the store or broker.
	ErrTransient = errors.New("transient store error")

	// ErrConflict marks a commit that lost a race: a queue entry it meant to
	// consume was already taken by another writer.
	ErrConflict = errors.New("concurrent modification")
)

// Validation returns an ErrValidation with a formatted message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound returns an ErrNotFound naming the missing record.
func NotFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}

// Permission returns an ErrPermission with a formatted message.
func Permission(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPermission, fmt.Sprintf(format, args...))
}

// Capacity returns an ErrCapacity for the given match.
func Capacity(matchID string, max int) error {
	return fmt.Errorf("%w: match %s already has %d players", ErrCapacity, matchID, max)
}

// Transient wraps an underlying I/O error as ErrTransient.
// A nil err returns nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}
