// Package sqlerr defines the error kinds and propagation policy of §7: every
// error the engine returns wraps one of these sentinels so callers can
// dispatch on kind with errors.Is, the way isSerializationError in
// internal/storage/dolt/transaction.go dispatches on sentinel-wrapped
// database errors rather than inventing a bespoke error-code enum.
package sqlerr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSQL: malformed statement. Reported to caller, no state change.
	ErrInvalidSQL = errors.New("invalid sql")

	// ErrSchemaViolation: duplicate PK, missing FK target, etc. Reported to
	// caller, no state change.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrIntegrity: dangling FK on delete. Fails the current statement and
	// rolls back the surrounding transaction.
	ErrIntegrity = errors.New("integrity error")

	// ErrCompliance: an owned row is orphaned in the default shard at
	// commit time. Fails the whole session transaction.
	ErrCompliance = errors.New("compliance violation")

	// ErrTransientConflict: the transaction lost a race with a concurrent
	// writer. Surfaced to the caller; retry is the caller's responsibility.
	ErrTransientConflict = errors.New("transient conflict")

	// ErrInternal: a broken invariant. Not user-recoverable; the process
	// should abort rather than continue operating on corrupted state.
	ErrInternal = errors.New("internal invariant violation")
)

// kindError wraps a sentinel kind and an optional cause so errors.Is
// succeeds against both.
type kindError struct {
	kind  error
	cause error
	msg   string
}

func (e *kindError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.cause.Error())
	}
	return e.msg
}

func (e *kindError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}

// New wraps kind with a formatted message.
func New(kind error, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap wraps kind around cause, preserving errors.Is for both.
func Wrap(kind, cause error, format string, args ...any) error {
	return &kindError{kind: kind, cause: cause, msg: fmt.Sprintf(format, args...)}
}

// Is reports whether err is (or wraps) kind.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}
