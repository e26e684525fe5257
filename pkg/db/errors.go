package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// Error kinds. Every error returned by the store packages matches exactly one of
// these with errors.Is, or none when it is an unexpected storage failure.
var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrReferentialIntegrity = errors.New("referential integrity violation")
	ErrUniqueness           = errors.New("uniqueness violation")
	ErrBusy                 = errors.New("database busy")
	ErrExtensionContract    = errors.New("extension contract violation")
)

// Error carries a kind, the operation that failed and an optional cause.
type Error struct {
	Kind    error
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// E builds an Error of the given kind with a formatted message.
func E(kind error, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Classify maps a driver error onto an error kind. Errors that are already
// classified pass through; unrecognised errors are wrapped with op only.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &Error{Kind: ErrNotFound, Op: op, Err: err}
	}
	if kind := kindOf(err); kind != nil {
		return &Error{Kind: kind, Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsBusy reports whether err means the write lock could not be acquired.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy) || kindOf(err) == ErrBusy
}

func kindOf(err error) error {
	if kind := cgoKind(err); kind != nil {
		return kind
	}

	var pe *sqlite.Error
	if errors.As(err, &pe) {
		switch pe.Code() {
		case sqlitelib.SQLITE_CONSTRAINT_FOREIGNKEY:
			return ErrReferentialIntegrity
		case sqlitelib.SQLITE_CONSTRAINT_UNIQUE, sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return ErrUniqueness
		case sqlitelib.SQLITE_CONSTRAINT_NOTNULL, sqlitelib.SQLITE_CONSTRAINT_CHECK:
			return ErrValidation
		}
		switch pe.Code() & 0xff {
		case sqlitelib.SQLITE_BUSY, sqlitelib.SQLITE_LOCKED:
			return ErrBusy
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ErrReferentialIntegrity
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return ErrUniqueness
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "database table is locked"):
		return ErrBusy
	}
	return nil
}
