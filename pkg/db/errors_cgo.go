//go:build cgo

package db

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

func cgoKind(err error) error {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return nil
	}
	switch se.ExtendedCode {
	case sqlite3.ErrConstraintForeignKey:
		return ErrReferentialIntegrity
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return ErrUniqueness
	case sqlite3.ErrConstraintNotNull, sqlite3.ErrConstraintCheck:
		return ErrValidation
	}
	switch se.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return ErrBusy
	}
	return nil
}
