package models

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrDuplicateEmail     = &duplicateError{field: "email"}
	ErrDuplicateUsername  = &duplicateError{field: "username"}
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type duplicateError struct {
	field string
}

func (e *duplicateError) Error() string { return e.field + " already exists" }

func (e *duplicateError) Unwrap() error { return ErrDuplicateUser }

// ValidationError lists every rejected input field.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) add(problem string) {
	e.Problems = append(e.Problems, problem)
}

func (e *ValidationError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

func invalid(problems ...string) error {
	return &ValidationError{Problems: problems}
}

// uniqueViolation reports whether err is a unique-constraint failure and, if
// so, the "table.column" or constraint name the driver blamed.
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == "23505" {
			return pqErr.Constraint, true
		}
		return "", false
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return strings.TrimPrefix(liteErr.Error(), "UNIQUE constraint failed: "), true
		}
	}
	return "", false
}

// duplicateUserError maps a users-table unique violation onto the matching
// duplicate error.
func duplicateUserError(err error) error {
	name, ok := uniqueViolation(err)
	if !ok {
		return err
	}
	switch {
	case strings.Contains(name, "email"):
		return ErrDuplicateEmail
	case strings.Contains(name, "username"):
		return ErrDuplicateUsername
	}
	return ErrDuplicateUser
}
