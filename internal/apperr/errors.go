// Package apperr defines the error taxonomy shared by the engine and its surfaces.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrSyntax   = errors.New("syntax error")
	ErrIO       = errors.New("storage failure")
	ErrInvalid  = errors.New("invalid argument")
)

// SyntaxError reports a malformed query clause. It matches ErrSyntax.
type SyntaxError struct {
	Clause string
	Reason string
}

func (e *SyntaxError) Error() string {
	if e.Clause == "" {
		return fmt.Sprintf("syntax error: %s", e.Reason)
	}
	return fmt.Sprintf("syntax error in %q: %s", e.Clause, e.Reason)
}

// Is reports whether target is ErrSyntax.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}

// Syntax builds a *SyntaxError.
func Syntax(clause, format string, args ...any) error {
	return &SyntaxError{Clause: clause, Reason: fmt.Sprintf(format, args...)}
}

// IO marks err as a storage failure while keeping it inspectable.
func IO(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}

// Invalid returns an ErrInvalid wrapping a description of the bad input.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
