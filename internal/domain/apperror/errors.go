// Package apperror classifies failures of quotation operations into the
// kinds callers are expected to handle.
package apperror

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure
type Kind string

const (
	KindNotFound          Kind = "NotFound"
	KindInvalidTransition Kind = "InvalidTransition"
	KindForbidden         Kind = "Forbidden"
	KindValidation        Kind = "ValidationError"
	KindConflict          Kind = "Conflict"
	KindAlreadyConverted  Kind = "AlreadyConverted"
	KindDependency        Kind = "DependencyFailure"
)

// Sentinels for errors.Is checks against a kind
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrAlreadyConverted  = &Error{Kind: KindAlreadyConverted}
	ErrDependency        = &Error{Kind: KindDependency}
)

// Error is a classified operation failure
type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Ref carries an id the caller may need, e.g. the existing invoice id
	Ref string
	Err error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates a classified error
func New(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, or "" if err is not classified
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// NotFound reports a missing quotation, estimate, project or invoice
func NotFound(op, entity, id string) *Error {
	return New(KindNotFound, op, "%s %s not found", entity, id)
}

// Forbidden reports a role or ownership mismatch
func Forbidden(op, format string, args ...interface{}) *Error {
	return New(KindForbidden, op, format, args...)
}

// Validation reports rejected input
func Validation(op, format string, args ...interface{}) *Error {
	return New(KindValidation, op, format, args...)
}
