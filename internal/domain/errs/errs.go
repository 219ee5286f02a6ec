// Package errs defines the tagged error type shared by the domain packages.
//
// Callers discriminate failures by Kind using errors.As or KindOf, never by
// comparing message text.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindUnauthenticated
	KindValidation
	KindForbidden
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a domain error carrying an explicit Kind.
type Error struct {
	Kind    Kind
	Entity  string
	ID      int64
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.defaultMessage()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) defaultMessage() string {
	switch e.Kind {
	case KindNotFound:
		if e.Entity != "" && e.ID != 0 {
			return fmt.Sprintf("%s with ID %d not found", e.Entity, e.ID)
		}
		if e.Entity != "" {
			return e.Entity + " not found"
		}
		return "not found"
	case KindUnauthenticated:
		return "authentication required"
	case KindValidation:
		if e.Field != "" {
			return "invalid " + e.Field
		}
		return "invalid input"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "internal error"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel of the same Kind, so that
// errors.Is(err, errs.ErrNotFound) matches any NotFound error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Entity == "" && t.ID == 0 && t.Field == "" && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrConflict        = &Error{Kind: KindConflict}
)

func NotFound(entity string, id int64) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id}
}

func Unauthenticated(message string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: message}
}

func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FieldOf returns the offending field of a validation error, if any.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}
