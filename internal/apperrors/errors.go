// internal/apperrors/errors.go
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine-readable category of a domain failure.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindForbidden        Kind = "forbidden"
	KindInvalidState     Kind = "invalid_state"
	KindConflict         Kind = "conflict"
	KindCapacityExceeded Kind = "capacity_exceeded"
	KindExpired          Kind = "expired"
	KindInvalid          Kind = "invalid"
	KindUnauthorized     Kind = "unauthorized"
	KindInternal         Kind = "internal"
)

// Error carries a Kind plus a human readable message.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return e.Msg
}

// Is matches any *Error of the same kind, so callers can compare against the sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound         = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrForbidden        = &Error{Kind: KindForbidden, Msg: "forbidden"}
	ErrInvalidState     = &Error{Kind: KindInvalidState, Msg: "invalid state"}
	ErrConflict         = &Error{Kind: KindConflict, Msg: "conflict"}
	ErrCapacityExceeded = &Error{Kind: KindCapacityExceeded, Msg: "capacity exceeded"}
	ErrExpired          = &Error{Kind: KindExpired, Msg: "expired"}
	ErrInvalid          = &Error{Kind: KindInvalid, Msg: "invalid input"}
	ErrUnauthorized     = &Error{Kind: KindUnauthorized, Msg: "unauthorized"}
)

// New builds a kinded error with a formatted message.
func New(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// NotFound, Forbidden, etc. are shorthands for New with a fixed kind.
func NotFound(format string, args ...interface{}) error {
	return New(KindNotFound, format, args...)
}

func Forbidden(format string, args ...interface{}) error {
	return New(KindForbidden, format, args...)
}

func InvalidState(format string, args ...interface{}) error {
	return New(KindInvalidState, format, args...)
}

func Conflict(format string, args ...interface{}) error {
	return New(KindConflict, format, args...)
}

func CapacityExceeded(format string, args ...interface{}) error {
	return New(KindCapacityExceeded, format, args...)
}

func Expired(format string, args ...interface{}) error {
	return New(KindExpired, format, args...)
}

func Invalid(format string, args ...interface{}) error {
	return New(KindInvalid, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the message of the first *Error in err's chain.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return "internal server error"
}
