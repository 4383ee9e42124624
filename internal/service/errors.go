// Package service holds the admission-control core: availability
// calculation, admission of new reservations, their lifecycle and the
// administrative query surface.
package service

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-readable error category.  The HTTP layer maps
// each kind onto a status code; none of them is retried.
type Kind string

const (
	KindInvalidRequest    Kind = "INVALID_REQUEST"
	KindCapacityExceeded  Kind = "CAPACITY_EXCEEDED"
	KindDuplicateBooking  Kind = "DUPLICATE_BOOKING"
	KindFeatureDisabled   Kind = "FEATURE_DISABLED"
	KindNotFound          Kind = "NOT_FOUND"
	KindStorageConflict   Kind = "STORAGE_CONFLICT"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindTooManyRecords    Kind = "TOO_MANY_RECORDS"
)

// Error is a typed business failure.  Err optionally carries the
// lower-level cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes every *Error match the sentinel of its kind, so callers can
// write errors.Is(err, service.ErrCapacityExceeded).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels, one per kind.
var (
	ErrInvalidRequest    = &Error{Kind: KindInvalidRequest}
	ErrCapacityExceeded  = &Error{Kind: KindCapacityExceeded}
	ErrDuplicateBooking  = &Error{Kind: KindDuplicateBooking}
	ErrFeatureDisabled   = &Error{Kind: KindFeatureDisabled}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrStorageConflict   = &Error{Kind: KindStorageConflict}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrTooManyRecords    = &Error{Kind: KindTooManyRecords}
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// err is not a business failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
