// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as the
// admission controller to distinguish between different failure
// scenarios without inspecting driver-specific error types: ErrDuplicate
// means a unique key rejected the write (for reservations, the active
// (visit_date, national_id) key), ErrConflict any other integrity
// violation.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update violates a unique
// constraint.
var ErrDuplicate = errors.New("duplicate key")

// ErrConflict is returned when a write violates any other integrity
// constraint (check, foreign key, not null).
var ErrConflict = errors.New("conflict")
