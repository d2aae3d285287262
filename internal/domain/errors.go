package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("resource not found")
	ErrQueueUnavailable = errors.New("execution queue unavailable")
	ErrConflict         = errors.New("storage version conflict")
	ErrClosed           = errors.New("storage closed")
	ErrInvalidInput     = errors.New("invalid input")
)

// ValidationError names the specific field or association that failed
// validation. It is surfaced to the caller and never retried.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// VersionMismatchError reports a lost compare-and-swap race on a storage
// key. Callers retry the whole read-modify-write, bounded.
type VersionMismatchError struct {
	Key      string
	Expected int64
	Actual   int64
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("version mismatch for key %s: expected %d, got %d", e.Key, e.Expected, e.Actual)
}

func (e *VersionMismatchError) Unwrap() error {
	return ErrConflict
}

func NewVersionMismatchError(key string, expected, actual int64) *VersionMismatchError {
	return &VersionMismatchError{Key: key, Expected: expected, Actual: actual}
}

// GraphCycleError is a programming-invariant violation: workflow edges
// handed to the retry planner must form a DAG. It is never user-recoverable.
type GraphCycleError struct {
	From string
	To   string
}

func (e *GraphCycleError) Error() string {
	return fmt.Sprintf("workflow edges contain a cycle: edge %s -> %s closes a loop", e.From, e.To)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsQueueUnavailable(err error) bool {
	return errors.Is(err, ErrQueueUnavailable)
}

func IsGraphCycle(err error) bool {
	var ce *GraphCycleError
	return errors.As(err, &ce)
}
