package service

import "fmt"

// Typed failure taxonomy. Callers match with errors.As instead of
// comparing error strings; handlers translate each type to an HTTP
// status and error code.

// ValidationError marks malformed or logically inconsistent input.
// Nothing is applied when it is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError marks a request that would violate a hard invariant:
// capacity exceeded, booking already assigned, guide unavailable, or a
// stale concurrency token.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func conflictf(format string, args ...any) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError marks a missing booking/guide/run/assignment.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func notFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}
