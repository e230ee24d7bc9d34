package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors forming the engine's error taxonomy. Every public
// operation fails with exactly one of these, possibly wrapped with context.
var (
	// ErrNotFound indicates an unknown contest alias or user. It is also
	// deliberately returned for private contests the principal may not know
	// exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates an authenticated principal that is not
	// entitled: registration pending or rejected, invalid token, or
	// insufficient role.
	ErrForbidden = errors.New("forbidden")

	// ErrPreconditionFailed indicates the contest has not started yet.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrInvalidInput indicates malformed contest settings such as a start
	// after the finish or a window exceeding the contest length.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageUnavailable indicates an underlying data-access failure.
	// Raw driver errors are always wrapped, never leaked.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrDuplicateEntry indicates an alias collision on contest creation.
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// AccessError describes a denied access decision. Its sentinel is either
// ErrForbidden or, for masked private contests, ErrNotFound.
type AccessError struct {
	// ContestAlias is the contest the decision was made for.
	ContestAlias string

	// Reason is a short machine-readable cause such as "not invited",
	// "not registered", or "invalid token".
	Reason string

	// Sentinel is the taxonomy error this denial maps to.
	Sentinel error
}

// Error implements the error interface for AccessError.
func (e *AccessError) Error() string {
	return fmt.Sprintf("access to contest %q denied: %s", e.ContestAlias, e.Reason)
}

// Unwrap returns the taxonomy sentinel, supporting errors.Is checks.
func (e *AccessError) Unwrap() error { return e.Sentinel }

// NewForbiddenError creates an AccessError that unwraps to ErrForbidden.
func NewForbiddenError(alias, reason string) *AccessError {
	return &AccessError{ContestAlias: alias, Reason: reason, Sentinel: ErrForbidden}
}

// NewNotFoundError creates an AccessError that unwraps to ErrNotFound.
// It is used both for genuinely unknown aliases and to mask the existence
// of private contests, so the two cases are indistinguishable to callers.
func NewNotFoundError(alias string) *AccessError {
	return &AccessError{ContestAlias: alias, Reason: "contest not found", Sentinel: ErrNotFound}
}

// NotStartedError reports that a contest has not started. It carries the
// start instant so clients can render a countdown.
type NotStartedError struct {
	// ContestAlias is the contest that has not started.
	ContestAlias string

	// StartTime is when the contest will open.
	StartTime time.Time
}

// Error implements the error interface for NotStartedError.
func (e *NotStartedError) Error() string {
	return fmt.Sprintf("contest %q has not started, starts at %s", e.ContestAlias, e.StartTime.Format(time.RFC3339))
}

// Unwrap returns ErrPreconditionFailed.
func (e *NotStartedError) Unwrap() error { return ErrPreconditionFailed }

// NewNotStartedError creates a NotStartedError for the given contest.
func NewNotStartedError(alias string, start time.Time) *NotStartedError {
	return &NotStartedError{ContestAlias: alias, StartTime: start}
}

// StorageError wraps a data-access failure with the operation that caused
// it. It unwraps to ErrStorageUnavailable; the raw cause stays available
// through Cause for logging but never drives control flow.
type StorageError struct {
	// Operation is the data-access operation that failed.
	Operation string

	// Cause is the underlying driver error.
	Cause error
}

// Error implements the error interface for StorageError.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: operation=%s, err=%v", e.Operation, e.Cause)
}

// Unwrap returns ErrStorageUnavailable so callers match on the taxonomy,
// not on driver internals.
func (e *StorageError) Unwrap() error { return ErrStorageUnavailable }

// NewStorageError creates a StorageError for the given operation.
func NewStorageError(operation string, cause error) *StorageError {
	return &StorageError{Operation: operation, Cause: cause}
}

// ValidationError collects the input violations found while validating an
// entity. It unwraps to ErrInvalidInput.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Violations contains the individual validation failure messages.
	Violations []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Violations[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Violations)
}

// Unwrap returns ErrInvalidInput.
func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Add appends a violation message.
func (e *ValidationError) Add(msg string) { e.Violations = append(e.Violations, msg) }

// HasViolations reports whether any violation was recorded.
func (e *ValidationError) HasViolations() bool { return len(e.Violations) > 0 }

// NewValidationError creates an empty ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{Entity: entity}
}
