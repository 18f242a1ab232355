package fault

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("resource not found")
	ErrUniqueViolation     = errors.New("unique violation")
	ErrForeignKeyViolation = errors.New("restricted for deletion")
	ErrSerialization       = errors.New("concurrent update detected")
)

type ErrorType int

const (
	// Malformed payload, unknown question, rule violation.
	Validation ErrorType = iota
	// Unknown application, admin, question or file.
	NotFound
	// Operation not allowed in the application's current status.
	InvalidState
	// Concurrent transition race. Retried by the store; only surfaces once retries run out.
	Conflict
	Internal
)

type Fault struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Fault) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work.
func (e *Fault) Unwrap() error {
	return e.Err
}

// String returns a human-readable representation of the error type.
func (t ErrorType) String() string {
	switch t {
	case Validation:
		return "ValidationError"
	case NotFound:
		return "NotFound"
	case InvalidState:
		return "InvalidState"
	case Conflict:
		return "Conflict"
	case Internal:
		return "InternalError"
	default:
		return "UnknownError"
	}
}

func newFault(t ErrorType, msg string, err error) error {
	return &Fault{Type: t, Message: msg, Err: err}
}

// NewValidationError creates a new validation error.
func NewValidationError(msg string, err error) error {
	return newFault(Validation, msg, err)
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(msg string, err error) error {
	return newFault(NotFound, msg, err)
}

// NewInvalidStateError creates a new invalid state error.
func NewInvalidStateError(msg string, err error) error {
	return newFault(InvalidState, msg, err)
}

// NewConflictError creates a new conflict error.
func NewConflictError(msg string, err error) error {
	return newFault(Conflict, msg, err)
}

// NewInternalError creates a new internal server error.
func NewInternalError(msg string, err error) error {
	return newFault(Internal, msg, err)
}

// TypeOf reports the fault type of err. Errors that are not a Fault are Internal,
// except the store's ErrNotFound sentinel.
func TypeOf(err error) ErrorType {
	var f *Fault
	if errors.As(err, &f) {
		return f.Type
	}
	if errors.Is(err, ErrNotFound) {
		return NotFound
	}
	return Internal
}

func IsValidation(err error) bool   { return err != nil && TypeOf(err) == Validation }
func IsNotFound(err error) bool     { return err != nil && TypeOf(err) == NotFound }
func IsInvalidState(err error) bool { return err != nil && TypeOf(err) == InvalidState }
func IsConflict(err error) bool     { return err != nil && TypeOf(err) == Conflict }
func IsInternal(err error) bool     { return err != nil && TypeOf(err) == Internal }

// MessageOf returns the client-facing message of a fault, or fallback.
func MessageOf(err error, fallback string) string {
	var f *Fault
	if errors.As(err, &f) && f.Message != "" {
		return f.Message
	}
	return fallback
}
