package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an operation failure. Kinds are stable identifiers
// that callers can switch on; messages are for humans.
type ErrorKind string

const (
	KindNotFound                ErrorKind = "NOT_FOUND"
	KindSchemaViolation         ErrorKind = "SCHEMA_VIOLATION"
	KindRequiredPropertyMissing ErrorKind = "REQUIRED_PROPERTY_MISSING"
	KindCardinalityViolation    ErrorKind = "CARDINALITY_VIOLATION"
	KindInvalidTransition       ErrorKind = "INVALID_TRANSITION"
	KindDuplicateDefinition     ErrorKind = "DUPLICATE_DEFINITION"
	KindPermissionDenied        ErrorKind = "PERMISSION_DENIED"
	KindConflict                ErrorKind = "CONFLICT"
	KindStorageError            ErrorKind = "STORAGE_ERROR"
)

// Error is a structured operation error with a stable kind. Storage-layer
// details are never exposed through Message; they travel on the wrapped
// cause for logging only.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is makes errors.Is match any *Error with the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// NewError creates an Error with the given kind and formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapStorage converts an infrastructure failure into an opaque StorageError.
// The cause is retained for logging but never rendered to callers.
func WrapStorage(op string, cause error) *Error {
	return &Error{Kind: KindStorageError, Message: fmt.Sprintf("storage failure during %s", op), cause: cause}
}

// KindOf extracts the error kind, or StorageError for unclassified errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorageError
}

// Sentinel matchers for the common kinds.
var (
	ErrNotFound             = &Error{Kind: KindNotFound, Message: "not found"}
	ErrSchemaViolation      = &Error{Kind: KindSchemaViolation, Message: "schema violation"}
	ErrRequiredProperty     = &Error{Kind: KindRequiredPropertyMissing, Message: "required property missing"}
	ErrCardinalityViolation = &Error{Kind: KindCardinalityViolation, Message: "cardinality violation"}
	ErrInvalidTransition    = &Error{Kind: KindInvalidTransition, Message: "invalid transition"}
	ErrDuplicateDefinition  = &Error{Kind: KindDuplicateDefinition, Message: "duplicate definition"}
	ErrPermissionDenied     = &Error{Kind: KindPermissionDenied, Message: "permission denied"}
	ErrConflict             = &Error{Kind: KindConflict, Message: "conflict"}
)
