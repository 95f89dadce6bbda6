package api

import (
	"net/http"

	"github.com/craftboard/platform/internal/domain"
)

// Error categories carried in the response body.
const (
	CategoryValidationError = "VALIDATION_ERROR"
	CategoryObjectNotFound  = "OBJECT_NOT_FOUND"
	CategoryConflict        = "CONFLICT"
	CategoryPermissions     = "PERMISSIONS"
	CategoryInternalError   = "INTERNAL_ERROR"
)

// Error is the JSON error response body.
type Error struct {
	Status        string        `json:"status"`
	Message       string        `json:"message"`
	CorrelationID string        `json:"correlationId"`
	Category      string        `json:"category"`
	SubCategory   string        `json:"subCategory,omitempty"`
	Errors        []ErrorDetail `json:"errors,omitempty"`
}

// ErrorDetail represents a single error within an Error.
type ErrorDetail struct {
	Message     string              `json:"message"`
	Code        string              `json:"code,omitempty"`
	In          string              `json:"in,omitempty"`
	Context     map[string][]string `json:"context,omitempty"`
	SubCategory string              `json:"subCategory,omitempty"`
}

// NewNotFoundError creates a 404 error with the OBJECT_NOT_FOUND category.
func NewNotFoundError(message, correlationID string) *Error {
	return &Error{
		Status:        "error",
		Message:       message,
		CorrelationID: correlationID,
		Category:      CategoryObjectNotFound,
	}
}

// NewValidationError creates a 400 error with the VALIDATION_ERROR category.
func NewValidationError(message, correlationID string, details []ErrorDetail) *Error {
	return &Error{
		Status:        "error",
		Message:       message,
		CorrelationID: correlationID,
		Category:      CategoryValidationError,
		Errors:        details,
	}
}

// NewConflictError creates a 409 error with the CONFLICT category.
func NewConflictError(message, correlationID string) *Error {
	return &Error{
		Status:        "error",
		Message:       message,
		CorrelationID: correlationID,
		Category:      CategoryConflict,
	}
}

// statusForKind maps a domain error kind to an HTTP status and category.
func statusForKind(kind domain.ErrorKind) (int, string) {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound, CategoryObjectNotFound
	case domain.KindSchemaViolation,
		domain.KindRequiredPropertyMissing,
		domain.KindCardinalityViolation,
		domain.KindInvalidTransition:
		return http.StatusBadRequest, CategoryValidationError
	case domain.KindDuplicateDefinition, domain.KindConflict:
		return http.StatusConflict, CategoryConflict
	case domain.KindPermissionDenied:
		return http.StatusForbidden, CategoryPermissions
	default:
		return http.StatusInternalServerError, CategoryInternalError
	}
}

// WriteDomainError translates a store error into the JSON error response.
// The domain error kind travels as the subCategory so clients can branch on
// it without parsing messages.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status, category := statusForKind(kind)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal Server Error"
	}
	WriteError(w, status, &Error{
		Status:        "error",
		Message:       message,
		CorrelationID: CorrelationID(r.Context()),
		Category:      category,
		SubCategory:   string(kind),
	})
}

// WriteError writes an Error as a JSON response with the given HTTP status code.
func WriteError(w http.ResponseWriter, statusCode int, apiErr *Error) {
	WriteJSON(w, statusCode, apiErr)
}
