package dto

import (
	"net/http"

	"github.com/gestion/backend/internal/domain/shared"
)

// Error code constants for transport-level failures.
// Format: ERR_<CATEGORY>_<DESCRIPTION>

const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeValidation is the base code for request validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeConflict is used for resource conflicts; the client may retry
	ErrCodeConflict = "ERR_CONFLICT"
)

// ErrorKindHTTPStatus maps domain error kinds to HTTP status codes.
// Validation rejects the request, conflict is retryable, integrity means
// corrupted data and surfaces as an internal error.
var ErrorKindHTTPStatus = map[shared.ErrorKind]int{
	shared.KindValidation: http.StatusBadRequest,
	shared.KindNotFound:   http.StatusNotFound,
	shared.KindConflict:   http.StatusConflict,
	shared.KindIntegrity:  http.StatusInternalServerError,
}

// HTTPStatusForKind returns the HTTP status for a domain error kind,
// defaulting to 500 for unknown kinds
func HTTPStatusForKind(kind shared.ErrorKind) int {
	if status, ok := ErrorKindHTTPStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}
