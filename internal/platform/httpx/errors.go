// Package httpx provides JSON response helpers and the error taxonomy shared
// by every HTTP handler.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the domain layer. Handlers wrap these with context and
// RespondError translates them to status codes at the boundary.
var (
	// ErrNotFound covers both "no such row" and "row owned by another user";
	// callers must not be able to tell the two apart.
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicate indicates a uniqueness conflict, e.g. an already
	// registered email.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized indicates a missing or invalid session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials indicates a login failure. Unknown email and
	// wrong password deliberately share this error.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Error codes carried in the JSON error envelope.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInternal           = "INTERNAL_ERROR"
)

// RespondError maps a domain error to its HTTP status and error envelope.
// Unrecognised errors become a generic 500; their detail never crosses the
// boundary and is expected to be logged by the caller.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		Error(w, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, ErrUnauthorized):
		Error(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
	case errors.Is(err, ErrInvalidCredentials):
		Error(w, http.StatusUnauthorized, CodeInvalidCredentials, "invalid email or password")
	case errors.Is(err, ErrNotFound):
		Error(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, ErrDuplicate):
		Error(w, http.StatusConflict, CodeConflict, err.Error())
	default:
		Error(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
