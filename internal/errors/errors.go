package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError. It is also the machine-readable "error" field of responses.
type Kind string

const (
	KindValidation    Kind = "VALIDATION_ERROR"
	KindConflict      Kind = "CONFLICT"
	KindAuth          Kind = "AUTH_ERROR"
	KindNotFound      Kind = "NOT_FOUND"
	KindRemoteService Kind = "REMOTE_SERVICE_ERROR"
	KindInternal      Kind = "INTERNAL_ERROR"
)

const internalMessage = "Internal server error"

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// AppError is a domain error carrying its HTTP status and a client-safe message.
// Internal holds the underlying cause for logging and is never rendered in production.
type AppError struct {
	Kind     Kind
	Status   int
	Message  string
	Internal error
}

func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Internal
}

// ToErrorResponse converts an AppError to ErrorResponse.
// Internal errors keep their generic message unless exposeInternal is set.
func (e *AppError) ToErrorResponse(exposeInternal bool) ErrorResponse {
	msg := e.Message
	if e.Kind == KindInternal && exposeInternal && e.Internal != nil {
		msg = e.Internal.Error()
	}
	return ErrorResponse{
		Success: false,
		Error:   string(e.Kind),
		Message: msg,
	}
}

// NewValidation creates a 400 error for malformed or missing input.
func NewValidation(message string) *AppError {
	return &AppError{Kind: KindValidation, Status: http.StatusBadRequest, Message: message}
}

// NewConflict creates a 409 error for a duplicate resource.
func NewConflict(message string) *AppError {
	return &AppError{Kind: KindConflict, Status: http.StatusConflict, Message: message}
}

// NewAuth creates a 401 error for a missing, invalid or expired credential.
func NewAuth(message string) *AppError {
	return &AppError{Kind: KindAuth, Status: http.StatusUnauthorized, Message: message}
}

// NewNotFound creates a 404 error. Used both for absent and for foreign-owned resources.
func NewNotFound(message string) *AppError {
	return &AppError{Kind: KindNotFound, Status: http.StatusNotFound, Message: message}
}

// NewRemoteService creates an error for a failed call to the AI server.
// A status outside the 4xx/5xx range collapses to 500.
func NewRemoteService(status int, message string, cause error) *AppError {
	if status < http.StatusBadRequest || status > 599 {
		status = http.StatusInternalServerError
	}
	if message == "" {
		message = "Error from AI server"
	}
	return &AppError{Kind: KindRemoteService, Status: status, Message: message, Internal: cause}
}

// NewInternal creates a 500 error. The cause is logged, the client sees a generic message.
func NewInternal(err error) *AppError {
	return &AppError{Kind: KindInternal, Status: http.StatusInternalServerError, Message: internalMessage, Internal: err}
}

// MapErrorToHTTP returns err as an AppError, wrapping anything unknown as internal.
func MapErrorToHTTP(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternal(err)
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}
