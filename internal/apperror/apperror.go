// Package apperror defines the error taxonomy shared by every layer.
//
// Services return these errors; only the HTTP handler layer decides which
// status code each one becomes. Anything that is not an *AppError is treated
// as an internal failure.
package apperror

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is. Each maps to one HTTP status in the handler layer.
var (
	ErrNotFound     = errors.New("not found")         // 404
	ErrValidation   = errors.New("validation failed") // 400
	ErrConflict     = errors.New("conflict")          // 409
	ErrUnauthorized = errors.New("unauthorized")      // 401
)

// AppError carries a sentinel plus the message shown to the game client.
type AppError struct {
	Err     error  // one of the sentinels above
	Message string // safe to send to the client
	Field   string // request field at fault, validation only
}

// Error returns the client-facing message.
func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes the sentinel to errors.Is.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports a missing resource, e.g. an unknown account id.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// ValidationFailed reports bad client input on field.
func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a duplicate unique key, e.g. a username that is taken.
func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s %q already exists", resource, key),
	}
}

// Unauthorized reports a credential mismatch. Callers use the same message
// whether the username or the password was wrong.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}
