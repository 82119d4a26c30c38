package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation error")
	ErrConflict    = errors.New("conflict")
	ErrPersistence = errors.New("persistence failure")
)

// AppError carries a human-readable message on top of one of the sentinels above.
type AppError struct {
	Err     error
	Message string
	Field   string
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// PersistenceMessage is what clients see when a change could not be saved.
const PersistenceMessage = "change applied but not saved"

// Persistence wraps a storage write failure. The cause stays reachable through
// errors.Is / errors.As on the chain but is kept out of Message, which is
// shown to clients.
func Persistence(cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrPersistence, cause),
		Message: PersistenceMessage,
	}
}
