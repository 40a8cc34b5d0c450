package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("task not found")
	ErrForbidden           = errors.New("task belongs to another user")
	ErrDepthExceeded       = errors.New("maximum nesting depth reached")
	ErrChildLimitExceeded  = errors.New("maximum number of subtasks reached")
	ErrGenerationExhausted = errors.New("no suggestion generations left for this task")
	ErrStorage             = errors.New("storage failure")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// storageError wraps a store failure with the operation that hit it.
func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
