package repository

import "errors"

// Common repository errors
var (
	// ErrTaskNotFound is returned when a task is not found
	ErrTaskNotFound = errors.New("task not found")
	// ErrEmailTaken is returned when another user already has the email
	ErrEmailTaken = errors.New("email already registered")
)
