package suggest

import (
	"errors"
	"fmt"
)

var (
	// ErrGenerationFailed matches every GenerationError.
	ErrGenerationFailed = errors.New("subtask generation failed")

	// ErrBlocked is reported by a Generator when the safety filter refused the prompt or the answer.
	ErrBlocked = errors.New("generation blocked by safety filter")

	ErrInvalidInput = errors.New("invalid generation input")
)

// GenerationError describes why a suggestion attempt produced nothing usable.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrGenerationFailed, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrGenerationFailed, e.Reason)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

func failed(reason string, err error) error {
	return &GenerationError{Reason: reason, Err: err}
}
