package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is wrapped by every lookup failure.
	ErrNotFound        = errors.New("not found")
	ErrTestNotFound    = fmt.Errorf("test %w", ErrNotFound)
	ErrAttemptNotFound = fmt.Errorf("attempt %w", ErrNotFound)
	ErrResultNotFound  = fmt.Errorf("result %w", ErrNotFound)

	// ErrAttemptAlreadyCompleted rejects answers sent after completion.
	ErrAttemptAlreadyCompleted = errors.New("attempt already completed")
	// ErrNotCompleted rejects analysis or reports for unfinished attempts.
	ErrNotCompleted  = errors.New("test not yet completed")
	ErrInvalidAnswer = errors.New("invalid answer")

	// ErrServiceUnavailable means the generation provider is not configured or reachable.
	ErrServiceUnavailable = errors.New("analysis service unavailable")
)

// IncompleteAnswersError is returned by Complete while questions remain unanswered.
type IncompleteAnswersError struct {
	Answered int
	Required int
}

func (e *IncompleteAnswersError) Error() string {
	return fmt.Sprintf("answered %d of %d questions", e.Answered, e.Required)
}
