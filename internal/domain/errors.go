package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the pairing code does not resolve to a session
	ErrNotFound = errors.New("session not found")

	// ErrAlreadyJoined means the session already has its second participant
	ErrAlreadyJoined = errors.New("session already has two participants")

	// ErrNotReady means a report was requested before both participants finished
	ErrNotReady = errors.New("session is not ready for a report")

	// ErrStaleIndex means the slot advanced past the question being answered
	ErrStaleIndex = errors.New("question index no longer matches progress")

	// ErrCodeSpaceExhausted means no unused pairing code could be found
	ErrCodeSpaceExhausted = errors.New("pairing code space exhausted")
)

// LoadError is fatal at startup: the question data is missing or malformed
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	msg := "failed to load questions"
	if e.Path != "" {
		msg += " from " + e.Path
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ValidationError rejects an answer; the caller should prompt again
type ValidationError struct {
	QuestionIndex int
	Reason        string
	Err           error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid answer for question %d: %s", e.QuestionIndex, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a *ValidationError
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
