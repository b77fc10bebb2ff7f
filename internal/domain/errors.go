package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound is returned when a referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrSetNotFound indicates the question set could not be loaded.
	ErrSetNotFound = errors.New("set not found")
	// ErrQuestionNotFound indicates a question ID is not part of the set.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAssignmentNotFound is returned when a referenced assignment does not exist.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrAssignmentExists rejects a second assignment for the same user and set.
	ErrAssignmentExists = errors.New("set already assigned to user")
	// ErrNoAttemptsRemaining guards starting or retaking an exhausted assignment.
	ErrNoAttemptsRemaining = errors.New("no attempts remaining")
	// ErrOutsideAvailability is returned when starting outside the availability window.
	ErrOutsideAvailability = errors.New("assignment not available at this time")
	// ErrNoActiveAttempt is returned when a student has no attempt session.
	ErrNoActiveAttempt = errors.New("no active attempt")
	// ErrAttemptNotInProgress rejects answer changes outside an in-progress attempt.
	ErrAttemptNotInProgress = errors.New("attempt not in progress")
	// ErrAttemptInProgress rejects starting a second attempt while one is running.
	ErrAttemptInProgress = errors.New("attempt already in progress")
	// ErrReviewLocked is returned while attempts remain on the assignment.
	ErrReviewLocked = errors.New("review locked until all attempts are used")
	// ErrPersistFailed wraps storage failures while recording a finished attempt.
	ErrPersistFailed = errors.New("attempt result not saved")
	// ErrSaveInProgress is returned while a submitted result is still being written.
	ErrSaveInProgress = errors.New("attempt result is still being saved")
	// ErrInvalidCredentials is returned on a failed password check.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError describes rejected input on a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Message)
}

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
