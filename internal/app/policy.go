package app

import (
	"time"

	"exam-delivery-service/internal/domain"
)

// AttemptsUsed counts persisted attempts for the (user, set) pair.
func AttemptsUsed(attempts []domain.Attempt, userID, setID string) int {
	used := 0
	for _, a := range attempts {
		if a.UserID == userID && a.SetID == setID {
			used++
		}
	}
	return used
}

// AttemptsRemaining is max(0, maxAttempts-used).
func AttemptsRemaining(assignment domain.Assignment, used int) int {
	if left := assignment.MaxAttempts - used; left > 0 {
		return left
	}
	return 0
}

// ReviewUnlocked is true once every attempt is spent and at least one was taken.
func ReviewUnlocked(assignment domain.Assignment, used int) bool {
	return used > 0 && used >= assignment.MaxAttempts
}

// LastAttempt returns the most recent attempt for the pair.
func LastAttempt(attempts []domain.Attempt, userID, setID string) (domain.Attempt, bool) {
	var (
		last  domain.Attempt
		found bool
	)
	for _, a := range attempts {
		if a.UserID != userID || a.SetID != setID {
			continue
		}
		if !found || a.Timestamp.After(last.Timestamp) {
			last = a
			found = true
		}
	}
	return last, found
}

// CheckStart returns the guard error that prevents a new attempt, if any.
func CheckStart(assignment domain.Assignment, used int, now time.Time) error {
	if AttemptsRemaining(assignment, used) == 0 {
		return domain.ErrNoAttemptsRemaining
	}
	if !assignment.Available(now) {
		return domain.ErrOutsideAvailability
	}
	return nil
}
