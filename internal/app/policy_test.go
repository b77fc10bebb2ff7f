package app_test

import (
	"errors"
	"testing"
	"time"

	"exam-delivery-service/internal/app"
	"exam-delivery-service/internal/domain"
)

func TestAttemptsRemainingNeverNegative(t *testing.T) {
	a := domain.Assignment{MaxAttempts: 2}
	for used, want := range []int{2, 1, 0, 0} {
		if got := app.AttemptsRemaining(a, used); got != want {
			t.Fatalf("used=%d: remaining %d, want %d", used, got, want)
		}
	}
}

func TestReviewUnlocked(t *testing.T) {
	a := domain.Assignment{MaxAttempts: 2}
	if app.ReviewUnlocked(a, 1) {
		t.Fatalf("review must stay locked with an attempt left")
	}
	if !app.ReviewUnlocked(a, 2) {
		t.Fatalf("review must unlock once attempts are spent")
	}
	if app.ReviewUnlocked(domain.Assignment{MaxAttempts: 0}, 0) {
		t.Fatalf("review needs at least one attempt")
	}
}

func TestAttemptsUsedAndLastAttempt(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	attempts := []domain.Attempt{
		{ID: "a1", UserID: "u1", SetID: "s1", Timestamp: base.Add(2 * time.Hour)},
		{ID: "a2", UserID: "u1", SetID: "s1", Timestamp: base.Add(time.Hour)},
		{ID: "a3", UserID: "u1", SetID: "s2", Timestamp: base.Add(3 * time.Hour)},
		{ID: "a4", UserID: "u2", SetID: "s1", Timestamp: base.Add(4 * time.Hour)},
	}
	if used := app.AttemptsUsed(attempts, "u1", "s1"); used != 2 {
		t.Fatalf("expected 2 used, got %d", used)
	}
	last, ok := app.LastAttempt(attempts, "u1", "s1")
	if !ok || last.ID != "a1" {
		t.Fatalf("expected a1 as last attempt, got %+v", last)
	}
	if _, ok := app.LastAttempt(attempts, "u3", "s1"); ok {
		t.Fatalf("expected no attempt for u3")
	}
}

func TestCheckStart(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Hour)

	open := domain.Assignment{MaxAttempts: 1}
	if err := app.CheckStart(open, 0, now); err != nil {
		t.Fatalf("expected start allowed, got %v", err)
	}
	if err := app.CheckStart(open, 1, now); !errors.Is(err, domain.ErrNoAttemptsRemaining) {
		t.Fatalf("expected no attempts remaining, got %v", err)
	}
	notYet := domain.Assignment{MaxAttempts: 1, AvailabilityStart: &later}
	if err := app.CheckStart(notYet, 0, now); !errors.Is(err, domain.ErrOutsideAvailability) {
		t.Fatalf("expected outside availability, got %v", err)
	}
	closed := domain.Assignment{MaxAttempts: 1, AvailabilityEnd: &earlier}
	if err := app.CheckStart(closed, 0, now); !errors.Is(err, domain.ErrOutsideAvailability) {
		t.Fatalf("expected outside availability, got %v", err)
	}
	edge := domain.Assignment{MaxAttempts: 1, AvailabilityStart: &now, AvailabilityEnd: &now}
	if err := app.CheckStart(edge, 0, now); err != nil {
		t.Fatalf("window bounds are inclusive, got %v", err)
	}
}
