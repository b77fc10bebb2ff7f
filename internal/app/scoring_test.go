package app_test

import (
	"testing"
	"time"

	"exam-delivery-service/internal/app"
	"exam-delivery-service/internal/domain"
)

func leaves() []domain.MCQQuestion {
	return []domain.MCQQuestion{
		{ID: "q1", Options: []string{"3", "4", "5"}, CorrectIndex: 1},
		{ID: "q2", Options: []string{"Berlin", "Paris"}, CorrectIndex: 1},
		{ID: "q3", Options: []string{"A", "B", "C", "D"}, CorrectIndex: 2},
	}
}

func TestScoreCountsOnlyCorrectAnswers(t *testing.T) {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	result := app.Score(leaves(), map[string]int{"q1": 1, "q2": 0}, 30, start, start.Add(90*time.Second+600*time.Millisecond))

	if result.Score != 1 || result.Total != 3 {
		t.Fatalf("expected 1/3, got %d/%d", result.Score, result.Total)
	}
	if result.Percentage != 33 || !result.Pass {
		t.Fatalf("expected 33%% pass, got %d pass=%v", result.Percentage, result.Pass)
	}
	if result.DurationSeconds != 91 {
		t.Fatalf("expected 91s, got %d", result.DurationSeconds)
	}
	if len(result.Answers) != 3 {
		t.Fatalf("expected an answer entry per question, got %d", len(result.Answers))
	}
	if result.Answers[2].QuestionID != "q3" || result.Answers[2].ChosenIndex != nil {
		t.Fatalf("expected q3 unanswered, got %+v", result.Answers[2])
	}
}

func TestScorePassBoundaryIsInclusive(t *testing.T) {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	answers := map[string]int{"q1": 1, "q2": 1}

	if r := app.Score(leaves(), answers, 67, start, start); !r.Pass || r.Percentage != 67 {
		t.Fatalf("67%% should pass a 67%% bar, got %+v", r)
	}
	if r := app.Score(leaves(), answers, 68, start, start); r.Pass {
		t.Fatalf("67%% should fail a 68%% bar")
	}
}

func TestScoreEmptySet(t *testing.T) {
	start := time.Now()
	r := app.Score(nil, map[string]int{}, 0, start, start)
	if r.Total != 0 || r.Percentage != 0 || !r.Pass {
		t.Fatalf("unexpected empty result %+v", r)
	}
}

func TestPercentRoundsHalfUp(t *testing.T) {
	cases := []struct {
		part, total, want int
	}{
		{1, 8, 13},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{5, 5, 100},
		{3, 0, 0},
	}
	for _, tc := range cases {
		if got := app.Percent(tc.part, tc.total); got != tc.want {
			t.Fatalf("Percent(%d, %d) = %d, want %d", tc.part, tc.total, got, tc.want)
		}
	}
}

func TestElapsedSecondsNeverNegative(t *testing.T) {
	now := time.Now()
	if got := app.ElapsedSeconds(now, now.Add(-time.Minute)); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := app.ElapsedSeconds(now, now.Add(1500*time.Millisecond)); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}
