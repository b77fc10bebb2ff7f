package app

import (
	"math"
	"time"

	"exam-delivery-service/internal/domain"
)

// ScoreResult is the outcome of grading one attempt.
type ScoreResult struct {
	Score           int                    `json:"score"`
	Total           int                    `json:"total"`
	Percentage      int                    `json:"percentage"`
	Pass            bool                   `json:"pass"`
	DurationSeconds int                    `json:"durationSeconds"`
	Answers         []domain.AttemptAnswer `json:"answers"`
}

// Score grades answers against the flattened leaf questions of a set. It is
// pure; callers invoke it once, at submission.
func Score(questions []domain.MCQQuestion, answers map[string]int, passPercent int, startedAt, submittedAt time.Time) ScoreResult {
	result := ScoreResult{
		Total:   len(questions),
		Answers: make([]domain.AttemptAnswer, 0, len(questions)),
	}
	for _, q := range questions {
		answer := domain.AttemptAnswer{QuestionID: q.ID}
		if chosen, ok := answers[q.ID]; ok {
			c := chosen
			answer.ChosenIndex = &c
		}
		if q.IsCorrect(answer.ChosenIndex) {
			result.Score++
		}
		result.Answers = append(result.Answers, answer)
	}
	result.Percentage = Percent(result.Score, result.Total)
	result.Pass = result.Percentage >= passPercent
	result.DurationSeconds = ElapsedSeconds(startedAt, submittedAt)
	return result
}

// Percent returns round(part/total*100) with halves rounded up, 0 when total is 0.
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return roundHalfUp(float64(part) / float64(total) * 100)
}

// ElapsedSeconds rounds the wall-clock gap to whole seconds, never negative.
func ElapsedSeconds(from, to time.Time) int {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	return roundHalfUp(d.Seconds())
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Floor(v*p+0.5) / p
}
