package app

import (
	"sort"
	"time"

	"exam-delivery-service/internal/domain"
	"github.com/jinzhu/now"
)

// AttemptFilter narrows analytics to one user and/or one set. Empty fields match all.
type AttemptFilter struct {
	UserID string `json:"userId,omitempty"`
	SetID  string `json:"setId,omitempty"`
}

// FilterAttempts returns the attempts matching f, preserving order.
func FilterAttempts(attempts []domain.Attempt, f AttemptFilter) []domain.Attempt {
	out := make([]domain.Attempt, 0, len(attempts))
	for _, a := range attempts {
		if f.UserID != "" && a.UserID != f.UserID {
			continue
		}
		if f.SetID != "" && a.SetID != f.SetID {
			continue
		}
		out = append(out, a)
	}
	return out
}

// ScoreboardRow joins one attempt with its user, set and policy counters.
type ScoreboardRow struct {
	AttemptID  string    `json:"attemptId"`
	UserID     string    `json:"userId"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	SetID      string    `json:"setId"`
	SetName    string    `json:"setName"`
	Used       int       `json:"used"`
	Remaining  int       `json:"remaining"`
	Score      int       `json:"score"`
	Percentage int       `json:"percentage"`
	Pass       bool      `json:"pass"`
	Timestamp  time.Time `json:"timestamp"`
}

// Scoreboard builds one row per attempt. Attempts whose user or set no longer
// exists are skipped.
func Scoreboard(attempts []domain.Attempt, users []domain.User, sets []domain.Set, assignments []domain.Assignment) []ScoreboardRow {
	usersByID := make(map[string]domain.User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}
	setsByID := make(map[string]domain.Set, len(sets))
	for _, s := range sets {
		setsByID[s.ID] = s
	}

	rows := make([]ScoreboardRow, 0, len(attempts))
	for _, att := range attempts {
		u, ok := usersByID[att.UserID]
		if !ok {
			continue
		}
		s, ok := setsByID[att.SetID]
		if !ok {
			continue
		}
		used := AttemptsUsed(attempts, u.ID, s.ID)
		remaining := 0
		if a, ok := findAssignment(assignments, u.ID, s.ID); ok {
			remaining = AttemptsRemaining(a, used)
		}
		rows = append(rows, ScoreboardRow{
			AttemptID:  att.ID,
			UserID:     u.ID,
			Name:       u.Name,
			Email:      u.Email,
			SetID:      s.ID,
			SetName:    s.Name,
			Used:       used,
			Remaining:  remaining,
			Score:      att.Score,
			Percentage: att.Percentage,
			Pass:       att.Pass,
			Timestamp:  att.Timestamp,
		})
	}
	return rows
}

func findAssignment(assignments []domain.Assignment, userID, setID string) (domain.Assignment, bool) {
	for _, a := range assignments {
		if a.UserID == userID && a.SetID == setID {
			return a, true
		}
	}
	return domain.Assignment{}, false
}

// TrendPoint is the average percentage of all attempts on one UTC day.
type TrendPoint struct {
	Date     string  `json:"date"`
	Average  float64 `json:"average"`
	Attempts int     `json:"attempts"`
}

// TrendByDay groups attempts by UTC calendar day, ascending, averages rounded to one decimal.
func TrendByDay(attempts []domain.Attempt) []TrendPoint {
	type bucket struct {
		day   time.Time
		sum   int
		count int
	}
	buckets := make(map[time.Time]*bucket)
	for _, a := range attempts {
		day := now.With(a.Timestamp.UTC()).BeginningOfDay()
		b, ok := buckets[day]
		if !ok {
			b = &bucket{day: day}
			buckets[day] = b
		}
		b.sum += a.Percentage
		b.count++
	}

	points := make([]TrendPoint, 0, len(buckets))
	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].day.Before(ordered[j].day) })
	for _, b := range ordered {
		points = append(points, TrendPoint{
			Date:     b.day.Format("2006-01-02"),
			Average:  roundTo(float64(b.sum)/float64(b.count), 1),
			Attempts: b.count,
		})
	}
	return points
}

// Summary holds pass/fail counts and overall averages.
type Summary struct {
	Total                  int     `json:"total"`
	Passed                 int     `json:"passed"`
	Failed                 int     `json:"failed"`
	PassRate               float64 `json:"passRate"`
	AverageScore           int     `json:"averageScore"`
	AverageDurationSeconds int     `json:"averageDurationSeconds"`
}

// Summarize counts passes and failures. PassRate is a 0..1 fraction.
func Summarize(attempts []domain.Attempt) Summary {
	s := Summary{Total: len(attempts)}
	if s.Total == 0 {
		return s
	}
	var pctSum, durSum int
	for _, a := range attempts {
		if a.Pass {
			s.Passed++
		}
		pctSum += a.Percentage
		durSum += a.DurationSeconds
	}
	s.Failed = s.Total - s.Passed
	s.PassRate = float64(s.Passed) / float64(s.Total)
	s.AverageScore = roundHalfUp(float64(pctSum) / float64(s.Total))
	s.AverageDurationSeconds = roundHalfUp(float64(durSum) / float64(s.Total))
	return s
}

// SetAverage is the mean percentage of every attempt on a set.
type SetAverage struct {
	SetID    string `json:"setId"`
	Name     string `json:"name"`
	Attempts int    `json:"attempts"`
	Average  int    `json:"average"`
}

// SetAverages reports each set in the order given; sets without attempts average 0.
func SetAverages(sets []domain.Set, attempts []domain.Attempt) []SetAverage {
	out := make([]SetAverage, 0, len(sets))
	for _, s := range sets {
		row := SetAverage{SetID: s.ID, Name: s.Name}
		sum := 0
		for _, a := range attempts {
			if a.SetID == s.ID {
				row.Attempts++
				sum += a.Percentage
			}
		}
		if row.Attempts > 0 {
			row.Average = roundHalfUp(float64(sum) / float64(row.Attempts))
		}
		out = append(out, row)
	}
	return out
}

// QuestionRate is how often a question was answered correctly when answered.
type QuestionRate struct {
	QuestionID string  `json:"questionId"`
	Answered   int     `json:"answered"`
	Correct    int     `json:"correct"`
	Rate       float64 `json:"rate"`
	Percent    int     `json:"percent"`
}

// QuestionCorrectRate measures one question across the set's attempts using
// the current answer key. Unanswered entries are ignored.
func QuestionCorrectRate(question domain.MCQQuestion, setID string, attempts []domain.Attempt) QuestionRate {
	rate := QuestionRate{QuestionID: question.ID}
	for _, att := range attempts {
		if att.SetID != setID {
			continue
		}
		for _, ans := range att.Answers {
			if ans.QuestionID != question.ID || ans.ChosenIndex == nil {
				continue
			}
			rate.Answered++
			if question.IsCorrect(ans.ChosenIndex) {
				rate.Correct++
			}
		}
	}
	if rate.Answered > 0 {
		rate.Rate = float64(rate.Correct) / float64(rate.Answered)
		rate.Percent = Percent(rate.Correct, rate.Answered)
	}
	return rate
}

// QuestionCorrectRates measures every leaf question of a set.
func QuestionCorrectRates(set domain.Set, attempts []domain.Attempt) []QuestionRate {
	leaves := domain.Flatten(set.Questions)
	out := make([]QuestionRate, 0, len(leaves))
	for _, q := range leaves {
		out = append(out, QuestionCorrectRate(q, set.ID, attempts))
	}
	return out
}

// Analytics bundles every aggregate for the admin dashboard.
type Analytics struct {
	Filter      AttemptFilter   `json:"filter"`
	Scoreboard  []ScoreboardRow `json:"scoreboard"`
	Trend       []TrendPoint    `json:"trend"`
	Summary     Summary         `json:"summary"`
	SetAverages []SetAverage    `json:"setAverages"`
}
