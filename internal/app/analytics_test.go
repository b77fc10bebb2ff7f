package app_test

import (
	"testing"
	"time"

	"exam-delivery-service/internal/app"
	"exam-delivery-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chosen(v int) *int { return &v }

func analyticsAttempts() []domain.Attempt {
	day1 := time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC)
	day2 := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)
	return []domain.Attempt{
		{ID: "a1", UserID: "u1", SetID: "s1", Timestamp: day2, Percentage: 50, Pass: true, DurationSeconds: 100,
			Answers: []domain.AttemptAnswer{{QuestionID: "q1", ChosenIndex: chosen(1)}, {QuestionID: "q2"}}},
		{ID: "a2", UserID: "u1", SetID: "s1", Timestamp: day1, Percentage: 33, Pass: false, DurationSeconds: 61,
			Answers: []domain.AttemptAnswer{{QuestionID: "q1", ChosenIndex: chosen(0)}, {QuestionID: "q2", ChosenIndex: chosen(1)}}},
		{ID: "a3", UserID: "u2", SetID: "s1", Timestamp: day1.Add(-time.Hour), Percentage: 100, Pass: true, DurationSeconds: 40,
			Answers: []domain.AttemptAnswer{{QuestionID: "q1", ChosenIndex: chosen(1)}, {QuestionID: "q2", ChosenIndex: chosen(1)}}},
		{ID: "a4", UserID: "u2", SetID: "gone", Timestamp: day2, Percentage: 0},
	}
}

func TestTrendByDayGroupsUTCDays(t *testing.T) {
	points := app.TrendByDay(analyticsAttempts())
	require.Len(t, points, 2)
	assert.Equal(t, "2024-05-01", points[0].Date)
	assert.Equal(t, 66.5, points[0].Average)
	assert.Equal(t, 2, points[0].Attempts)
	assert.Equal(t, "2024-05-02", points[1].Date)
	assert.Equal(t, 25.0, points[1].Average)
}

func TestSummarize(t *testing.T) {
	s := app.Summarize(analyticsAttempts())
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 2, s.Failed)
	assert.InDelta(t, 0.5, s.PassRate, 1e-9)
	assert.Equal(t, 46, s.AverageScore)
	assert.Equal(t, 50, s.AverageDurationSeconds)

	assert.Equal(t, app.Summary{}, app.Summarize(nil))
}

func TestFilterAttempts(t *testing.T) {
	got := app.FilterAttempts(analyticsAttempts(), app.AttemptFilter{UserID: "u1", SetID: "s1"})
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].ID)
	assert.Len(t, app.FilterAttempts(analyticsAttempts(), app.AttemptFilter{}), 4)
}

func TestScoreboardSkipsDeletedSets(t *testing.T) {
	users := []domain.User{{ID: "u1", Name: "Aisha"}, {ID: "u2", Name: "Liam"}}
	sets := []domain.Set{{ID: "s1", Name: "Fundamentals"}}
	assignments := []domain.Assignment{{UserID: "u1", SetID: "s1", MaxAttempts: 3}}

	rows := app.Scoreboard(analyticsAttempts(), users, sets, assignments)
	require.Len(t, rows, 3)
	assert.Equal(t, "Aisha", rows[0].Name)
	assert.Equal(t, 2, rows[0].Used)
	assert.Equal(t, 1, rows[0].Remaining)
	assert.Equal(t, "Liam", rows[2].Name)
	assert.Equal(t, 0, rows[2].Remaining)
}

func TestSetAveragesIncludesUnattemptedSets(t *testing.T) {
	sets := []domain.Set{{ID: "s1", Name: "Fundamentals"}, {ID: "s2", Name: "Reading"}}
	avgs := app.SetAverages(sets, analyticsAttempts())
	require.Len(t, avgs, 2)
	assert.Equal(t, app.SetAverage{SetID: "s1", Name: "Fundamentals", Attempts: 3, Average: 61}, avgs[0])
	assert.Equal(t, app.SetAverage{SetID: "s2", Name: "Reading"}, avgs[1])
}

func TestQuestionCorrectRatesIgnoreUnanswered(t *testing.T) {
	set := domain.Set{
		ID: "s1",
		Questions: domain.QuestionList{
			domain.MCQQuestion{ID: "q1", Options: []string{"a", "b"}, CorrectIndex: 1},
			domain.ParagraphQuestion{ID: "p1", Paragraph: "text", Questions: []domain.MCQQuestion{
				{ID: "q2", Options: []string{"a", "b"}, CorrectIndex: 1},
			}},
		},
	}
	rates := app.QuestionCorrectRates(set, analyticsAttempts())
	require.Len(t, rates, 2)
	assert.Equal(t, 3, rates[0].Answered)
	assert.Equal(t, 2, rates[0].Correct)
	assert.Equal(t, 67, rates[0].Percent)
	assert.Equal(t, "q2", rates[1].QuestionID)
	assert.Equal(t, 2, rates[1].Answered)
	assert.Equal(t, 100, rates[1].Percent)
	assert.InDelta(t, 1.0, rates[1].Rate, 1e-9)
}
