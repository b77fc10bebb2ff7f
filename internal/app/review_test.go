package app_test

import (
	"testing"

	"exam-delivery-service/internal/app"
	"exam-delivery-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reviewSet() domain.Set {
	return domain.Set{
		ID:   "s2",
		Name: "Reading Comprehension",
		Questions: domain.QuestionList{
			domain.MCQQuestion{ID: "q1", Text: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectIndex: 1, Justification: "2+2 equals 4."},
			domain.ParagraphQuestion{ID: "p1", Paragraph: "Sustainability requires balance.", Questions: []domain.MCQQuestion{
				{ID: "p1-a", Text: "Main idea of the passage?", Options: []string{"A", "B", "C"}, CorrectIndex: 2},
				{ID: "p1-b", Text: "Tone of the author?", Options: []string{"Neutral", "Critical"}, CorrectIndex: 0},
			}},
		},
	}
}

func reviewAttempt() domain.Attempt {
	return domain.Attempt{
		ID: "att-1", UserID: "u1", SetID: "s2", DurationSeconds: 100,
		Answers: []domain.AttemptAnswer{
			{QuestionID: "q1", ChosenIndex: chosen(1)},
			{QuestionID: "p1-a", ChosenIndex: chosen(0)},
			{QuestionID: "p1-b"},
		},
	}
}

func TestBuildReviewNumbersFlattenedOrder(t *testing.T) {
	bookmarks := []domain.Bookmark{{UserID: "u1", QuestionID: "p1-a"}}
	review := app.BuildReview(reviewSet(), reviewAttempt(), []domain.Attempt{reviewAttempt()}, bookmarks, app.ReviewFilter{})

	assert.Equal(t, 3, review.Total)
	assert.Equal(t, 33, review.ApproxSecondsPerQuestion)
	require.Len(t, review.Items, 3)

	first := review.Items[0]
	assert.Equal(t, 1, first.Number)
	assert.True(t, first.Correct)
	assert.Equal(t, 100, first.OverallRate)
	assert.Empty(t, first.ParagraphText)

	second := review.Items[1]
	assert.Equal(t, 2, second.Number)
	assert.False(t, second.Correct)
	assert.True(t, second.Bookmarked)
	assert.Equal(t, "Sustainability requires balance.", second.ParagraphText)

	third := review.Items[2]
	assert.Nil(t, third.ChosenIndex)
	assert.Equal(t, 0, third.OverallRate)
}

func TestBuildReviewFilters(t *testing.T) {
	attempts := []domain.Attempt{reviewAttempt()}

	incorrect := app.BuildReview(reviewSet(), reviewAttempt(), attempts, nil, app.ReviewFilter{IncorrectOnly: true})
	require.Len(t, incorrect.Items, 1)
	assert.Equal(t, "p1-a", incorrect.Items[0].Question.ID)
	assert.Equal(t, 2, incorrect.Items[0].Number)

	byText := app.BuildReview(reviewSet(), reviewAttempt(), attempts, nil, app.ReviewFilter{Query: "  TONE "})
	require.Len(t, byText.Items, 1)
	assert.Equal(t, 3, byText.Items[0].Number)

	byJustification := app.BuildReview(reviewSet(), reviewAttempt(), attempts, nil, app.ReviewFilter{Query: "equals"})
	require.Len(t, byJustification.Items, 1)
	assert.Equal(t, "q1", byJustification.Items[0].Question.ID)

	none := app.BuildReview(reviewSet(), reviewAttempt(), attempts, nil, app.ReviewFilter{Query: "zebra"})
	assert.NotNil(t, none.Items)
	assert.Empty(t, none.Items)
}
