package app

import (
	"strings"

	"exam-delivery-service/internal/domain"
)

// ReviewFilter narrows review items by keyword and/or to wrong answers.
type ReviewFilter struct {
	Query         string `json:"query,omitempty"`
	IncorrectOnly bool   `json:"incorrectOnly,omitempty"`
}

// ReviewItem is one leaf question as it was answered in the last attempt.
type ReviewItem struct {
	Number        int                `json:"number"`
	Question      domain.MCQQuestion `json:"question"`
	ChosenIndex   *int               `json:"chosenIndex"`
	Correct       bool               `json:"correct"`
	OverallRate   int                `json:"overallRate"`
	Bookmarked    bool               `json:"bookmarked"`
	ParagraphText string             `json:"paragraph,omitempty"`
}

// Review is the post-exhaustion view of a set.
type Review struct {
	SetID                    string         `json:"setId"`
	SetName                  string         `json:"setName"`
	Attempt                  domain.Attempt `json:"attempt"`
	Total                    int            `json:"total"`
	ApproxSecondsPerQuestion int            `json:"approxSecondsPerQuestion"`
	Items                    []ReviewItem   `json:"items"`
}

// BuildReview lays out the last attempt against the set's current questions.
// setAttempts feeds the overall correctness rate; bookmarks belong to the student.
func BuildReview(set domain.Set, last domain.Attempt, setAttempts []domain.Attempt, bookmarks []domain.Bookmark, filter ReviewFilter) Review {
	leaves := domain.Flatten(set.Questions)
	count := len(leaves)
	if count == 0 {
		count = 1
	}
	review := Review{
		SetID:                    set.ID,
		SetName:                  set.Name,
		Attempt:                  last,
		Total:                    len(leaves),
		ApproxSecondsPerQuestion: roundHalfUp(float64(last.DurationSeconds) / float64(count)),
		Items:                    []ReviewItem{},
	}

	chosen := make(map[string]*int, len(last.Answers))
	for _, ans := range last.Answers {
		chosen[ans.QuestionID] = ans.ChosenIndex
	}
	marked := make(map[string]bool, len(bookmarks))
	for _, b := range bookmarks {
		marked[b.QuestionID] = true
	}
	passages := paragraphTexts(set.Questions)
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	for i, q := range leaves {
		if query != "" &&
			!strings.Contains(strings.ToLower(q.Text), query) &&
			!strings.Contains(strings.ToLower(q.Justification), query) {
			continue
		}
		pick := chosen[q.ID]
		correct := q.IsCorrect(pick)
		if filter.IncorrectOnly && (pick == nil || correct) {
			continue
		}
		review.Items = append(review.Items, ReviewItem{
			Number:        i + 1,
			Question:      q,
			ChosenIndex:   pick,
			Correct:       correct,
			OverallRate:   QuestionCorrectRate(q, set.ID, setAttempts).Percent,
			Bookmarked:    marked[q.ID],
			ParagraphText: passages[q.ID],
		})
	}
	return review
}

func paragraphTexts(questions []domain.Question) map[string]string {
	out := make(map[string]string)
	for _, q := range questions {
		if p, ok := q.(domain.ParagraphQuestion); ok {
			for _, child := range p.Questions {
				out[child.ID] = p.Paragraph
			}
		}
	}
	return out
}
