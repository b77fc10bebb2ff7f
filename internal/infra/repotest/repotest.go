// Package repotest holds behaviour checks shared by every app.Repository backend.
package repotest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"exam-delivery-service/internal/app"
	"exam-delivery-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises the repository contract against a fresh backend per subtest.
func Run(t *testing.T, newRepo func(t *testing.T) app.Repository) {
	t.Run("users", func(t *testing.T) { testUsers(t, newRepo(t)) })
	t.Run("sets and questions", func(t *testing.T) { testSets(t, newRepo(t)) })
	t.Run("delete set cascades", func(t *testing.T) { testDeleteSetCascades(t, newRepo(t)) })
	t.Run("assignments", func(t *testing.T) { testAssignments(t, newRepo(t)) })
	t.Run("attempts", func(t *testing.T) { testAttempts(t, newRepo(t)) })
	t.Run("bookmarks toggle", func(t *testing.T) { testBookmarks(t, newRepo(t)) })
	t.Run("settings", func(t *testing.T) { testSettings(t, newRepo(t)) })
	t.Run("audit ring", func(t *testing.T) { testAudit(t, newRepo(t)) })
}

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

// Student returns a student fixture.
func Student(id, email string) domain.User {
	return domain.User{
		ID:           id,
		Name:         "Student " + id,
		Email:        email,
		Role:         domain.RoleStudent,
		RegisteredAt: base,
		Age:          intPtr(20),
		Status:       domain.UserActive,
		PasswordHash: "$2a$10$hash",
	}
}

// MixedSet returns a set with an MCQ followed by a two-question paragraph.
func MixedSet(id string) domain.Set {
	return domain.Set{
		ID:        id,
		Name:      "Set " + id,
		CreatedAt: base,
		Questions: domain.QuestionList{
			domain.MCQQuestion{
				ID:            id + "-q1",
				Text:          "What is 2 + 2?",
				Options:       []string{"3", "4", "5", "22"},
				CorrectIndex:  1,
				Justification: "2+2 equals 4.",
				Media:         &domain.MediaAttachment{Kind: domain.MediaImage, Ref: "media/sum.png"},
			},
			domain.ParagraphQuestion{
				ID:        id + "-p1",
				Paragraph: "Read the passage.",
				Questions: []domain.MCQQuestion{
					{ID: id + "-p1-a", Text: "Main idea?", Options: []string{"A", "B", "C"}, CorrectIndex: 2},
					{ID: id + "-p1-b", Text: "Tone?", Options: []string{"Neutral", "Critical"}, CorrectIndex: 0},
				},
			},
		},
	}
}

func testUsers(t *testing.T, repo app.Repository) {
	ctx := context.Background()
	_, err := repo.RegisterUser(ctx, Student("u1", "aisha@student.com"))
	require.NoError(t, err)

	_, err = repo.RegisterUser(ctx, Student("u2", "AISHA@student.com"))
	require.ErrorIs(t, err, domain.ErrEmailTaken)

	found, err := repo.FindUserByEmail(ctx, "Aisha@Student.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", found.ID)
	assert.Equal(t, "$2a$10$hash", found.PasswordHash)
	require.NotNil(t, found.Age)
	assert.Equal(t, 20, *found.Age)

	_, err = repo.FindUserByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	require.NoError(t, repo.UpdateUserStatus(ctx, "u1", domain.UserInactive))
	got, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.UserInactive, got.Status)

	require.ErrorIs(t, repo.UpdateUserStatus(ctx, "missing", domain.UserActive), domain.ErrUserNotFound)

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func testSets(t *testing.T, repo app.Repository) {
	ctx := context.Background()
	_, err := repo.CreateSet(ctx, MixedSet("s1"))
	require.NoError(t, err)

	set, err := repo.GetSet(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, set.Questions, 2)
	mcq, ok := set.Questions[0].(domain.MCQQuestion)
	require.True(t, ok, "first question should be an MCQ")
	assert.Equal(t, []string{"3", "4", "5", "22"}, mcq.Options)
	assert.Equal(t, 1, mcq.CorrectIndex)
	require.NotNil(t, mcq.Media)
	assert.Equal(t, domain.MediaImage, mcq.Media.Kind)
	para, ok := set.Questions[1].(domain.ParagraphQuestion)
	require.True(t, ok, "second question should be a paragraph")
	require.Len(t, para.Questions, 2)
	assert.Equal(t, "s1-p1-a", para.Questions[0].ID)
	assert.Equal(t, 2, para.Questions[0].CorrectIndex)

	require.NoError(t, repo.RenameSet(ctx, "s1", "Renamed"))
	require.ErrorIs(t, repo.RenameSet(ctx, "missing", "x"), domain.ErrSetNotFound)

	extra := domain.MCQQuestion{ID: "s1-q2", Text: "Capital of France?", Options: []string{"Berlin", "Paris"}, CorrectIndex: 1}
	require.NoError(t, repo.AddQuestion(ctx, "s1", extra))
	require.ErrorIs(t, repo.AddQuestion(ctx, "missing", extra), domain.ErrSetNotFound)

	set, err = repo.GetSet(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", set.Name)
	require.Len(t, set.Questions, 3)
	assert.Equal(t, "s1-q2", set.Questions[2].QuestionID())

	require.NoError(t, repo.DeleteQuestion(ctx, "s1", "s1-p1"))
	require.ErrorIs(t, repo.DeleteQuestion(ctx, "s1", "s1-p1"), domain.ErrQuestionNotFound)
	set, err = repo.GetSet(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, set.Questions, 2)
	assert.Equal(t, "s1-q1", set.Questions[0].QuestionID())
	assert.Equal(t, "s1-q2", set.Questions[1].QuestionID())

	_, err = repo.GetSet(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrSetNotFound)
}

func testDeleteSetCascades(t *testing.T, repo app.Repository) {
	ctx := context.Background()
	_, err := repo.RegisterUser(ctx, Student("u1", "u1@student.com"))
	require.NoError(t, err)
	_, err = repo.CreateSet(ctx, MixedSet("s1"))
	require.NoError(t, err)
	_, err = repo.CreateSet(ctx, MixedSet("s2"))
	require.NoError(t, err)
	for _, setID := range []string{"s1", "s2"} {
		_, err = repo.CreateAssignment(ctx, domain.Assignment{
			ID: "a-" + setID, UserID: "u1", SetID: setID, TimeLimitMinutes: 30, PassPercent: 50, MaxAttempts: 2,
		})
		require.NoError(t, err)
	}

	require.NoError(t, repo.DeleteSet(ctx, "s1"))
	require.ErrorIs(t, repo.DeleteSet(ctx, "s1"), domain.ErrSetNotFound)

	_, err = repo.GetSet(ctx, "s1")
	require.ErrorIs(t, err, domain.ErrSetNotFound)
	mine, err := repo.ListAssignmentsForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "s2", mine[0].SetID)
	_, err = repo.GetAssignment(ctx, "a-s1")
	require.ErrorIs(t, err, domain.ErrAssignmentNotFound)

	sets, err := repo.ListSetsForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "s2", sets[0].ID)
}

func testAssignments(t *testing.T, repo app.Repository) {
	ctx := context.Background()
	_, err := repo.CreateSet(ctx, MixedSet("s1"))
	require.NoError(t, err)
	start := base.Add(time.Hour)
	end := base.Add(48 * time.Hour)
	a := domain.Assignment{
		ID: "a1", UserID: "u1", SetID: "s1", TimeLimitMinutes: 15, PassPercent: 60, MaxAttempts: 3,
		AvailabilityStart: &start, AvailabilityEnd: &end,
	}
	_, err = repo.CreateAssignment(ctx, a)
	require.NoError(t, err)

	dup := a
	dup.ID = "a2"
	_, err = repo.CreateAssignment(ctx, dup)
	require.ErrorIs(t, err, domain.ErrAssignmentExists)

	got, err := repo.GetAssignment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 15, got.TimeLimitMinutes)
	assert.Equal(t, 60, got.PassPercent)
	assert.Equal(t, 3, got.MaxAttempts)
	require.NotNil(t, got.AvailabilityStart)
	assert.True(t, start.Equal(*got.AvailabilityStart))
	require.NotNil(t, got.AvailabilityEnd)
	assert.True(t, end.Equal(*got.AvailabilityEnd))

	all, err := repo.ListAssignments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	none, err := repo.ListAssignmentsForUser(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testAttempts(t *testing.T, repo app.Repository) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		user := "u1"
		if i == 2 {
			user = "u2"
		}
		chosen := i
		err := repo.RecordAttempt(ctx, domain.Attempt{
			ID:              fmt.Sprintf("att-%d", i),
			UserID:          user,
			SetID:           "s1",
			Timestamp:       base.Add(time.Duration(i) * time.Minute),
			Score:           i,
			Percentage:      i * 25,
			Pass:            i > 0,
			DurationSeconds: 60 + i,
			Answers: []domain.AttemptAnswer{
				{QuestionID: "q1", ChosenIndex: &chosen, TimeSpentSeconds: intPtr(12)},
				{QuestionID: "q2"},
			},
		})
		require.NoError(t, err)
	}

	all, err := repo.ListAttempts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	mine, err := repo.ListAttemptsForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	var second domain.Attempt
	for _, a := range mine {
		if a.ID == "att-1" {
			second = a
		}
	}
	assert.Equal(t, 25, second.Percentage)
	assert.True(t, second.Pass)
	assert.Equal(t, 61, second.DurationSeconds)
	assert.True(t, base.Add(time.Minute).Equal(second.Timestamp))
	require.Len(t, second.Answers, 2)
	assert.Equal(t, "q1", second.Answers[0].QuestionID)
	require.NotNil(t, second.Answers[0].ChosenIndex)
	assert.Equal(t, 1, *second.Answers[0].ChosenIndex)
	require.NotNil(t, second.Answers[0].TimeSpentSeconds)
	assert.Equal(t, 12, *second.Answers[0].TimeSpentSeconds)
	assert.Nil(t, second.Answers[1].ChosenIndex)
}

func testBookmarks(t *testing.T, repo app.Repository) {
	ctx := context.Background()
	b := domain.Bookmark{ID: "b1", UserID: "u1", SetID: "s1", QuestionID: "q1", Timestamp: base}

	on, err := repo.ToggleBookmark(ctx, b)
	require.NoError(t, err)
	assert.True(t, on)
	list, err := repo.ListBookmarks(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "q1", list[0].QuestionID)

	b.ID = "b2"
	on, err = repo.ToggleBookmark(ctx, b)
	require.NoError(t, err)
	assert.False(t, on)
	list, err = repo.ListBookmarks(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testSettings(t *testing.T, repo app.Repository) {
	ctx := context.Background()
	got, err := repo.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), got)

	want := domain.Settings{DefaultTimeLimitMinutes: 45, DefaultPassPercent: 70, DefaultMaxAttempts: 1}
	require.NoError(t, repo.SaveSettings(ctx, want))
	require.NoError(t, repo.SaveSettings(ctx, want))
	got, err = repo.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func testAudit(t *testing.T, repo app.Repository) {
	ctx := context.Background()
	total := domain.AuditCapacity + 5
	for i := 0; i < total; i++ {
		require.NoError(t, repo.AppendAudit(ctx, domain.AuditEntry{
			ID:        fmt.Sprintf("e-%03d", i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Actor:     "admin@example.com",
			Action:    "set_create",
			Details:   fmt.Sprintf("n=%d", i),
		}))
	}

	entries, err := repo.ListAudit(ctx)
	require.NoError(t, err)
	require.Len(t, entries, domain.AuditCapacity)
	assert.Equal(t, fmt.Sprintf("e-%03d", total-1), entries[0].ID)
	assert.Equal(t, "e-005", entries[len(entries)-1].ID)

	require.NoError(t, repo.ClearAudit(ctx))
	entries, err = repo.ListAudit(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
