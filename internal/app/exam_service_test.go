package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"exam-delivery-service/internal/app"
	"exam-delivery-service/internal/domain"
	"exam-delivery-service/internal/infra/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ExamServiceSuite struct {
	suite.Suite
	ctx     context.Context
	repo    *memory.Store
	service *app.ExamService
}

func TestExamServiceSuite(t *testing.T) {
	suite.Run(t, new(ExamServiceSuite))
}

func (s *ExamServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = memory.NewStore()
	now := func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	never := func() (<-chan time.Time, func()) { return make(chan time.Time), func() {} }
	s.service = app.NewExamServiceWithClock(s.repo, memory.NewSessionStore(), now, never)

	for _, u := range []domain.User{
		{ID: "u1", Name: "Aisha Khan", Email: "aisha@student.com", Role: domain.RoleStudent, Status: domain.UserActive},
		{ID: "u2", Name: "Liam Chen", Email: "liam@student.com", Role: domain.RoleStudent, Status: domain.UserActive},
	} {
		_, err := s.repo.RegisterUser(s.ctx, u)
		s.Require().NoError(err)
	}
	_, err := s.repo.CreateSet(s.ctx, attemptSet())
	s.Require().NoError(err)
	_, err = s.repo.CreateAssignment(s.ctx, attemptAssignment(1))
	s.Require().NoError(err)
}

func (s *ExamServiceSuite) takeAttempt(choices map[string]int) app.AttemptResult {
	_, err := s.service.StartAttempt(s.ctx, "u1", "a1")
	s.Require().NoError(err)
	for qid, idx := range choices {
		_, err := s.service.Choose(s.ctx, "u1", qid, idx)
		s.Require().NoError(err)
	}
	result, err := s.service.Submit(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().NoError(s.service.Exit(s.ctx, "u1"))
	return result
}

func (s *ExamServiceSuite) TestDashboardTracksAttempts() {
	dash, err := s.service.Dashboard(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(dash.Rows, 1)
	row := dash.Rows[0]
	s.Equal(2, row.QuestionCount)
	s.Equal(1, row.Remaining)
	s.False(row.ReviewUnlocked)
	s.True(row.Available)
	s.Nil(row.LastAttempt)

	s.takeAttempt(map[string]int{"q1": 1})

	dash, err = s.service.Dashboard(s.ctx, "u1")
	s.Require().NoError(err)
	row = dash.Rows[0]
	s.Equal(1, row.Used)
	s.Equal(0, row.Remaining)
	s.True(row.ReviewUnlocked)
	s.Require().NotNil(row.LastAttempt)
	s.Equal(50, row.LastAttempt.Percentage)
	s.Equal(1, dash.Summary.Passed)
}

func (s *ExamServiceSuite) TestDashboardUnknownUser() {
	_, err := s.service.Dashboard(s.ctx, "nobody")
	s.ErrorIs(err, domain.ErrUserNotFound)
}

func (s *ExamServiceSuite) TestStartRejectsForeignAssignment() {
	_, err := s.service.StartAttempt(s.ctx, "u2", "a1")
	s.ErrorIs(err, domain.ErrAssignmentNotFound)
	_, err = s.service.StartAttempt(s.ctx, "u1", "missing")
	s.ErrorIs(err, domain.ErrAssignmentNotFound)
}

func (s *ExamServiceSuite) TestStartAfterExhaustion() {
	s.takeAttempt(nil)
	_, err := s.service.StartAttempt(s.ctx, "u1", "a1")
	s.ErrorIs(err, domain.ErrNoAttemptsRemaining)
	s.Equal(app.StateIdle, s.service.Snapshot(s.ctx, "u1").State)
}

func (s *ExamServiceSuite) TestNoSessionErrors() {
	_, err := s.service.Choose(s.ctx, "u1", "q1", 0)
	s.ErrorIs(err, domain.ErrNoActiveAttempt)
	_, err = s.service.Submit(s.ctx, "u1")
	s.ErrorIs(err, domain.ErrNoActiveAttempt)
	s.ErrorIs(s.service.Exit(s.ctx, "u1"), domain.ErrNoActiveAttempt)
	_, _, err = s.service.Subscribe(s.ctx, "u1")
	s.ErrorIs(err, domain.ErrNoActiveAttempt)
}

func (s *ExamServiceSuite) TestReviewLockedUntilExhausted() {
	_, err := s.service.Review(s.ctx, "u1", "s1", app.ReviewFilter{})
	s.ErrorIs(err, domain.ErrReviewLocked)

	s.takeAttempt(map[string]int{"q1": 0, "q2": 1})

	review, err := s.service.Review(s.ctx, "u1", "s1", app.ReviewFilter{IncorrectOnly: true})
	s.Require().NoError(err)
	s.Require().Len(review.Items, 1)
	s.Equal("q1", review.Items[0].Question.ID)

	_, err = s.service.Review(s.ctx, "u2", "s1", app.ReviewFilter{})
	s.ErrorIs(err, domain.ErrAssignmentNotFound)
}

func (s *ExamServiceSuite) TestHistorySkipsDeletedSets() {
	s.takeAttempt(nil)
	rows, err := s.service.History(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal("s1", rows[0].Attempt.SetID)

	s.Require().NoError(s.repo.DeleteSet(s.ctx, "s1"))
	rows, err = s.service.History(s.ctx, "u1")
	s.Require().NoError(err)
	s.Empty(rows)
}

func (s *ExamServiceSuite) TestToggleBookmark() {
	on, err := s.service.ToggleBookmark(s.ctx, "u1", "s1", "q2")
	s.Require().NoError(err)
	s.True(on)
	marks, err := s.service.Bookmarks(s.ctx, "u1")
	s.Require().NoError(err)
	s.Len(marks, 1)

	on, err = s.service.ToggleBookmark(s.ctx, "u1", "s1", "q2")
	s.Require().NoError(err)
	s.False(on)

	_, err = s.service.ToggleBookmark(s.ctx, "u1", "s1", "q9")
	s.ErrorIs(err, domain.ErrQuestionNotFound)
}

func TestExamServicePersistFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	repo := &failingAttempts{Store: memory.NewStore()}
	_, err := repo.RegisterUser(ctx, domain.User{ID: "u1", Email: "aisha@student.com", Role: domain.RoleStudent, Status: domain.UserActive})
	require.NoError(t, err)
	_, err = repo.CreateSet(ctx, attemptSet())
	require.NoError(t, err)
	_, err = repo.CreateAssignment(ctx, attemptAssignment(2))
	require.NoError(t, err)

	never := func() (<-chan time.Time, func()) { return make(chan time.Time), func() {} }
	service := app.NewExamServiceWithClock(repo, memory.NewSessionStore(), time.Now, never)
	_, err = service.StartAttempt(ctx, "u1", "a1")
	require.NoError(t, err)

	repo.fail = true
	result, err := service.Submit(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrPersistFailed)
	assert.Equal(t, 2, result.Total)
	assert.ErrorIs(t, service.Exit(ctx, "u1"), domain.ErrPersistFailed)

	repo.fail = false
	_, err = service.RetryPersist(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, service.Exit(ctx, "u1"))

	attempts, err := repo.ListAttemptsForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}

type failingAttempts struct {
	*memory.Store
	fail bool
}

func (f *failingAttempts) RecordAttempt(ctx context.Context, attempt domain.Attempt) error {
	if f.fail {
		return errors.New("connection reset")
	}
	return f.Store.RecordAttempt(ctx, attempt)
}

type sharedSessions struct {
	*memory.SessionStore
	live bool
	err  error
}

func (s *sharedSessions) Live(context.Context, string) (bool, error) {
	return s.live, s.err
}

func TestStartRefusedWhileAttemptRunsElsewhere(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore()
	_, err := repo.RegisterUser(ctx, domain.User{ID: "u1", Email: "aisha@student.com", Role: domain.RoleStudent, Status: domain.UserActive})
	require.NoError(t, err)
	_, err = repo.CreateSet(ctx, attemptSet())
	require.NoError(t, err)
	_, err = repo.CreateAssignment(ctx, attemptAssignment(2))
	require.NoError(t, err)

	sessions := &sharedSessions{SessionStore: memory.NewSessionStore(), live: true}
	never := func() (<-chan time.Time, func()) { return make(chan time.Time), func() {} }
	service := app.NewExamServiceWithClock(repo, sessions, time.Now, never)

	_, err = service.StartAttempt(ctx, "u1", "a1")
	assert.ErrorIs(t, err, domain.ErrAttemptInProgress)
	_, ok := sessions.Get("u1")
	assert.False(t, ok)

	sessions.live, sessions.err = false, errors.New("connection refused")
	snap, err := service.StartAttempt(ctx, "u1", "a1")
	require.NoError(t, err)
	assert.Equal(t, app.StateInProgress, snap.State)

	// the local session answers for itself once it exists
	sessions.live, sessions.err = true, nil
	_, err = service.StartAttempt(ctx, "u1", "a1")
	assert.ErrorIs(t, err, domain.ErrAttemptInProgress)
}
