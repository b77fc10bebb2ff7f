package app

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"exam-delivery-service/internal/domain"
	"github.com/google/uuid"
)

// ExamService contains the student-facing use cases.
type ExamService struct {
	repo       Repository
	sessions   SessionRepository
	now        func() time.Time
	newSession func(userID string) *AttemptSession
}

func NewExamService(repo Repository, sessions SessionRepository) *ExamService {
	return NewExamServiceWithClock(repo, sessions, time.Now, secondTicker)
}

// NewExamServiceWithClock is test-only for deterministic time and countdown ticks.
func NewExamServiceWithClock(repo Repository, sessions SessionRepository, now func() time.Time, ticker TickerFunc) *ExamService {
	return &ExamService{
		repo:     repo,
		sessions: sessions,
		now:      now,
		newSession: func(userID string) *AttemptSession {
			return NewAttemptSessionWithClock(userID, repo, now, ticker)
		},
	}
}

// DashboardRow is one assigned set as seen by the student.
type DashboardRow struct {
	Assignment     domain.Assignment `json:"assignment"`
	SetName        string            `json:"setName"`
	QuestionCount  int               `json:"questionCount"`
	Used           int               `json:"used"`
	Remaining      int               `json:"remaining"`
	ReviewUnlocked bool              `json:"reviewUnlocked"`
	Available      bool              `json:"available"`
	LastAttempt    *domain.Attempt   `json:"lastAttempt,omitempty"`
}

// Dashboard is a student's assignments and personal totals.
type Dashboard struct {
	UserID  string         `json:"userId"`
	Rows    []DashboardRow `json:"rows"`
	Summary Summary        `json:"summary"`
}

// Dashboard lists the student's assignments. Assignments on deleted sets are skipped.
func (s *ExamService) Dashboard(ctx context.Context, userID string) (Dashboard, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return Dashboard{}, err
	}
	assignments, err := s.repo.ListAssignmentsForUser(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	attempts, err := s.repo.ListAttemptsForUser(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}

	now := s.now()
	rows := make([]DashboardRow, 0, len(assignments))
	for _, a := range assignments {
		set, err := s.repo.GetSet(ctx, a.SetID)
		if errors.Is(err, domain.ErrSetNotFound) {
			continue
		}
		if err != nil {
			return Dashboard{}, err
		}
		used := AttemptsUsed(attempts, userID, a.SetID)
		row := DashboardRow{
			Assignment:     a,
			SetName:        set.Name,
			QuestionCount:  len(domain.Flatten(set.Questions)),
			Used:           used,
			Remaining:      AttemptsRemaining(a, used),
			ReviewUnlocked: ReviewUnlocked(a, used),
			Available:      a.Available(now),
		}
		if last, ok := LastAttempt(attempts, userID, a.SetID); ok {
			row.LastAttempt = &last
		}
		rows = append(rows, row)
	}
	return Dashboard{UserID: userID, Rows: rows, Summary: Summarize(attempts)}, nil
}

// StartAttempt opens an attempt on one of the student's assignments.
func (s *ExamService) StartAttempt(ctx context.Context, userID, assignmentID string) (AttemptSnapshot, error) {
	assignment, err := s.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return AttemptSnapshot{}, err
	}
	if assignment.UserID != userID {
		return AttemptSnapshot{}, domain.ErrAssignmentNotFound
	}
	set, err := s.repo.GetSet(ctx, assignment.SetID)
	if err != nil {
		return AttemptSnapshot{}, err
	}
	attempts, err := s.repo.ListAttemptsForUser(ctx, userID)
	if err != nil {
		return AttemptSnapshot{}, err
	}

	if err := s.checkElsewhere(ctx, userID); err != nil {
		return AttemptSnapshot{}, err
	}
	session := s.sessions.GetOrCreate(userID, func() *AttemptSession { return s.newSession(userID) })
	return session.Start(assignment, set, AttemptsUsed(attempts, userID, assignment.SetID))
}

// checkElsewhere refuses a start when another instance runs the student's
// attempt. A local session guards itself, and a failed lookup is only logged.
func (s *ExamService) checkElsewhere(ctx context.Context, userID string) error {
	if _, ok := s.sessions.Get(userID); ok {
		return nil
	}
	checker, ok := s.sessions.(LivenessChecker)
	if !ok {
		return nil
	}
	live, err := checker.Live(ctx, userID)
	if err != nil {
		log.Printf("session liveness for user %s: %v", userID, err)
		return nil
	}
	if live {
		return domain.ErrAttemptInProgress
	}
	return nil
}

// Choose records an answer in the running attempt.
func (s *ExamService) Choose(_ context.Context, userID, questionID string, optionIndex int) (AttemptSnapshot, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return AttemptSnapshot{}, domain.ErrNoActiveAttempt
	}
	return session.Choose(questionID, optionIndex)
}

// Submit grades the running attempt. With domain.ErrPersistFailed the result
// is still returned and can be saved later with RetryPersist.
func (s *ExamService) Submit(ctx context.Context, userID string) (AttemptResult, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return AttemptResult{}, domain.ErrNoActiveAttempt
	}
	return session.Submit(ctx)
}

// RetryPersist re-sends an unsaved result.
func (s *ExamService) RetryPersist(ctx context.Context, userID string) (AttemptResult, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return AttemptResult{}, domain.ErrNoActiveAttempt
	}
	return session.RetryPersist(ctx)
}

// Retake starts a new attempt on the assignment just submitted.
func (s *ExamService) Retake(ctx context.Context, userID string) (AttemptSnapshot, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return AttemptSnapshot{}, domain.ErrNoActiveAttempt
	}
	attempts, err := s.repo.ListAttemptsForUser(ctx, userID)
	if err != nil {
		return AttemptSnapshot{}, err
	}
	return session.Retake(AttemptsUsed(attempts, userID, session.Snapshot().SetID))
}

// Exit abandons the session and releases it.
func (s *ExamService) Exit(_ context.Context, userID string) error {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return domain.ErrNoActiveAttempt
	}
	if err := session.Exit(); err != nil {
		return err
	}
	s.sessions.DeleteIfIdle(userID)
	return nil
}

// Snapshot returns the student's current session view; Idle when none exists.
func (s *ExamService) Snapshot(_ context.Context, userID string) AttemptSnapshot {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return AttemptSnapshot{UserID: userID, State: StateIdle, Answers: map[string]int{}}
	}
	return session.Snapshot()
}

// Subscribe streams snapshots of the student's session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *ExamService) Subscribe(_ context.Context, userID string) (<-chan AttemptSnapshot, func(), error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return nil, nil, domain.ErrNoActiveAttempt
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// HistoryRow is one past attempt with its set name.
type HistoryRow struct {
	Attempt domain.Attempt `json:"attempt"`
	SetName string         `json:"setName"`
}

// History lists the student's attempts oldest first, skipping deleted sets.
func (s *ExamService) History(ctx context.Context, userID string) ([]HistoryRow, error) {
	attempts, err := s.repo.ListAttemptsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sets, err := s.repo.ListSets(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(sets))
	for _, set := range sets {
		names[set.ID] = set.Name
	}

	rows := make([]HistoryRow, 0, len(attempts))
	for _, a := range attempts {
		name, ok := names[a.SetID]
		if !ok {
			continue
		}
		rows = append(rows, HistoryRow{Attempt: a, SetName: name})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Attempt.Timestamp.Before(rows[j].Attempt.Timestamp)
	})
	return rows, nil
}

// Review returns the last attempt on a set once every attempt is spent.
func (s *ExamService) Review(ctx context.Context, userID, setID string, filter ReviewFilter) (Review, error) {
	assignments, err := s.repo.ListAssignmentsForUser(ctx, userID)
	if err != nil {
		return Review{}, err
	}
	assignment, ok := findAssignment(assignments, userID, setID)
	if !ok {
		return Review{}, domain.ErrAssignmentNotFound
	}
	set, err := s.repo.GetSet(ctx, setID)
	if err != nil {
		return Review{}, err
	}
	mine, err := s.repo.ListAttemptsForUser(ctx, userID)
	if err != nil {
		return Review{}, err
	}
	if !ReviewUnlocked(assignment, AttemptsUsed(mine, userID, setID)) {
		return Review{}, domain.ErrReviewLocked
	}
	last, _ := LastAttempt(mine, userID, setID)

	all, err := s.repo.ListAttempts(ctx)
	if err != nil {
		return Review{}, err
	}
	bookmarks, err := s.repo.ListBookmarks(ctx, userID)
	if err != nil {
		return Review{}, err
	}
	return BuildReview(set, last, FilterAttempts(all, AttemptFilter{SetID: setID}), bookmarks, filter), nil
}

// ToggleBookmark flips the bookmark on a question of the given set.
func (s *ExamService) ToggleBookmark(ctx context.Context, userID, setID, questionID string) (bool, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return false, err
	}
	set, err := s.repo.GetSet(ctx, setID)
	if err != nil {
		return false, err
	}
	if !domain.ContainsQuestion(set.Questions, questionID) {
		return false, domain.ErrQuestionNotFound
	}
	return s.repo.ToggleBookmark(ctx, domain.Bookmark{
		ID:         uuid.NewString(),
		UserID:     userID,
		SetID:      setID,
		QuestionID: questionID,
		Timestamp:  s.now(),
	})
}

// Bookmarks lists the student's bookmarks.
func (s *ExamService) Bookmarks(ctx context.Context, userID string) ([]domain.Bookmark, error) {
	return s.repo.ListBookmarks(ctx, userID)
}
