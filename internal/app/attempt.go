package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"exam-delivery-service/internal/domain"
	"github.com/google/uuid"
)

// AttemptState is the lifecycle position of a student's session.
type AttemptState string

const (
	StateIdle       AttemptState = "idle"
	StateInProgress AttemptState = "in_progress"
	StateSubmitted  AttemptState = "submitted"
)

// AttemptRecorder durably stores a finished attempt.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt domain.Attempt) error
}

// TickerFunc returns a channel firing once per second and a stop function.
type TickerFunc func() (<-chan time.Time, func())

func secondTicker() (<-chan time.Time, func()) {
	t := time.NewTicker(time.Second)
	return t.C, t.Stop
}

const expiryPersistTimeout = 10 * time.Second

// AttemptResult is the graded attempt plus the number of questions it covered.
type AttemptResult struct {
	Attempt domain.Attempt `json:"attempt"`
	Total   int            `json:"total"`
}

// AttemptSnapshot is a read-only view of a session pushed to subscribers.
type AttemptSnapshot struct {
	UserID            string         `json:"userId"`
	State             AttemptState   `json:"state"`
	AssignmentID      string         `json:"assignmentId,omitempty"`
	SetID             string         `json:"setId,omitempty"`
	RemainingSeconds  int            `json:"remainingSeconds"`
	Answers           map[string]int `json:"answers"`
	StartedAt         *time.Time     `json:"startedAt,omitempty"`
	Result            *AttemptResult `json:"result,omitempty"`
	EndedByTimer      bool           `json:"endedByTimer"`
	Saved             bool           `json:"saved"`
	PersistError      string         `json:"persistError,omitempty"`
	AttemptsRemaining int            `json:"attemptsRemaining"`
}

// AttemptSession is the per-student state machine:
// Idle -> InProgress -> Submitted -> Idle (exit) or InProgress (retake).
type AttemptSession struct {
	userID   string
	recorder AttemptRecorder
	now      func() time.Time
	ticker   TickerFunc
	newID    func() string

	mu           sync.RWMutex
	state        AttemptState
	assignment   domain.Assignment
	leaves       []domain.MCQQuestion
	answers      map[string]int
	startedAt    time.Time
	remaining    int
	attemptsUsed int
	generation   uint64
	stopTimer    func()
	result       *AttemptResult
	endedByTimer bool
	saved        bool
	persisting   bool
	persistErr   error
	subscribers  map[chan AttemptSnapshot]struct{}
}

// NewAttemptSession creates an idle session driven by the wall clock.
func NewAttemptSession(userID string, recorder AttemptRecorder) *AttemptSession {
	return NewAttemptSessionWithClock(userID, recorder, time.Now, secondTicker)
}

// NewAttemptSessionWithClock allows deterministic time and ticks in tests.
func NewAttemptSessionWithClock(userID string, recorder AttemptRecorder, now func() time.Time, ticker TickerFunc) *AttemptSession {
	return &AttemptSession{
		userID:      userID,
		recorder:    recorder,
		now:         now,
		ticker:      ticker,
		newID:       uuid.NewString,
		state:       StateIdle,
		answers:     make(map[string]int),
		subscribers: make(map[chan AttemptSnapshot]struct{}),
	}
}

// Start begins an attempt. used is the number of attempts already recorded for
// the pair; when the guard fails the session is left untouched.
func (s *AttemptSession) Start(assignment domain.Assignment, set domain.Set, used int) (AttemptSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateInProgress {
		return s.snapshotLocked(), domain.ErrAttemptInProgress
	}
	if s.state == StateSubmitted {
		if err := s.unsavedErrLocked(); err != nil {
			return s.snapshotLocked(), err
		}
	}
	if err := CheckStart(assignment, used, s.now()); err != nil {
		return s.snapshotLocked(), err
	}
	s.startLocked(assignment, domain.Flatten(set.Questions), used)
	return s.broadcastLocked(), nil
}

// Retake starts a fresh attempt on the same assignment after a submission.
func (s *AttemptSession) Retake(used int) (AttemptSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSubmitted {
		return s.snapshotLocked(), domain.ErrAttemptNotInProgress
	}
	if err := s.unsavedErrLocked(); err != nil {
		return s.snapshotLocked(), err
	}
	if err := CheckStart(s.assignment, used, s.now()); err != nil {
		return s.snapshotLocked(), err
	}
	s.startLocked(s.assignment, s.leaves, used)
	return s.broadcastLocked(), nil
}

func (s *AttemptSession) startLocked(assignment domain.Assignment, leaves []domain.MCQQuestion, used int) {
	s.cancelTimerLocked()
	s.assignment = assignment
	s.leaves = leaves
	s.answers = make(map[string]int)
	s.startedAt = s.now()
	s.remaining = assignment.TimeLimitMinutes * 60
	s.attemptsUsed = used
	s.result = nil
	s.endedByTimer = false
	s.saved = false
	s.persisting = false
	s.persistErr = nil
	s.state = StateInProgress

	ticks, stop := s.ticker()
	done := make(chan struct{})
	var once sync.Once
	s.stopTimer = func() {
		once.Do(func() {
			close(done)
			stop()
		})
	}
	go s.countdown(s.generation, ticks, done)
}

// cancelTimerLocked stops the running countdown; any tick already in flight
// sees a newer generation and does nothing.
func (s *AttemptSession) cancelTimerLocked() {
	s.generation++
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
}

func (s *AttemptSession) countdown(gen uint64, ticks <-chan time.Time, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticks:
			attempt, expired, live := s.tick(gen)
			if !live {
				return
			}
			if expired {
				ctx, cancel := context.WithTimeout(context.Background(), expiryPersistTimeout)
				if err := s.persist(ctx, attempt); err != nil {
					log.Printf("auto-submit for user %s not saved: %v", s.userID, err)
				}
				cancel()
				return
			}
		}
	}
}

func (s *AttemptSession) tick(gen uint64) (domain.Attempt, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.state != StateInProgress {
		return domain.Attempt{}, false, false
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining > 0 {
		s.broadcastLocked()
		return domain.Attempt{}, false, true
	}
	attempt := s.finishLocked(true)
	return attempt, true, true
}

// Choose records or overwrites the answer for a leaf question.
func (s *AttemptSession) Choose(questionID string, optionIndex int) (AttemptSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInProgress {
		return s.snapshotLocked(), domain.ErrAttemptNotInProgress
	}
	var question *domain.MCQQuestion
	for i := range s.leaves {
		if s.leaves[i].ID == questionID {
			question = &s.leaves[i]
			break
		}
	}
	if question == nil {
		return s.snapshotLocked(), domain.ErrQuestionNotFound
	}
	if optionIndex < 0 || optionIndex >= len(question.Options) {
		return s.snapshotLocked(), domain.Invalid("optionIndex", fmt.Sprintf("must be within 0..%d", len(question.Options)-1))
	}
	s.answers[questionID] = optionIndex
	return s.broadcastLocked(), nil
}

// Submit grades and records the attempt. Only the first submission, manual or
// by expiry, is graded; later calls return the same result. A storage failure
// is reported as domain.ErrPersistFailed with the result still available.
func (s *AttemptSession) Submit(ctx context.Context) (AttemptResult, error) {
	s.mu.Lock()
	switch s.state {
	case StateSubmitted:
		result := *s.result
		s.mu.Unlock()
		return result, nil
	case StateInProgress:
	default:
		s.mu.Unlock()
		return AttemptResult{}, domain.ErrAttemptNotInProgress
	}
	attempt := s.finishLocked(false)
	result := *s.result
	s.mu.Unlock()

	if err := s.persist(ctx, attempt); err != nil {
		return result, err
	}
	return result, nil
}

// finishLocked grades the attempt and freezes the session in Submitted.
func (s *AttemptSession) finishLocked(byExpiry bool) domain.Attempt {
	s.cancelTimerLocked()
	submittedAt := s.now()
	scored := Score(s.leaves, s.answers, s.assignment.PassPercent, s.startedAt, submittedAt)
	attempt := domain.Attempt{
		ID:              s.newID(),
		UserID:          s.userID,
		SetID:           s.assignment.SetID,
		Timestamp:       submittedAt,
		Score:           scored.Score,
		Percentage:      scored.Percentage,
		Pass:            scored.Pass,
		DurationSeconds: scored.DurationSeconds,
		Answers:         scored.Answers,
	}
	s.state = StateSubmitted
	s.remaining = 0
	s.endedByTimer = byExpiry
	s.result = &AttemptResult{Attempt: attempt, Total: scored.Total}
	s.persisting = true
	s.broadcastLocked()
	return attempt
}

func (s *AttemptSession) persist(ctx context.Context, attempt domain.Attempt) error {
	err := s.recorder.RecordAttempt(ctx, attempt)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.persisting = false
	// the session may have been exited while the write was in flight
	if s.result == nil || s.result.Attempt.ID != attempt.ID {
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrPersistFailed, err)
		}
		return nil
	}
	if err != nil {
		s.persistErr = err
		s.broadcastLocked()
		return fmt.Errorf("%w: %v", domain.ErrPersistFailed, err)
	}
	s.saved = true
	s.persistErr = nil
	s.attemptsUsed++
	s.broadcastLocked()
	return nil
}

// RetryPersist re-sends a result whose first write failed. The attempt ID is
// unchanged so the stored record is the one the student saw.
func (s *AttemptSession) RetryPersist(ctx context.Context) (AttemptResult, error) {
	s.mu.Lock()
	if s.state != StateSubmitted || s.result == nil {
		s.mu.Unlock()
		return AttemptResult{}, domain.ErrAttemptNotInProgress
	}
	result := *s.result
	if s.saved || s.persisting {
		s.mu.Unlock()
		return result, nil
	}
	s.persisting = true
	s.mu.Unlock()

	return result, s.persist(ctx, result.Attempt)
}

// Exit abandons the session. In-progress answers are discarded without
// recording anything. A graded result that has not been saved blocks the exit
// so it cannot be lost; while the write is still running the error is
// domain.ErrSaveInProgress.
func (s *AttemptSession) Exit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
		return domain.ErrNoActiveAttempt
	case StateSubmitted:
		if err := s.unsavedErrLocked(); err != nil {
			return err
		}
	}
	s.cancelTimerLocked()
	s.state = StateIdle
	s.answers = make(map[string]int)
	s.leaves = nil
	s.result = nil
	s.remaining = 0
	s.endedByTimer = false
	s.saved = false
	s.persistErr = nil
	s.broadcastLocked()
	return nil
}

// unsavedErrLocked explains why a submitted result still holds the session.
func (s *AttemptSession) unsavedErrLocked() error {
	switch {
	case s.saved:
		return nil
	case s.persisting:
		return domain.ErrSaveInProgress
	default:
		return domain.ErrPersistFailed
	}
}

// State reports the current lifecycle position.
func (s *AttemptSession) State() AttemptState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsIdle reports whether the session holds no attempt.
func (s *AttemptSession) IsIdle() bool {
	return s.State() == StateIdle
}

// Snapshot returns the current view of the session.
func (s *AttemptSession) Snapshot() AttemptSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel of snapshots starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *AttemptSession) Subscribe() (<-chan AttemptSnapshot, func()) {
	ch := make(chan AttemptSnapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	// the buffer is empty, so this cannot block
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *AttemptSession) broadcastLocked() AttemptSnapshot {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// slow reader: drop the oldest update
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}

func (s *AttemptSession) snapshotLocked() AttemptSnapshot {
	answers := make(map[string]int, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	snap := AttemptSnapshot{
		UserID:            s.userID,
		State:             s.state,
		RemainingSeconds:  s.remaining,
		Answers:           answers,
		EndedByTimer:      s.endedByTimer,
		Saved:             s.saved,
		AttemptsRemaining: AttemptsRemaining(s.assignment, s.attemptsUsed),
	}
	if s.state != StateIdle {
		startedAt := s.startedAt
		snap.StartedAt = &startedAt
		snap.AssignmentID = s.assignment.ID
		snap.SetID = s.assignment.SetID
	}
	if s.result != nil {
		result := *s.result
		snap.Result = &result
	}
	if s.persistErr != nil {
		snap.PersistError = s.persistErr.Error()
	}
	return snap
}
