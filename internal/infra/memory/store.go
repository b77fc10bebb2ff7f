package memory

import (
	"context"
	"strings"
	"sync"

	"exam-delivery-service/internal/domain"
)

// Store is an in-process implementation of app.Repository. Values are copied
// in and out so callers never share slices with the store.
type Store struct {
	mu          sync.RWMutex
	users       []domain.User
	sets        []domain.Set
	assignments []domain.Assignment
	attempts    []domain.Attempt
	bookmarks   []domain.Bookmark
	settings    domain.Settings
	audit       []domain.AuditEntry
}

func NewStore() *Store {
	return &Store{settings: domain.DefaultSettings()}
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.User{}, s.users...), nil
}

func (s *Store) GetUser(_ context.Context, userID string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (s *Store) RegisterUser(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return domain.User{}, domain.ErrEmailTaken
		}
	}
	s.users = append(s.users, user)
	return user, nil
}

func (s *Store) UpdateUserStatus(_ context.Context, userID string, status domain.UserStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].ID == userID {
			s.users[i].Status = status
			return nil
		}
	}
	return domain.ErrUserNotFound
}

func (s *Store) ListSets(_ context.Context) ([]domain.Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Set, 0, len(s.sets))
	for _, set := range s.sets {
		out = append(out, copySet(set))
	}
	return out, nil
}

func (s *Store) ListSetsForUser(_ context.Context, userID string) ([]domain.Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assigned := make(map[string]bool)
	for _, a := range s.assignments {
		if a.UserID == userID {
			assigned[a.SetID] = true
		}
	}
	out := make([]domain.Set, 0, len(assigned))
	for _, set := range s.sets {
		if assigned[set.ID] {
			out = append(out, copySet(set))
		}
	}
	return out, nil
}

func (s *Store) GetSet(_ context.Context, setID string) (domain.Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.setIndex(setID); i >= 0 {
		return copySet(s.sets[i]), nil
	}
	return domain.Set{}, domain.ErrSetNotFound
}

func (s *Store) CreateSet(_ context.Context, set domain.Set) (domain.Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set.Questions == nil {
		set.Questions = domain.QuestionList{}
	}
	s.sets = append(s.sets, copySet(set))
	return copySet(set), nil
}

func (s *Store) RenameSet(_ context.Context, setID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.setIndex(setID)
	if i < 0 {
		return domain.ErrSetNotFound
	}
	s.sets[i].Name = name
	return nil
}

func (s *Store) DeleteSet(_ context.Context, setID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.setIndex(setID)
	if i < 0 {
		return domain.ErrSetNotFound
	}
	s.sets = append(s.sets[:i], s.sets[i+1:]...)

	kept := s.assignments[:0]
	for _, a := range s.assignments {
		if a.SetID != setID {
			kept = append(kept, a)
		}
	}
	s.assignments = kept
	return nil
}

func (s *Store) AddQuestion(_ context.Context, setID string, question domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.setIndex(setID)
	if i < 0 {
		return domain.ErrSetNotFound
	}
	s.sets[i].Questions = append(s.sets[i].Questions, copyQuestion(question))
	return nil
}

func (s *Store) DeleteQuestion(_ context.Context, setID, questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.setIndex(setID)
	if i < 0 {
		return domain.ErrSetNotFound
	}
	questions := s.sets[i].Questions
	for j, q := range questions {
		if q.QuestionID() == questionID {
			s.sets[i].Questions = append(questions[:j:j], questions[j+1:]...)
			return nil
		}
	}
	return domain.ErrQuestionNotFound
}

func (s *Store) setIndex(setID string) int {
	for i, set := range s.sets {
		if set.ID == setID {
			return i
		}
	}
	return -1
}

func (s *Store) ListAssignmentsForUser(_ context.Context, userID string) ([]domain.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Assignment{}
	for _, a := range s.assignments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) ListAssignments(_ context.Context) ([]domain.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Assignment{}, s.assignments...), nil
}

func (s *Store) GetAssignment(_ context.Context, assignmentID string) (domain.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.assignments {
		if a.ID == assignmentID {
			return a, nil
		}
	}
	return domain.Assignment{}, domain.ErrAssignmentNotFound
}

func (s *Store) CreateAssignment(_ context.Context, assignment domain.Assignment) (domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setIndex(assignment.SetID) < 0 {
		return domain.Assignment{}, domain.ErrSetNotFound
	}
	for _, a := range s.assignments {
		if a.UserID == assignment.UserID && a.SetID == assignment.SetID {
			return domain.Assignment{}, domain.ErrAssignmentExists
		}
	}
	s.assignments = append(s.assignments, assignment)
	return assignment, nil
}

func (s *Store) ListAttemptsForUser(_ context.Context, userID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Attempt{}
	for _, a := range s.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) ListAttempts(_ context.Context) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Attempt{}, s.attempts...), nil
}

// RecordAttempt appends; recording the same attempt ID twice is a no-op.
func (s *Store) RecordAttempt(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.ID == attempt.ID {
			return nil
		}
	}
	attempt.Answers = append([]domain.AttemptAnswer(nil), attempt.Answers...)
	s.attempts = append(s.attempts, attempt)
	return nil
}

func (s *Store) ListBookmarks(_ context.Context, userID string) ([]domain.Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Bookmark{}
	for _, b := range s.bookmarks {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) ToggleBookmark(_ context.Context, bookmark domain.Bookmark) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, b := range s.bookmarks {
		if b.UserID == bookmark.UserID && b.QuestionID == bookmark.QuestionID {
			s.bookmarks = append(s.bookmarks[:i], s.bookmarks[i+1:]...)
			return false, nil
		}
	}
	s.bookmarks = append(s.bookmarks, bookmark)
	return true, nil
}

func (s *Store) GetSettings(_ context.Context) (domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

func (s *Store) SaveSettings(_ context.Context, settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

// AppendAudit keeps entries newest first, trimmed to domain.AuditCapacity.
func (s *Store) AppendAudit(_ context.Context, entry domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append([]domain.AuditEntry{entry}, s.audit...)
	if len(s.audit) > domain.AuditCapacity {
		s.audit = s.audit[:domain.AuditCapacity]
	}
	return nil
}

func (s *Store) ListAudit(_ context.Context) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AuditEntry{}, s.audit...), nil
}

func (s *Store) ClearAudit(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = nil
	return nil
}

func copySet(set domain.Set) domain.Set {
	out := set
	out.Questions = make(domain.QuestionList, 0, len(set.Questions))
	for _, q := range set.Questions {
		out.Questions = append(out.Questions, copyQuestion(q))
	}
	return out
}

func copyQuestion(q domain.Question) domain.Question {
	switch v := q.(type) {
	case domain.MCQQuestion:
		return v.WithOptions(v.Options)
	case domain.ParagraphQuestion:
		children := make([]domain.MCQQuestion, 0, len(v.Questions))
		for _, child := range v.Questions {
			children = append(children, child.WithOptions(child.Options))
		}
		v.Questions = children
		return v
	default:
		return q
	}
}
