package app

import (
	"context"

	"exam-delivery-service/internal/domain"
)

// UserRepository stores accounts.
type UserRepository interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, userID string) (domain.User, error)
	// FindUserByEmail matches case-insensitively and returns domain.ErrUserNotFound on miss.
	FindUserByEmail(ctx context.Context, email string) (domain.User, error)
	// RegisterUser returns domain.ErrEmailTaken when the email is in use.
	RegisterUser(ctx context.Context, user domain.User) (domain.User, error)
	UpdateUserStatus(ctx context.Context, userID string, status domain.UserStatus) error
}

// SetRepository stores question sets and their questions.
type SetRepository interface {
	ListSets(ctx context.Context) ([]domain.Set, error)
	// ListSetsForUser returns only sets the user holds an assignment for.
	ListSetsForUser(ctx context.Context, userID string) ([]domain.Set, error)
	GetSet(ctx context.Context, setID string) (domain.Set, error)
	CreateSet(ctx context.Context, set domain.Set) (domain.Set, error)
	RenameSet(ctx context.Context, setID, name string) error
	// DeleteSet removes the set, its questions and every assignment on it.
	DeleteSet(ctx context.Context, setID string) error
	AddQuestion(ctx context.Context, setID string, question domain.Question) error
	DeleteQuestion(ctx context.Context, setID, questionID string) error
}

// AssignmentRepository stores user-to-set bindings.
type AssignmentRepository interface {
	ListAssignmentsForUser(ctx context.Context, userID string) ([]domain.Assignment, error)
	ListAssignments(ctx context.Context) ([]domain.Assignment, error)
	GetAssignment(ctx context.Context, assignmentID string) (domain.Assignment, error)
	// CreateAssignment returns domain.ErrAssignmentExists for a duplicate (user, set) pair.
	CreateAssignment(ctx context.Context, assignment domain.Assignment) (domain.Assignment, error)
}

// AttemptRepository is an append-only log of finished attempts.
type AttemptRepository interface {
	ListAttemptsForUser(ctx context.Context, userID string) ([]domain.Attempt, error)
	ListAttempts(ctx context.Context) ([]domain.Attempt, error)
	RecordAttempt(ctx context.Context, attempt domain.Attempt) error
}

// BookmarkRepository stores per-student question bookmarks.
type BookmarkRepository interface {
	ListBookmarks(ctx context.Context, userID string) ([]domain.Bookmark, error)
	// ToggleBookmark removes an existing (user, question) bookmark or creates it,
	// reporting whether the question is bookmarked afterwards.
	ToggleBookmark(ctx context.Context, bookmark domain.Bookmark) (bool, error)
}

// SettingsRepository stores the singleton policy defaults.
type SettingsRepository interface {
	GetSettings(ctx context.Context) (domain.Settings, error)
	SaveSettings(ctx context.Context, settings domain.Settings) error
}

// AuditRepository is a bounded, newest-first audit trail.
type AuditRepository interface {
	AppendAudit(ctx context.Context, entry domain.AuditEntry) error
	ListAudit(ctx context.Context) ([]domain.AuditEntry, error)
	ClearAudit(ctx context.Context) error
}

// Repository is the full storage contract. Memory, Redis and SQL backends
// implement it; one is chosen at startup.
type Repository interface {
	UserRepository
	SetRepository
	AssignmentRepository
	AttemptRepository
	BookmarkRepository
	SettingsRepository
	AuditRepository
}

// SessionRepository holds live attempt sessions, one per student.
type SessionRepository interface {
	GetOrCreate(userID string, create func() *AttemptSession) *AttemptSession
	Get(userID string) (*AttemptSession, bool)
	// DeleteIfIdle drops the session once it has returned to Idle.
	DeleteIfIdle(userID string)
}

// LivenessChecker is implemented by session stores shared between instances.
// Live reports whether a non-idle session for the user exists anywhere.
type LivenessChecker interface {
	Live(ctx context.Context, userID string) (bool, error)
}
