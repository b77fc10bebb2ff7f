package domain

import "time"

// Role distinguishes administrators from students.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// UserStatus marks whether a user may take part in exams.
type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
)

// User is a registered account. PasswordHash is a bcrypt digest and is never
// rendered.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         Role       `json:"role"`
	RegisteredAt time.Time  `json:"registeredAt"`
	Age          *int       `json:"age,omitempty"`
	Status       UserStatus `json:"status"`
	PasswordHash string     `json:"-"`
}

// Set is a named, ordered collection of questions.
type Set struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"createdAt"`
	Questions QuestionList `json:"questions"`
}

// Assignment binds one student to one set with an exam policy.
type Assignment struct {
	ID                string     `json:"id"`
	UserID            string     `json:"userId"`
	SetID             string     `json:"setId"`
	TimeLimitMinutes  int        `json:"timeLimitMinutes"`
	PassPercent       int        `json:"passPercent"`
	MaxAttempts       int        `json:"maxAttempts"`
	AvailabilityStart *time.Time `json:"availabilityStart,omitempty"`
	AvailabilityEnd   *time.Time `json:"availabilityEnd,omitempty"`
}

// Available reports whether t falls inside the optional availability window.
func (a Assignment) Available(t time.Time) bool {
	if a.AvailabilityStart != nil && t.Before(*a.AvailabilityStart) {
		return false
	}
	if a.AvailabilityEnd != nil && t.After(*a.AvailabilityEnd) {
		return false
	}
	return true
}

// AttemptAnswer is the recorded choice for one leaf question. ChosenIndex is
// nil when the question was left unanswered.
type AttemptAnswer struct {
	QuestionID       string `json:"questionId"`
	ChosenIndex      *int   `json:"chosenIndex"`
	TimeSpentSeconds *int   `json:"timeSpentSeconds,omitempty"`
}

// Attempt is an immutable record of one submitted exam session.
type Attempt struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	SetID           string          `json:"setId"`
	Timestamp       time.Time       `json:"timestamp"`
	Score           int             `json:"score"`
	Percentage      int             `json:"percentage"`
	Pass            bool            `json:"pass"`
	DurationSeconds int             `json:"durationSeconds"`
	Answers         []AttemptAnswer `json:"answers"`
}

// Bookmark marks a question for later reference; unique per (user, question).
type Bookmark struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	SetID      string    `json:"setId"`
	QuestionID string    `json:"questionId"`
	Timestamp  time.Time `json:"timestamp"`
}

// AuditCapacity bounds the audit ring; older entries are dropped.
const AuditCapacity = 500

// AuditEntry is one line of the administrative audit trail.
type AuditEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor,omitempty"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
}

// Settings holds the policy defaults applied to new assignments.
type Settings struct {
	DefaultTimeLimitMinutes int `json:"defaultTimeLimitMinutes"`
	DefaultPassPercent      int `json:"defaultPassPercent"`
	DefaultMaxAttempts      int `json:"defaultMaxAttempts"`
}

// DefaultSettings mirrors a fresh installation.
func DefaultSettings() Settings {
	return Settings{
		DefaultTimeLimitMinutes: 30,
		DefaultPassPercent:      50,
		DefaultMaxAttempts:      2,
	}
}
