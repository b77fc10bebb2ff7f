package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type userRow struct {
	bun.BaseModel `bun:"table:users"`

	ID           string    `bun:"id,pk"`
	Name         string    `bun:"name,notnull"`
	Email        string    `bun:"email,notnull"`
	EmailKey     string    `bun:"email_key,notnull,unique"`
	Role         string    `bun:"role,notnull"`
	Status       string    `bun:"status,notnull"`
	Age          *int      `bun:"age"`
	PasswordHash string    `bun:"password_hash,notnull"`
	RegisteredAt time.Time `bun:"registered_at,notnull"`
}

type setRow struct {
	bun.BaseModel `bun:"table:question_sets"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// questionRow stores both variants. Paragraph children point at their
// paragraph through ParentID; top-level rows leave it empty.
type questionRow struct {
	bun.BaseModel `bun:"table:questions"`

	ID            string `bun:"id,pk"`
	SetID         string `bun:"set_id,notnull"`
	ParentID      string `bun:"parent_id,notnull"`
	Position      int    `bun:"position,notnull"`
	Kind          string `bun:"kind,notnull"`
	Text          string `bun:"text,notnull"`
	CorrectIndex  int    `bun:"correct_index,notnull"`
	Justification string `bun:"justification,notnull"`
	MediaKind     string `bun:"media_kind,notnull"`
	MediaRef      string `bun:"media_ref,notnull"`
}

type optionRow struct {
	bun.BaseModel `bun:"table:question_options"`

	QuestionID string `bun:"question_id,pk"`
	Position   int    `bun:"position,pk"`
	Text       string `bun:"text,notnull"`
}

type assignmentRow struct {
	bun.BaseModel `bun:"table:assignments"`

	ID                string     `bun:"id,pk"`
	UserID            string     `bun:"user_id,notnull,unique:assignment_pair"`
	SetID             string     `bun:"set_id,notnull,unique:assignment_pair"`
	TimeLimitMinutes  int        `bun:"time_limit_minutes,notnull"`
	PassPercent       int        `bun:"pass_percent,notnull"`
	MaxAttempts       int        `bun:"max_attempts,notnull"`
	AvailabilityStart *time.Time `bun:"availability_start"`
	AvailabilityEnd   *time.Time `bun:"availability_end"`
}

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts"`

	ID              string    `bun:"id,pk"`
	UserID          string    `bun:"user_id,notnull"`
	SetID           string    `bun:"set_id,notnull"`
	Timestamp       time.Time `bun:"submitted_at,notnull"`
	Score           int       `bun:"score,notnull"`
	Percentage      int       `bun:"percentage,notnull"`
	Pass            bool      `bun:"pass,notnull"`
	DurationSeconds int       `bun:"duration_seconds,notnull"`
}

type answerRow struct {
	bun.BaseModel `bun:"table:attempt_answers"`

	AttemptID        string `bun:"attempt_id,pk"`
	Position         int    `bun:"position,pk"`
	QuestionID       string `bun:"question_id,notnull"`
	ChosenIndex      *int   `bun:"chosen_index"`
	TimeSpentSeconds *int   `bun:"time_spent_seconds"`
}

type bookmarkRow struct {
	bun.BaseModel `bun:"table:bookmarks"`

	UserID     string    `bun:"user_id,pk"`
	QuestionID string    `bun:"question_id,pk"`
	ID         string    `bun:"id,notnull"`
	SetID      string    `bun:"set_id,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}

// settingsRow is a singleton keyed by settingsID.
type settingsRow struct {
	bun.BaseModel `bun:"table:settings"`

	ID                      int `bun:"id,pk"`
	DefaultTimeLimitMinutes int `bun:"default_time_limit_minutes,notnull"`
	DefaultPassPercent      int `bun:"default_pass_percent,notnull"`
	DefaultMaxAttempts      int `bun:"default_max_attempts,notnull"`
}

const settingsID = 1

// auditRow orders entries by Seq; the public entry id is kept alongside.
type auditRow struct {
	bun.BaseModel `bun:"table:audit_logs"`

	Seq       int64     `bun:"seq,pk,autoincrement"`
	EntryID   string    `bun:"entry_id,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	Actor     string    `bun:"actor,notnull"`
	Action    string    `bun:"action,notnull"`
	Details   string    `bun:"details,notnull"`
}

// Models lists every table in creation order.
func Models() []any {
	return []any{
		(*userRow)(nil),
		(*setRow)(nil),
		(*questionRow)(nil),
		(*optionRow)(nil),
		(*assignmentRow)(nil),
		(*attemptRow)(nil),
		(*answerRow)(nil),
		(*bookmarkRow)(nil),
		(*settingsRow)(nil),
		(*auditRow)(nil),
	}
}
