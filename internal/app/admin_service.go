package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"exam-delivery-service/internal/domain"
	"github.com/google/uuid"
)

// Audit action labels.
const (
	ActionSetCreate       = "set_create"
	ActionSetRename       = "set_rename"
	ActionSetDelete       = "set_delete"
	ActionQuestionAddMCQ  = "question_add_mcq"
	ActionQuestionAddPara = "question_add_paragraph"
	ActionQuestionDelete  = "question_delete"
	ActionBulkDuplicate   = "bulk_duplicate"
	ActionBulkMove        = "bulk_move"
	ActionBulkDelete      = "bulk_delete"
	ActionBulkAssign      = "bulk_assign"
	ActionUserStatus      = "user_status"
	ActionSettingsSave    = "settings_save"
)

// AdminService contains the administrator use cases. Every mutation is
// reported to the audit sink.
type AdminService struct {
	repo  Repository
	audit *AuditSink
	now   func() time.Time
	newID func() string
}

func NewAdminService(repo Repository, audit *AuditSink) *AdminService {
	return &AdminService{repo: repo, audit: audit, now: time.Now, newID: uuid.NewString}
}

// Sets lists every set with its questions.
func (s *AdminService) Sets(ctx context.Context) ([]domain.Set, error) {
	return s.repo.ListSets(ctx)
}

func (s *AdminService) Set(ctx context.Context, setID string) (domain.Set, error) {
	return s.repo.GetSet(ctx, setID)
}

type setNameInput struct {
	Name string `json:"name" validate:"required,max=200"`
}

// CreateSet adds an empty set.
func (s *AdminService) CreateSet(ctx context.Context, actor, name string) (domain.Set, error) {
	name = strings.TrimSpace(name)
	if err := validateInput(setNameInput{Name: name}); err != nil {
		return domain.Set{}, err
	}
	set, err := s.repo.CreateSet(ctx, domain.Set{
		ID:        s.newID(),
		Name:      name,
		CreatedAt: s.now(),
		Questions: domain.QuestionList{},
	})
	if err != nil {
		return domain.Set{}, err
	}
	s.audit.Record(actor, ActionSetCreate, fmt.Sprintf("set=%s; name=%s", set.ID, set.Name))
	return set, nil
}

func (s *AdminService) RenameSet(ctx context.Context, actor, setID, name string) error {
	name = strings.TrimSpace(name)
	if err := validateInput(setNameInput{Name: name}); err != nil {
		return err
	}
	if err := s.repo.RenameSet(ctx, setID, name); err != nil {
		return err
	}
	s.audit.Record(actor, ActionSetRename, fmt.Sprintf("set=%s; name=%s", setID, name))
	return nil
}

// DeleteSet removes the set together with its questions and assignments.
func (s *AdminService) DeleteSet(ctx context.Context, actor, setID string) error {
	if err := s.repo.DeleteSet(ctx, setID); err != nil {
		return err
	}
	s.audit.Record(actor, ActionSetDelete, "set="+setID)
	return nil
}

// MCQInput is the admin form for one multiple-choice question.
type MCQInput struct {
	Text          string                  `json:"text"`
	Options       []string                `json:"options"`
	CorrectIndex  int                     `json:"correctIndex"`
	Justification string                  `json:"justification,omitempty"`
	Media         *domain.MediaAttachment `json:"media,omitempty"`
}

func (in MCQInput) build(id string) domain.MCQQuestion {
	options := make([]string, len(in.Options))
	for i, opt := range in.Options {
		options[i] = strings.TrimSpace(opt)
	}
	return domain.MCQQuestion{
		ID:            id,
		Text:          strings.TrimSpace(in.Text),
		Options:       options,
		CorrectIndex:  in.CorrectIndex,
		Justification: strings.TrimSpace(in.Justification),
		Media:         in.Media,
	}
}

// ParagraphInput is the admin form for a passage with its questions.
type ParagraphInput struct {
	Paragraph string     `json:"paragraph"`
	Questions []MCQInput `json:"questions"`
}

func (s *AdminService) AddMCQ(ctx context.Context, actor, setID string, in MCQInput) (domain.MCQQuestion, error) {
	q := in.build(s.newID())
	if err := q.Validate(); err != nil {
		return domain.MCQQuestion{}, err
	}
	if err := s.repo.AddQuestion(ctx, setID, q); err != nil {
		return domain.MCQQuestion{}, err
	}
	s.audit.Record(actor, ActionQuestionAddMCQ, fmt.Sprintf("set=%s; q=%s", setID, q.ID))
	return q, nil
}

func (s *AdminService) AddParagraph(ctx context.Context, actor, setID string, in ParagraphInput) (domain.ParagraphQuestion, error) {
	p := domain.ParagraphQuestion{
		ID:        s.newID(),
		Paragraph: strings.TrimSpace(in.Paragraph),
		Questions: make([]domain.MCQQuestion, 0, len(in.Questions)),
	}
	for _, child := range in.Questions {
		p.Questions = append(p.Questions, child.build(s.newID()))
	}
	if err := p.Validate(); err != nil {
		return domain.ParagraphQuestion{}, err
	}
	if err := s.repo.AddQuestion(ctx, setID, p); err != nil {
		return domain.ParagraphQuestion{}, err
	}
	s.audit.Record(actor, ActionQuestionAddPara, fmt.Sprintf("set=%s; q=%s; children=%d", setID, p.ID, len(p.Questions)))
	return p, nil
}

func (s *AdminService) DeleteQuestion(ctx context.Context, actor, setID, questionID string) error {
	if err := s.repo.DeleteQuestion(ctx, setID, questionID); err != nil {
		return err
	}
	s.audit.Record(actor, ActionQuestionDelete, fmt.Sprintf("set=%s; q=%s", setID, questionID))
	return nil
}

// DuplicateQuestions copies the selected top-level questions into target
// (the source itself when target is empty). Copies get fresh IDs.
func (s *AdminService) DuplicateQuestions(ctx context.Context, actor, sourceID, targetID string, questionIDs []string) ([]string, error) {
	if targetID == "" {
		targetID = sourceID
	}
	added, err := s.copyQuestions(ctx, sourceID, targetID, questionIDs)
	if err != nil {
		return nil, err
	}
	s.audit.Record(actor, ActionBulkDuplicate, fmt.Sprintf("from=%s; to=%s; count=%d", sourceID, targetID, len(added)))
	return added, nil
}

// MoveQuestions copies the selected questions into target, then removes them from source.
func (s *AdminService) MoveQuestions(ctx context.Context, actor, sourceID, targetID string, questionIDs []string) ([]string, error) {
	if targetID == "" || targetID == sourceID {
		return nil, domain.Invalid("targetSetId", "must name a different set")
	}
	added, err := s.copyQuestions(ctx, sourceID, targetID, questionIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range questionIDs {
		if err := s.repo.DeleteQuestion(ctx, sourceID, id); err != nil && !errors.Is(err, domain.ErrQuestionNotFound) {
			return added, err
		}
	}
	s.audit.Record(actor, ActionBulkMove, fmt.Sprintf("from=%s; to=%s; count=%d", sourceID, targetID, len(added)))
	return added, nil
}

// DeleteQuestions removes several top-level questions from one set.
func (s *AdminService) DeleteQuestions(ctx context.Context, actor, setID string, questionIDs []string) error {
	if _, err := s.repo.GetSet(ctx, setID); err != nil {
		return err
	}
	removed := 0
	for _, id := range questionIDs {
		err := s.repo.DeleteQuestion(ctx, setID, id)
		if errors.Is(err, domain.ErrQuestionNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		removed++
	}
	s.audit.Record(actor, ActionBulkDelete, fmt.Sprintf("set=%s; count=%d", setID, removed))
	return nil
}

func (s *AdminService) copyQuestions(ctx context.Context, sourceID, targetID string, questionIDs []string) ([]string, error) {
	source, err := s.repo.GetSet(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetSet(ctx, targetID); err != nil {
		return nil, err
	}
	selected := make(map[string]bool, len(questionIDs))
	for _, id := range questionIDs {
		selected[id] = true
	}

	var added []string
	for _, q := range source.Questions {
		if !selected[q.QuestionID()] {
			continue
		}
		clone := s.cloneQuestion(q)
		if err := s.repo.AddQuestion(ctx, targetID, clone); err != nil {
			return added, err
		}
		added = append(added, clone.QuestionID())
	}
	return added, nil
}

func (s *AdminService) cloneQuestion(q domain.Question) domain.Question {
	switch v := q.(type) {
	case domain.MCQQuestion:
		c := v.WithOptions(v.Options)
		c.ID = s.newID()
		return c
	case domain.ParagraphQuestion:
		p := domain.ParagraphQuestion{ID: s.newID(), Paragraph: v.Paragraph}
		for _, child := range v.Questions {
			c := child.WithOptions(child.Options)
			c.ID = s.newID()
			p.Questions = append(p.Questions, c)
		}
		return p
	default:
		panic(fmt.Sprintf("unknown question type %T", q))
	}
}

// AssignInput binds one set to several students. Nil policy fields fall back
// to the saved settings.
type AssignInput struct {
	SetID             string     `json:"setId" validate:"required"`
	UserIDs           []string   `json:"userIds" validate:"required,min=1,dive,required"`
	TimeLimitMinutes  *int       `json:"timeLimitMinutes,omitempty"`
	PassPercent       *int       `json:"passPercent,omitempty"`
	MaxAttempts       *int       `json:"maxAttempts,omitempty"`
	AvailabilityStart *time.Time `json:"availabilityStart,omitempty"`
	AvailabilityEnd   *time.Time `json:"availabilityEnd,omitempty"`
}

type assignmentPolicy struct {
	TimeLimitMinutes int `json:"timeLimitMinutes" validate:"gt=0"`
	PassPercent      int `json:"passPercent" validate:"gte=0,lte=100"`
	MaxAttempts      int `json:"maxAttempts" validate:"gte=1"`
}

// SkippedAssignment explains why a student was not assigned.
type SkippedAssignment struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

// AssignResult reports the outcome of a bulk assignment.
type AssignResult struct {
	Created []domain.Assignment `json:"created"`
	Skipped []SkippedAssignment `json:"skipped"`
}

// AssignSet creates one assignment per eligible student. Inactive users,
// non-students and existing (user, set) pairs are skipped.
func (s *AdminService) AssignSet(ctx context.Context, actor string, in AssignInput) (AssignResult, error) {
	if err := validateInput(in); err != nil {
		return AssignResult{}, err
	}
	if _, err := s.repo.GetSet(ctx, in.SetID); err != nil {
		return AssignResult{}, err
	}
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return AssignResult{}, err
	}
	policy := assignmentPolicy{
		TimeLimitMinutes: intOr(in.TimeLimitMinutes, settings.DefaultTimeLimitMinutes),
		PassPercent:      intOr(in.PassPercent, settings.DefaultPassPercent),
		MaxAttempts:      intOr(in.MaxAttempts, settings.DefaultMaxAttempts),
	}
	if err := validateInput(policy); err != nil {
		return AssignResult{}, err
	}
	if in.AvailabilityStart != nil && in.AvailabilityEnd != nil && in.AvailabilityEnd.Before(*in.AvailabilityStart) {
		return AssignResult{}, domain.Invalid("availabilityEnd", "must not be before availabilityStart")
	}

	result := AssignResult{Created: []domain.Assignment{}, Skipped: []SkippedAssignment{}}
	for _, userID := range in.UserIDs {
		user, err := s.repo.GetUser(ctx, userID)
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			result.Skipped = append(result.Skipped, SkippedAssignment{UserID: userID, Reason: "user not found"})
			continue
		case err != nil:
			return result, err
		case user.Role != domain.RoleStudent:
			result.Skipped = append(result.Skipped, SkippedAssignment{UserID: userID, Reason: "not a student"})
			continue
		case user.Status == domain.UserInactive:
			result.Skipped = append(result.Skipped, SkippedAssignment{UserID: userID, Reason: "inactive"})
			continue
		}

		created, err := s.repo.CreateAssignment(ctx, domain.Assignment{
			ID:                s.newID(),
			UserID:            userID,
			SetID:             in.SetID,
			TimeLimitMinutes:  policy.TimeLimitMinutes,
			PassPercent:       policy.PassPercent,
			MaxAttempts:       policy.MaxAttempts,
			AvailabilityStart: in.AvailabilityStart,
			AvailabilityEnd:   in.AvailabilityEnd,
		})
		if errors.Is(err, domain.ErrAssignmentExists) {
			result.Skipped = append(result.Skipped, SkippedAssignment{UserID: userID, Reason: "already assigned"})
			continue
		}
		if err != nil {
			return result, err
		}
		result.Created = append(result.Created, created)
	}
	s.audit.Record(actor, ActionBulkAssign, fmt.Sprintf("set=%s; users=%d; created=%d", in.SetID, len(in.UserIDs), len(result.Created)))
	return result, nil
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

// Students lists every student account.
func (s *AdminService) Students(ctx context.Context) ([]domain.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		if u.Role == domain.RoleStudent {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *AdminService) SetUserStatus(ctx context.Context, actor, userID string, status domain.UserStatus) error {
	if status != domain.UserActive && status != domain.UserInactive {
		return domain.Invalid("status", "must be active or inactive")
	}
	if err := s.repo.UpdateUserStatus(ctx, userID, status); err != nil {
		return err
	}
	s.audit.Record(actor, ActionUserStatus, fmt.Sprintf("user=%s; status=%s", userID, status))
	return nil
}

func (s *AdminService) Settings(ctx context.Context) (domain.Settings, error) {
	return s.repo.GetSettings(ctx)
}

func (s *AdminService) SaveSettings(ctx context.Context, actor string, settings domain.Settings) error {
	if err := validateInput(assignmentPolicy{
		TimeLimitMinutes: settings.DefaultTimeLimitMinutes,
		PassPercent:      settings.DefaultPassPercent,
		MaxAttempts:      settings.DefaultMaxAttempts,
	}); err != nil {
		return err
	}
	if err := s.repo.SaveSettings(ctx, settings); err != nil {
		return err
	}
	s.audit.Record(actor, ActionSettingsSave, fmt.Sprintf("time=%d; pass=%d; attempts=%d",
		settings.DefaultTimeLimitMinutes, settings.DefaultPassPercent, settings.DefaultMaxAttempts))
	return nil
}

func (s *AdminService) AuditLog(ctx context.Context) ([]domain.AuditEntry, error) {
	return s.repo.ListAudit(ctx)
}

func (s *AdminService) ClearAuditLog(ctx context.Context) error {
	return s.repo.ClearAudit(ctx)
}

// Analytics computes every dashboard aggregate over the filtered attempts.
func (s *AdminService) Analytics(ctx context.Context, filter AttemptFilter) (Analytics, error) {
	all, err := s.repo.ListAttempts(ctx)
	if err != nil {
		return Analytics{}, err
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return Analytics{}, err
	}
	sets, err := s.repo.ListSets(ctx)
	if err != nil {
		return Analytics{}, err
	}
	assignments, err := s.repo.ListAssignments(ctx)
	if err != nil {
		return Analytics{}, err
	}

	attempts := FilterAttempts(all, filter)
	if filter.SetID != "" {
		sets = filterSets(sets, filter.SetID)
	}
	return Analytics{
		Filter:      filter,
		Scoreboard:  Scoreboard(attempts, users, sets, assignments),
		Trend:       TrendByDay(attempts),
		Summary:     Summarize(attempts),
		SetAverages: SetAverages(sets, attempts),
	}, nil
}

// QuestionRates reports per-question correctness for one set.
func (s *AdminService) QuestionRates(ctx context.Context, setID string) ([]QuestionRate, error) {
	set, err := s.repo.GetSet(ctx, setID)
	if err != nil {
		return nil, err
	}
	all, err := s.repo.ListAttempts(ctx)
	if err != nil {
		return nil, err
	}
	return QuestionCorrectRates(set, all), nil
}

func filterSets(sets []domain.Set, setID string) []domain.Set {
	for _, set := range sets {
		if set.ID == setID {
			return []domain.Set{set}
		}
	}
	return []domain.Set{}
}
