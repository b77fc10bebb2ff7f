// Package sqlstore implements app.Repository on a relational database
// through bun. Postgres and SQLite share the same models and queries.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"exam-delivery-service/internal/domain"
	"github.com/uptrace/bun"
)

type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func toUser(r userRow) domain.User {
	return domain.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Role:         domain.Role(r.Role),
		RegisteredAt: r.RegisteredAt,
		Age:          r.Age,
		Status:       domain.UserStatus(r.Status),
		PasswordHash: r.PasswordHash,
	}
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	if err := s.db.NewSelect().Model(&rows).Order("registered_at ASC", "id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, toUser(r))
	}
	return users, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	var row userRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return toUser(row), nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var row userRow
	err := s.db.NewSelect().Model(&row).Where("email_key = ?", strings.ToLower(email)).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}
	return toUser(row), nil
}

func (s *Store) RegisterUser(ctx context.Context, user domain.User) (domain.User, error) {
	row := userRow{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		EmailKey:     strings.ToLower(user.Email),
		Role:         string(user.Role),
		Status:       string(user.Status),
		Age:          user.Age,
		PasswordHash: user.PasswordHash,
		RegisteredAt: user.RegisteredAt,
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		taken, err := tx.NewSelect().Model((*userRow)(nil)).Where("email_key = ?", row.EmailKey).Exists(ctx)
		if err != nil {
			return err
		}
		if taken {
			return domain.ErrEmailTaken
		}
		_, err = tx.NewInsert().Model(&row).Exec(ctx)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *Store) UpdateUserStatus(ctx context.Context, userID string, status domain.UserStatus) error {
	res, err := s.db.NewUpdate().Model((*userRow)(nil)).
		Set("status = ?", string(status)).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	return requireAffected(res, domain.ErrUserNotFound)
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func (s *Store) ListSets(ctx context.Context) ([]domain.Set, error) {
	var rows []setRow
	if err := s.db.NewSelect().Model(&rows).Order("created_at ASC", "id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list sets: %w", err)
	}
	return s.withQuestions(ctx, s.db, rows)
}

func (s *Store) ListSetsForUser(ctx context.Context, userID string) ([]domain.Set, error) {
	assigned := s.db.NewSelect().Model((*assignmentRow)(nil)).Column("set_id").Where("user_id = ?", userID)
	var rows []setRow
	err := s.db.NewSelect().Model(&rows).
		Where("id IN (?)", assigned).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sets for user: %w", err)
	}
	return s.withQuestions(ctx, s.db, rows)
}

func (s *Store) GetSet(ctx context.Context, setID string) (domain.Set, error) {
	var row setRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", setID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Set{}, domain.ErrSetNotFound
	}
	if err != nil {
		return domain.Set{}, fmt.Errorf("get set: %w", err)
	}
	sets, err := s.withQuestions(ctx, s.db, []setRow{row})
	if err != nil {
		return domain.Set{}, err
	}
	return sets[0], nil
}

// withQuestions loads and assembles the questions of every given set.
func (s *Store) withQuestions(ctx context.Context, db bun.IDB, rows []setRow) ([]domain.Set, error) {
	sets := make([]domain.Set, 0, len(rows))
	if len(rows) == 0 {
		return sets, nil
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}

	var questions []questionRow
	err := db.NewSelect().Model(&questions).
		Where("set_id IN (?)", bun.In(ids)).
		Order("position ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	options := map[string][]string{}
	if len(questions) > 0 {
		qids := make([]string, 0, len(questions))
		for _, q := range questions {
			qids = append(qids, q.ID)
		}
		var optRows []optionRow
		err := db.NewSelect().Model(&optRows).
			Where("question_id IN (?)", bun.In(qids)).
			Order("question_id ASC", "position ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("load options: %w", err)
		}
		for _, o := range optRows {
			options[o.QuestionID] = append(options[o.QuestionID], o.Text)
		}
	}

	children := map[string][]questionRow{}
	top := map[string][]questionRow{}
	for _, q := range questions {
		if q.ParentID != "" {
			children[q.ParentID] = append(children[q.ParentID], q)
			continue
		}
		top[q.SetID] = append(top[q.SetID], q)
	}

	for _, r := range rows {
		list := domain.QuestionList{}
		for _, q := range top[r.ID] {
			list = append(list, assembleQuestion(q, children[q.ID], options))
		}
		sets = append(sets, domain.Set{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt, Questions: list})
	}
	return sets, nil
}

func assembleQuestion(q questionRow, children []questionRow, options map[string][]string) domain.Question {
	if domain.QuestionKind(q.Kind) == domain.KindParagraph {
		sort.Slice(children, func(i, j int) bool { return children[i].Position < children[j].Position })
		para := domain.ParagraphQuestion{ID: q.ID, Paragraph: q.Text, Questions: make([]domain.MCQQuestion, 0, len(children))}
		for _, c := range children {
			para.Questions = append(para.Questions, toMCQ(c, options[c.ID]))
		}
		return para
	}
	return toMCQ(q, options[q.ID])
}

func toMCQ(q questionRow, options []string) domain.MCQQuestion {
	mcq := domain.MCQQuestion{
		ID:            q.ID,
		Text:          q.Text,
		Options:       options,
		CorrectIndex:  q.CorrectIndex,
		Justification: q.Justification,
	}
	if mcq.Options == nil {
		mcq.Options = []string{}
	}
	if q.MediaKind != "" {
		mcq.Media = &domain.MediaAttachment{Kind: domain.MediaKind(q.MediaKind), Ref: q.MediaRef}
	}
	return mcq
}

// questionRows flattens one top-level question into rows for insertion.
func questionRows(setID string, position int, question domain.Question) ([]questionRow, []optionRow) {
	var qs []questionRow
	var opts []optionRow
	addMCQ := func(q domain.MCQQuestion, parentID string, pos int) {
		row := questionRow{
			ID:            q.ID,
			SetID:         setID,
			ParentID:      parentID,
			Position:      pos,
			Kind:          string(domain.KindMCQ),
			Text:          q.Text,
			CorrectIndex:  q.CorrectIndex,
			Justification: q.Justification,
		}
		if q.Media != nil {
			row.MediaKind = string(q.Media.Kind)
			row.MediaRef = q.Media.Ref
		}
		qs = append(qs, row)
		for i, text := range q.Options {
			opts = append(opts, optionRow{QuestionID: q.ID, Position: i, Text: text})
		}
	}
	switch q := question.(type) {
	case domain.MCQQuestion:
		addMCQ(q, "", position)
	case domain.ParagraphQuestion:
		qs = append(qs, questionRow{
			ID:       q.ID,
			SetID:    setID,
			Position: position,
			Kind:     string(domain.KindParagraph),
			Text:     q.Paragraph,
		})
		for i, child := range q.Questions {
			addMCQ(child, q.ID, i)
		}
	}
	return qs, opts
}

func insertQuestions(ctx context.Context, tx bun.Tx, qs []questionRow, opts []optionRow) error {
	if len(qs) > 0 {
		if _, err := tx.NewInsert().Model(&qs).Exec(ctx); err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
	}
	if len(opts) > 0 {
		if _, err := tx.NewInsert().Model(&opts).Exec(ctx); err != nil {
			return fmt.Errorf("insert options: %w", err)
		}
	}
	return nil
}

func (s *Store) CreateSet(ctx context.Context, set domain.Set) (domain.Set, error) {
	if set.Questions == nil {
		set.Questions = domain.QuestionList{}
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := setRow{ID: set.ID, Name: set.Name, CreatedAt: set.CreatedAt}
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert set: %w", err)
		}
		var qs []questionRow
		var opts []optionRow
		for i, q := range set.Questions {
			rq, ro := questionRows(set.ID, i, q)
			qs = append(qs, rq...)
			opts = append(opts, ro...)
		}
		return insertQuestions(ctx, tx, qs, opts)
	})
	if err != nil {
		return domain.Set{}, err
	}
	return set, nil
}

func (s *Store) RenameSet(ctx context.Context, setID, name string) error {
	res, err := s.db.NewUpdate().Model((*setRow)(nil)).
		Set("name = ?", name).
		Where("id = ?", setID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("rename set: %w", err)
	}
	return requireAffected(res, domain.ErrSetNotFound)
}

func setExists(ctx context.Context, tx bun.Tx, setID string) error {
	ok, err := tx.NewSelect().Model((*setRow)(nil)).Where("id = ?", setID).Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSetNotFound
	}
	return nil
}

func (s *Store) AddQuestion(ctx context.Context, setID string, question domain.Question) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := setExists(ctx, tx, setID); err != nil {
			return err
		}
		var last int
		err := tx.NewSelect().Model((*questionRow)(nil)).
			ColumnExpr("COALESCE(MAX(?), -1)", bun.Ident("position")).
			Where("set_id = ?", setID).
			Where("parent_id = ''").
			Scan(ctx, &last)
		if err != nil {
			return fmt.Errorf("next position: %w", err)
		}
		qs, opts := questionRows(setID, last+1, question)
		return insertQuestions(ctx, tx, qs, opts)
	})
}

// DeleteQuestion removes a top-level question together with any paragraph
// children and all of their options.
func (s *Store) DeleteQuestion(ctx context.Context, setID, questionID string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := setExists(ctx, tx, setID); err != nil {
			return err
		}
		found, err := tx.NewSelect().Model((*questionRow)(nil)).
			Where("set_id = ?", setID).
			Where("id = ?", questionID).
			Where("parent_id = ''").
			Exists(ctx)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrQuestionNotFound
		}
		family := tx.NewSelect().Model((*questionRow)(nil)).Column("id").
			Where("id = ?", questionID).
			WhereOr("parent_id = ?", questionID)
		if _, err := tx.NewDelete().Model((*optionRow)(nil)).Where("question_id IN (?)", family).Exec(ctx); err != nil {
			return fmt.Errorf("delete options: %w", err)
		}
		_, err = tx.NewDelete().Model((*questionRow)(nil)).
			Where("id = ?", questionID).
			WhereOr("parent_id = ?", questionID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete question: %w", err)
		}
		return nil
	})
}

func (s *Store) DeleteSet(ctx context.Context, setID string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := setExists(ctx, tx, setID); err != nil {
			return err
		}
		inSet := tx.NewSelect().Model((*questionRow)(nil)).Column("id").Where("set_id = ?", setID)
		if _, err := tx.NewDelete().Model((*optionRow)(nil)).Where("question_id IN (?)", inSet).Exec(ctx); err != nil {
			return fmt.Errorf("delete options: %w", err)
		}
		if _, err := tx.NewDelete().Model((*questionRow)(nil)).Where("set_id = ?", setID).Exec(ctx); err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}
		if _, err := tx.NewDelete().Model((*assignmentRow)(nil)).Where("set_id = ?", setID).Exec(ctx); err != nil {
			return fmt.Errorf("delete assignments: %w", err)
		}
		if _, err := tx.NewDelete().Model((*setRow)(nil)).Where("id = ?", setID).Exec(ctx); err != nil {
			return fmt.Errorf("delete set: %w", err)
		}
		return nil
	})
}

func toAssignment(r assignmentRow) domain.Assignment {
	return domain.Assignment{
		ID:                r.ID,
		UserID:            r.UserID,
		SetID:             r.SetID,
		TimeLimitMinutes:  r.TimeLimitMinutes,
		PassPercent:       r.PassPercent,
		MaxAttempts:       r.MaxAttempts,
		AvailabilityStart: r.AvailabilityStart,
		AvailabilityEnd:   r.AvailabilityEnd,
	}
}

func (s *Store) listAssignments(ctx context.Context, userID string) ([]domain.Assignment, error) {
	var rows []assignmentRow
	q := s.db.NewSelect().Model(&rows).Order("id ASC")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	out := make([]domain.Assignment, 0, len(rows))
	for _, r := range rows {
		out = append(out, toAssignment(r))
	}
	return out, nil
}

func (s *Store) ListAssignmentsForUser(ctx context.Context, userID string) ([]domain.Assignment, error) {
	if userID == "" {
		return []domain.Assignment{}, nil
	}
	return s.listAssignments(ctx, userID)
}

func (s *Store) ListAssignments(ctx context.Context) ([]domain.Assignment, error) {
	return s.listAssignments(ctx, "")
}

func (s *Store) GetAssignment(ctx context.Context, assignmentID string) (domain.Assignment, error) {
	var row assignmentRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", assignmentID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Assignment{}, domain.ErrAssignmentNotFound
	}
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("get assignment: %w", err)
	}
	return toAssignment(row), nil
}

func (s *Store) CreateAssignment(ctx context.Context, a domain.Assignment) (domain.Assignment, error) {
	row := assignmentRow{
		ID:                a.ID,
		UserID:            a.UserID,
		SetID:             a.SetID,
		TimeLimitMinutes:  a.TimeLimitMinutes,
		PassPercent:       a.PassPercent,
		MaxAttempts:       a.MaxAttempts,
		AvailabilityStart: a.AvailabilityStart,
		AvailabilityEnd:   a.AvailabilityEnd,
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := setExists(ctx, tx, a.SetID); err != nil {
			return err
		}
		taken, err := tx.NewSelect().Model((*assignmentRow)(nil)).
			Where("user_id = ?", a.UserID).
			Where("set_id = ?", a.SetID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if taken {
			return domain.ErrAssignmentExists
		}
		_, err = tx.NewInsert().Model(&row).Exec(ctx)
		return err
	})
	if err != nil {
		return domain.Assignment{}, err
	}
	return a, nil
}

func (s *Store) listAttempts(ctx context.Context, userID string) ([]domain.Attempt, error) {
	var rows []attemptRow
	q := s.db.NewSelect().Model(&rows).Order("submitted_at ASC", "id ASC")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	out := make([]domain.Attempt, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	var answers []answerRow
	err := s.db.NewSelect().Model(&answers).
		Where("attempt_id IN (?)", bun.In(ids)).
		Order("attempt_id ASC", "position ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	byAttempt := map[string][]domain.AttemptAnswer{}
	for _, a := range answers {
		byAttempt[a.AttemptID] = append(byAttempt[a.AttemptID], domain.AttemptAnswer{
			QuestionID:       a.QuestionID,
			ChosenIndex:      a.ChosenIndex,
			TimeSpentSeconds: a.TimeSpentSeconds,
		})
	}
	for _, r := range rows {
		ans := byAttempt[r.ID]
		if ans == nil {
			ans = []domain.AttemptAnswer{}
		}
		out = append(out, domain.Attempt{
			ID:              r.ID,
			UserID:          r.UserID,
			SetID:           r.SetID,
			Timestamp:       r.Timestamp,
			Score:           r.Score,
			Percentage:      r.Percentage,
			Pass:            r.Pass,
			DurationSeconds: r.DurationSeconds,
			Answers:         ans,
		})
	}
	return out, nil
}

func (s *Store) ListAttemptsForUser(ctx context.Context, userID string) ([]domain.Attempt, error) {
	if userID == "" {
		return []domain.Attempt{}, nil
	}
	return s.listAttempts(ctx, userID)
}

func (s *Store) ListAttempts(ctx context.Context) ([]domain.Attempt, error) {
	return s.listAttempts(ctx, "")
}

// RecordAttempt is idempotent on the attempt id.
func (s *Store) RecordAttempt(ctx context.Context, attempt domain.Attempt) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		seen, err := tx.NewSelect().Model((*attemptRow)(nil)).Where("id = ?", attempt.ID).Exists(ctx)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
		row := attemptRow{
			ID:              attempt.ID,
			UserID:          attempt.UserID,
			SetID:           attempt.SetID,
			Timestamp:       attempt.Timestamp,
			Score:           attempt.Score,
			Percentage:      attempt.Percentage,
			Pass:            attempt.Pass,
			DurationSeconds: attempt.DurationSeconds,
		}
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		if len(attempt.Answers) == 0 {
			return nil
		}
		answers := make([]answerRow, 0, len(attempt.Answers))
		for i, a := range attempt.Answers {
			answers = append(answers, answerRow{
				AttemptID:        attempt.ID,
				Position:         i,
				QuestionID:       a.QuestionID,
				ChosenIndex:      a.ChosenIndex,
				TimeSpentSeconds: a.TimeSpentSeconds,
			})
		}
		if _, err := tx.NewInsert().Model(&answers).Exec(ctx); err != nil {
			return fmt.Errorf("insert answers: %w", err)
		}
		return nil
	})
}

func (s *Store) ListBookmarks(ctx context.Context, userID string) ([]domain.Bookmark, error) {
	var rows []bookmarkRow
	err := s.db.NewSelect().Model(&rows).
		Where("user_id = ?", userID).
		Order("created_at ASC", "question_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	out := make([]domain.Bookmark, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Bookmark{
			ID:         r.ID,
			UserID:     r.UserID,
			SetID:      r.SetID,
			QuestionID: r.QuestionID,
			Timestamp:  r.CreatedAt,
		})
	}
	return out, nil
}

func (s *Store) ToggleBookmark(ctx context.Context, b domain.Bookmark) (bool, error) {
	var on bool
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*bookmarkRow)(nil)).
			Where("user_id = ?", b.UserID).
			Where("question_id = ?", b.QuestionID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil || n > 0 {
			return err
		}
		row := bookmarkRow{
			UserID:     b.UserID,
			QuestionID: b.QuestionID,
			ID:         b.ID,
			SetID:      b.SetID,
			CreatedAt:  b.Timestamp,
		}
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return err
		}
		on = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("toggle bookmark: %w", err)
	}
	return on, nil
}

func (s *Store) GetSettings(ctx context.Context) (domain.Settings, error) {
	var row settingsRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", settingsID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultSettings(), nil
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return domain.Settings{
		DefaultTimeLimitMinutes: row.DefaultTimeLimitMinutes,
		DefaultPassPercent:      row.DefaultPassPercent,
		DefaultMaxAttempts:      row.DefaultMaxAttempts,
	}, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.Settings) error {
	row := settingsRow{
		ID:                      settingsID,
		DefaultTimeLimitMinutes: settings.DefaultTimeLimitMinutes,
		DefaultPassPercent:      settings.DefaultPassPercent,
		DefaultMaxAttempts:      settings.DefaultMaxAttempts,
	}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("default_time_limit_minutes = EXCLUDED.default_time_limit_minutes").
		Set("default_pass_percent = EXCLUDED.default_pass_percent").
		Set("default_max_attempts = EXCLUDED.default_max_attempts").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// AppendAudit inserts the entry and drops everything past domain.AuditCapacity.
func (s *Store) AppendAudit(ctx context.Context, entry domain.AuditEntry) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := auditRow{
			EntryID:   entry.ID,
			CreatedAt: entry.Timestamp,
			Actor:     entry.Actor,
			Action:    entry.Action,
			Details:   entry.Details,
		}
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert audit: %w", err)
		}
		keep := tx.NewSelect().Model((*auditRow)(nil)).
			Column("seq").
			Order("seq DESC").
			Limit(domain.AuditCapacity)
		if _, err := tx.NewDelete().Model((*auditRow)(nil)).Where("seq NOT IN (?)", keep).Exec(ctx); err != nil {
			return fmt.Errorf("trim audit: %w", err)
		}
		return nil
	})
}

func (s *Store) ListAudit(ctx context.Context) ([]domain.AuditEntry, error) {
	var rows []auditRow
	if err := s.db.NewSelect().Model(&rows).Order("seq DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	out := make([]domain.AuditEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.AuditEntry{
			ID:        r.EntryID,
			Timestamp: r.CreatedAt,
			Actor:     r.Actor,
			Action:    r.Action,
			Details:   r.Details,
		})
	}
	return out, nil
}

func (s *Store) ClearAudit(ctx context.Context) error {
	if _, err := s.db.NewDelete().Model((*auditRow)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		return fmt.Errorf("clear audit: %w", err)
	}
	return nil
}
