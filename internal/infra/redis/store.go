package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"exam-delivery-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Store implements app.Repository on Redis. Entities are JSON values in one
// hash per kind, with secondary hashes/sets as indexes:
//
//	exam:users               {userID} -> user JSON
//	exam:users:email         {lower(email)} -> userID
//	exam:sets                {setID} -> set JSON (questions inline)
//	exam:assignments         {assignmentID} -> assignment JSON
//	exam:assignments:pair    {userID}|{setID} -> assignmentID
//	exam:assignments:user:ID set of assignment IDs
//	exam:attempts            list of attempt JSON, oldest first
//	exam:attempts:user:ID    list of attempt JSON for one user
//	exam:attempts:ids        set of recorded attempt IDs
//	exam:bookmarks:ID        {questionID} -> bookmark JSON
//	exam:settings            settings JSON
//	exam:audit               list of audit JSON, newest first
type Store struct {
	client *redis.Client
}

const (
	keyUsers        = "exam:users"
	keyUserEmails   = "exam:users:email"
	keySets         = "exam:sets"
	keyAssignments  = "exam:assignments"
	keyAssignPairs  = "exam:assignments:pair"
	keyAttempts     = "exam:attempts"
	keyAttemptIDs   = "exam:attempts:ids"
	keySettings     = "exam:settings"
	keyAudit        = "exam:audit"
	maxWatchRetries = 5
)

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func userAssignmentsKey(userID string) string { return "exam:assignments:user:" + userID }
func userAttemptsKey(userID string) string    { return "exam:attempts:user:" + userID }
func bookmarksKey(userID string) string       { return "exam:bookmarks:" + userID }
func pairField(userID, setID string) string   { return userID + "|" + setID }

// userRecord keeps the password hash that domain.User hides from JSON.
type userRecord struct {
	domain.User
	PasswordHash string `json:"passwordHash"`
}

func encodeUser(u domain.User) ([]byte, error) {
	return json.Marshal(userRecord{User: u, PasswordHash: u.PasswordHash})
}

func decodeUser(raw string) (domain.User, error) {
	var rec userRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domain.User{}, fmt.Errorf("decode user: %w", err)
	}
	u := rec.User
	u.PasswordHash = rec.PasswordHash
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	raw, err := s.client.HGetAll(ctx, keyUsers).Result()
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(raw))
	for _, v := range raw {
		u, err := decodeUser(v)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].RegisteredAt.Equal(users[j].RegisteredAt) {
			return users[i].RegisteredAt.Before(users[j].RegisteredAt)
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	raw, err := s.client.HGet(ctx, keyUsers, userID).Result()
	if errors.Is(err, redis.Nil) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return decodeUser(raw)
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	id, err := s.client.HGet(ctx, keyUserEmails, strings.ToLower(email)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return s.GetUser(ctx, id)
}

func (s *Store) RegisterUser(ctx context.Context, user domain.User) (domain.User, error) {
	data, err := encodeUser(user)
	if err != nil {
		return domain.User{}, err
	}
	email := strings.ToLower(user.Email)
	err = s.watch(ctx, func(tx *redis.Tx) error {
		taken, err := tx.HExists(ctx, keyUserEmails, email).Result()
		if err != nil {
			return err
		}
		if taken {
			return domain.ErrEmailTaken
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, keyUserEmails, email, user.ID)
			pipe.HSet(ctx, keyUsers, user.ID, data)
			return nil
		})
		return err
	}, keyUserEmails)
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *Store) UpdateUserStatus(ctx context.Context, userID string, status domain.UserStatus) error {
	return s.watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, keyUsers, userID).Result()
		if errors.Is(err, redis.Nil) {
			return domain.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		u, err := decodeUser(raw)
		if err != nil {
			return err
		}
		u.Status = status
		data, err := encodeUser(u)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, keyUsers, userID, data)
			return nil
		})
		return err
	}, keyUsers)
}

// watch runs fn under optimistic locking on keys, retrying on conflicts.
func (s *Store) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis watch on %v: %w", keys, redis.TxFailedErr)
}

func decodeSet(raw string) (domain.Set, error) {
	var set domain.Set
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		return domain.Set{}, fmt.Errorf("decode set: %w", err)
	}
	if set.Questions == nil {
		set.Questions = domain.QuestionList{}
	}
	return set, nil
}

func (s *Store) ListSets(ctx context.Context) ([]domain.Set, error) {
	raw, err := s.client.HGetAll(ctx, keySets).Result()
	if err != nil {
		return nil, err
	}
	return decodeSets(raw)
}

func decodeSets(raw map[string]string) ([]domain.Set, error) {
	sets := make([]domain.Set, 0, len(raw))
	for _, v := range raw {
		set, err := decodeSet(v)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	sort.Slice(sets, func(i, j int) bool {
		if !sets[i].CreatedAt.Equal(sets[j].CreatedAt) {
			return sets[i].CreatedAt.Before(sets[j].CreatedAt)
		}
		return sets[i].ID < sets[j].ID
	})
	return sets, nil
}

func (s *Store) ListSetsForUser(ctx context.Context, userID string) ([]domain.Set, error) {
	assignments, err := s.ListAssignmentsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return []domain.Set{}, nil
	}
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.SetID)
	}
	values, err := s.client.HMGet(ctx, keySets, ids...).Result()
	if err != nil {
		return nil, err
	}
	raw := make(map[string]string, len(values))
	for i, v := range values {
		if str, ok := v.(string); ok {
			raw[ids[i]] = str
		}
	}
	return decodeSets(raw)
}

func (s *Store) GetSet(ctx context.Context, setID string) (domain.Set, error) {
	raw, err := s.client.HGet(ctx, keySets, setID).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Set{}, domain.ErrSetNotFound
	}
	if err != nil {
		return domain.Set{}, err
	}
	return decodeSet(raw)
}

func (s *Store) CreateSet(ctx context.Context, set domain.Set) (domain.Set, error) {
	if set.Questions == nil {
		set.Questions = domain.QuestionList{}
	}
	data, err := json.Marshal(set)
	if err != nil {
		return domain.Set{}, err
	}
	if err := s.client.HSet(ctx, keySets, set.ID, data).Err(); err != nil {
		return domain.Set{}, err
	}
	return set, nil
}

// updateSet applies mutate to the stored set under WATCH.
func (s *Store) updateSet(ctx context.Context, setID string, mutate func(*domain.Set) error) error {
	return s.watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, keySets, setID).Result()
		if errors.Is(err, redis.Nil) {
			return domain.ErrSetNotFound
		}
		if err != nil {
			return err
		}
		set, err := decodeSet(raw)
		if err != nil {
			return err
		}
		if err := mutate(&set); err != nil {
			return err
		}
		data, err := json.Marshal(set)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, keySets, setID, data)
			return nil
		})
		return err
	}, keySets)
}

func (s *Store) RenameSet(ctx context.Context, setID, name string) error {
	return s.updateSet(ctx, setID, func(set *domain.Set) error {
		set.Name = name
		return nil
	})
}

func (s *Store) AddQuestion(ctx context.Context, setID string, question domain.Question) error {
	return s.updateSet(ctx, setID, func(set *domain.Set) error {
		set.Questions = append(set.Questions, question)
		return nil
	})
}

func (s *Store) DeleteQuestion(ctx context.Context, setID, questionID string) error {
	return s.updateSet(ctx, setID, func(set *domain.Set) error {
		for i, q := range set.Questions {
			if q.QuestionID() == questionID {
				set.Questions = append(set.Questions[:i:i], set.Questions[i+1:]...)
				return nil
			}
		}
		return domain.ErrQuestionNotFound
	})
}

// DeleteSet drops the set and every assignment on it in one transaction.
func (s *Store) DeleteSet(ctx context.Context, setID string) error {
	return s.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.HExists(ctx, keySets, setID).Result()
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrSetNotFound
		}
		raw, err := tx.HGetAll(ctx, keyAssignments).Result()
		if err != nil {
			return err
		}
		var doomed []domain.Assignment
		for _, v := range raw {
			a, err := decodeAssignment(v)
			if err != nil {
				return err
			}
			if a.SetID == setID {
				doomed = append(doomed, a)
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, a := range doomed {
				pipe.HDel(ctx, keyAssignments, a.ID)
				pipe.HDel(ctx, keyAssignPairs, pairField(a.UserID, a.SetID))
				pipe.SRem(ctx, userAssignmentsKey(a.UserID), a.ID)
			}
			pipe.HDel(ctx, keySets, setID)
			return nil
		})
		return err
	}, keySets, keyAssignments)
}

func decodeAssignment(raw string) (domain.Assignment, error) {
	var a domain.Assignment
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return domain.Assignment{}, fmt.Errorf("decode assignment: %w", err)
	}
	return a, nil
}

func (s *Store) ListAssignmentsForUser(ctx context.Context, userID string) ([]domain.Assignment, error) {
	ids, err := s.client.SMembers(ctx, userAssignmentsKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.Assignment{}, nil
	}
	values, err := s.client.HMGet(ctx, keyAssignments, ids...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Assignment, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		a, err := decodeAssignment(str)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	sortAssignments(out)
	return out, nil
}

func (s *Store) ListAssignments(ctx context.Context) ([]domain.Assignment, error) {
	raw, err := s.client.HGetAll(ctx, keyAssignments).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Assignment, 0, len(raw))
	for _, v := range raw {
		a, err := decodeAssignment(v)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	sortAssignments(out)
	return out, nil
}

func sortAssignments(list []domain.Assignment) {
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
}

func (s *Store) GetAssignment(ctx context.Context, assignmentID string) (domain.Assignment, error) {
	raw, err := s.client.HGet(ctx, keyAssignments, assignmentID).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Assignment{}, domain.ErrAssignmentNotFound
	}
	if err != nil {
		return domain.Assignment{}, err
	}
	return decodeAssignment(raw)
}

func (s *Store) CreateAssignment(ctx context.Context, assignment domain.Assignment) (domain.Assignment, error) {
	data, err := json.Marshal(assignment)
	if err != nil {
		return domain.Assignment{}, err
	}
	err = s.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.HExists(ctx, keySets, assignment.SetID).Result()
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrSetNotFound
		}
		taken, err := tx.HExists(ctx, keyAssignPairs, pairField(assignment.UserID, assignment.SetID)).Result()
		if err != nil {
			return err
		}
		if taken {
			return domain.ErrAssignmentExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, keyAssignments, assignment.ID, data)
			pipe.HSet(ctx, keyAssignPairs, pairField(assignment.UserID, assignment.SetID), assignment.ID)
			pipe.SAdd(ctx, userAssignmentsKey(assignment.UserID), assignment.ID)
			return nil
		})
		return err
	}, keySets, keyAssignPairs)
	if err != nil {
		return domain.Assignment{}, err
	}
	return assignment, nil
}

func decodeAttempts(raw []string) ([]domain.Attempt, error) {
	out := make([]domain.Attempt, 0, len(raw))
	for _, v := range raw {
		var a domain.Attempt
		if err := json.Unmarshal([]byte(v), &a); err != nil {
			return nil, fmt.Errorf("decode attempt: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) ListAttemptsForUser(ctx context.Context, userID string) ([]domain.Attempt, error) {
	raw, err := s.client.LRange(ctx, userAttemptsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return decodeAttempts(raw)
}

func (s *Store) ListAttempts(ctx context.Context) ([]domain.Attempt, error) {
	raw, err := s.client.LRange(ctx, keyAttempts, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return decodeAttempts(raw)
}

// RecordAttempt appends once per attempt ID; a retried write is a no-op.
func (s *Store) RecordAttempt(ctx context.Context, attempt domain.Attempt) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return err
	}
	return s.watch(ctx, func(tx *redis.Tx) error {
		seen, err := tx.SIsMember(ctx, keyAttemptIDs, attempt.ID).Result()
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SAdd(ctx, keyAttemptIDs, attempt.ID)
			pipe.RPush(ctx, keyAttempts, data)
			pipe.RPush(ctx, userAttemptsKey(attempt.UserID), data)
			return nil
		})
		return err
	}, keyAttemptIDs)
}

func (s *Store) ListBookmarks(ctx context.Context, userID string) ([]domain.Bookmark, error) {
	raw, err := s.client.HGetAll(ctx, bookmarksKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Bookmark, 0, len(raw))
	for _, v := range raw {
		var b domain.Bookmark
		if err := json.Unmarshal([]byte(v), &b); err != nil {
			return nil, fmt.Errorf("decode bookmark: %w", err)
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *Store) ToggleBookmark(ctx context.Context, bookmark domain.Bookmark) (bool, error) {
	key := bookmarksKey(bookmark.UserID)
	data, err := json.Marshal(bookmark)
	if err != nil {
		return false, err
	}
	var marked bool
	err = s.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.HExists(ctx, key, bookmark.QuestionID).Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if exists {
				pipe.HDel(ctx, key, bookmark.QuestionID)
			} else {
				pipe.HSet(ctx, key, bookmark.QuestionID, data)
			}
			return nil
		})
		marked = !exists
		return err
	}, key)
	if err != nil {
		return false, err
	}
	return marked, nil
}

func (s *Store) GetSettings(ctx context.Context) (domain.Settings, error) {
	raw, err := s.client.Get(ctx, keySettings).Result()
	if errors.Is(err, redis.Nil) {
		return domain.DefaultSettings(), nil
	}
	if err != nil {
		return domain.Settings{}, err
	}
	var settings domain.Settings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keySettings, data, 0).Err()
}

// AppendAudit pushes to the head and trims the list to domain.AuditCapacity.
func (s *Store) AppendAudit(ctx context.Context, entry domain.AuditEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, keyAudit, data)
		pipe.LTrim(ctx, keyAudit, 0, domain.AuditCapacity-1)
		return nil
	})
	return err
}

func (s *Store) ListAudit(ctx context.Context) ([]domain.AuditEntry, error) {
	raw, err := s.client.LRange(ctx, keyAudit, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.AuditEntry, 0, len(raw))
	for _, v := range raw {
		var e domain.AuditEntry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, fmt.Errorf("decode audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) ClearAudit(ctx context.Context) error {
	return s.client.Del(ctx, keyAudit).Err()
}
