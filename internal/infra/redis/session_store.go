package redis

import (
	"context"
	"log"
	"sync"
	"time"

	"exam-delivery-service/internal/app"
	"github.com/redis/go-redis/v9"
)

const markerWriteTimeout = 2 * time.Second

// SessionStore keeps live attempt sessions in process and marks each running
// one in Redis so other instances can see which students have an attempt open.
// The countdown and broadcast stay local to the owning instance.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.AttemptSession
	stops    map[string]func()
}

// NewSessionStore marks sessions for ttl beyond the attempt's remaining time.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.AttemptSession),
		stops:    make(map[string]func()),
	}
}

func (s *SessionStore) GetOrCreate(userID string, create func() *app.AttemptSession) *app.AttemptSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[userID]; ok {
		return session
	}
	session := create()
	s.sessions[userID] = session
	updates, cancel := session.Subscribe()
	s.stops[userID] = cancel
	go s.mark(userID, updates)
	return session
}

// mark keeps the liveness key in step with the session: written on every
// state change and refreshed every ttl/2, removed once the session is Idle.
func (s *SessionStore) mark(userID string, updates <-chan app.AttemptSnapshot) {
	var (
		last      = app.StateIdle
		refreshed time.Time
	)
	for snap := range updates {
		ctx, cancel := context.WithTimeout(context.Background(), markerWriteTimeout)
		switch {
		case snap.State == app.StateIdle:
			if last != app.StateIdle {
				if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
					log.Printf("clear session marker for %s: %v", userID, err)
				}
			}
		case snap.State != last || time.Since(refreshed) >= s.ttl/2:
			ttl := s.ttl + time.Duration(snap.RemainingSeconds)*time.Second
			if err := s.client.Set(ctx, s.key(userID), string(snap.State), ttl).Err(); err != nil {
				log.Printf("set session marker for %s: %v", userID, err)
			}
			refreshed = time.Now()
		}
		cancel()
		last = snap.State
	}
}

func (s *SessionStore) Get(userID string) (*app.AttemptSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userID]
	return session, ok
}

func (s *SessionStore) DeleteIfIdle(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	if !ok {
		return
	}
	if session.IsIdle() {
		delete(s.sessions, userID)
		if stop, ok := s.stops[userID]; ok {
			stop()
			delete(s.stops, userID)
		}
		_ = s.client.Del(context.Background(), s.key(userID)).Err()
	}
}

// Live reports whether any instance holds a non-idle session for userID.
func (s *SessionStore) Live(ctx context.Context, userID string) (bool, error) {
	if session, ok := s.Get(userID); ok && !session.IsIdle() {
		return true, nil
	}
	n, err := s.client.Exists(ctx, s.key(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SessionStore) key(userID string) string {
	return "exam:session:" + userID
}
