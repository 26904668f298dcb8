package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Live sessions stay in a local map so in-process room broadcasts and the
//     per-session mutex keep working; Redis holds JSON snapshots.
//   - A restarted process can restore a session from its snapshot on the next
//     Get; scores survive, room membership does not (sockets must rejoin).
//   - quiz -> active session routing goes through an index key so find-or-create
//     stays coherent across the snapshot lifecycle.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration

	mu     sync.Mutex
	byQuiz map[string]*app.Session
	byID   map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		ttl:    ttl,
		byQuiz: make(map[string]*app.Session),
		byID:   make(map[string]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(quiz domain.Quiz) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.byQuiz[quiz.ID]; ok && session.Status() != domain.StatusCompleted {
		return session
	}

	// A previous process may have left a non-completed session behind.
	if sessionID, err := s.client.Get(context.Background(), s.activeKey(quiz.ID)).Result(); err == nil && sessionID != "" {
		if session, err := s.restoreLocked(context.Background(), sessionID); err == nil && session.Status() != domain.StatusCompleted {
			return session
		}
	}

	session := app.NewSession(quiz)
	s.byQuiz[quiz.ID] = session
	s.byID[session.ID()] = session
	_ = s.client.Set(context.Background(), s.activeKey(quiz.ID), session.ID(), s.ttl).Err()
	return session
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.byID[sessionID]; ok {
		return session, true
	}
	session, err := s.restoreLocked(context.Background(), sessionID)
	if err != nil {
		return nil, false
	}
	return session, true
}

func (s *SessionStore) Save(ctx context.Context, snap domain.SessionSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.sessionKey(snap.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if snap.Status == domain.StatusCompleted {
		// Release the quiz slot so the next join starts a fresh session.
		_ = s.client.Del(ctx, s.activeKey(snap.QuizID)).Err()
	}
	return nil
}

func (s *SessionStore) FindSnapshot(ctx context.Context, sessionID string) (domain.SessionSnapshot, error) {
	raw, err := s.client.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("load session: %w", err)
	}
	var snap domain.SessionSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return snap, nil
}

// restoreLocked rebuilds a live session from its Redis snapshot. Caller holds s.mu.
func (s *SessionStore) restoreLocked(ctx context.Context, sessionID string) (*app.Session, error) {
	snap, err := s.FindSnapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session := app.RestoreSession(snap)
	s.byID[session.ID()] = session
	if snap.Status != domain.StatusCompleted {
		s.byQuiz[snap.QuizID] = session
	}
	return session, nil
}

func (s *SessionStore) sessionKey(sessionID string) string {
	return "session:" + sessionID
}

func (s *SessionStore) activeKey(quizID string) string {
	return "session:quiz:" + quizID
}
