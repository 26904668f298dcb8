package memory

import (
	"context"
	"sync"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// GetOrCreate holds one mutex across lookup and creation, so concurrent first
// joins for a quiz cannot race two waiting sessions into existence.
type SessionStore struct {
	mu        sync.RWMutex
	byQuiz    map[string]*app.Session // the non-completed session per quiz
	byID      map[string]*app.Session
	snapshots map[string]domain.SessionSnapshot
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		byQuiz:    make(map[string]*app.Session),
		byID:      make(map[string]*app.Session),
		snapshots: make(map[string]domain.SessionSnapshot),
	}
}

func (s *SessionStore) GetOrCreate(quiz domain.Quiz) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.byQuiz[quiz.ID]; ok && session.Status() != domain.StatusCompleted {
		return session
	}
	session := app.NewSession(quiz)
	s.byQuiz[quiz.ID] = session
	s.byID[session.ID()] = session
	return session
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.byID[sessionID]
	return session, ok
}

func (s *SessionStore) Save(_ context.Context, snap domain.SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.ID] = snap
	return nil
}

func (s *SessionStore) FindSnapshot(_ context.Context, sessionID string) (domain.SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if snap, ok := s.snapshots[sessionID]; ok {
		return snap, nil
	}
	if session, ok := s.byID[sessionID]; ok {
		return session.Snapshot(), nil
	}
	return domain.SessionSnapshot{}, domain.ErrSessionNotFound
}
