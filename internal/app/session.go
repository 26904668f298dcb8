package app

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"live-quiz-service/internal/domain"
)

// Event is a room-scoped notification fanned out to every connection
// subscribed to a session.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Event types broadcast to a room.
const (
	EventParticipantJoined = "participant-joined"
	EventQuizStarted       = "quiz-started"
	EventNewQuestion       = "new-question"
	EventLeaderboardUpdate = "leaderboard-update"
	EventQuizCompleted     = "quiz-completed"
)

// Session is the authoritative in-memory state of one quiz run. The mutex is
// the serialization point for all mutations: concurrent submissions from
// different participants are applied one at a time and none is lost.
type Session struct {
	id       string
	quizID   string
	joinCode string
	now      func() time.Time

	mu                sync.Mutex
	status            domain.SessionStatus
	current           int
	questionStartedAt time.Time
	participants      []*domain.Participant
	subscribers       map[chan Event]struct{}
}

// NewSession creates a waiting session for a quiz.
func NewSession(quiz domain.Quiz) *Session {
	return NewSessionWithClock(quiz, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(quiz domain.Quiz, now func() time.Time) *Session {
	return &Session{
		id:          uuid.NewString(),
		quizID:      quiz.ID,
		joinCode:    quiz.JoinCode,
		now:         now,
		status:      domain.StatusWaiting,
		current:     -1,
		subscribers: make(map[chan Event]struct{}),
	}
}

// RestoreSession rebuilds a live session from a stored snapshot, e.g. after a
// process restart. Room membership is not restored; participants must rejoin
// their sockets but keep their scores.
func RestoreSession(snap domain.SessionSnapshot) *Session {
	s := &Session{
		id:          snap.ID,
		quizID:      snap.QuizID,
		joinCode:    snap.JoinCode,
		now:         time.Now,
		status:      snap.Status,
		current:     snap.CurrentQuestion,
		subscribers: make(map[chan Event]struct{}),
	}
	if snap.Status == domain.StatusActive && snap.CurrentQuestion >= 0 {
		// The original reveal time is not persisted; restart the window so
		// the deadline check does not reject everything after a restore.
		s.questionStartedAt = s.now()
	}
	for i := range snap.Participants {
		p := snap.Participants[i]
		s.participants = append(s.participants, &p)
	}
	return s
}

func (s *Session) ID() string       { return s.id }
func (s *Session) QuizID() string   { return s.quizID }
func (s *Session) JoinCode() string { return s.joinCode }

// Status returns the current lifecycle status.
func (s *Session) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// addParticipant appends a new participant with score 0. Names are unique
// within a session. Late joins during an active round are allowed; completed
// sessions are read-only.
func (s *Session) addParticipant(name string) (domain.Participant, []domain.ParticipantView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.StatusCompleted {
		return domain.Participant{}, nil, domain.ErrInvalidState
	}
	for _, p := range s.participants {
		if p.Name == name {
			return domain.Participant{}, nil, domain.ErrNameTaken
		}
	}
	participant := &domain.Participant{
		ID:       uuid.NewString(),
		Name:     name,
		JoinedAt: s.now(),
	}
	s.participants = append(s.participants, participant)
	return *participant, s.rosterLocked(), nil
}

// start transitions waiting -> active.
func (s *Session) start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != domain.StatusWaiting {
		return domain.ErrInvalidState
	}
	s.status = domain.StatusActive
	return nil
}

// advance steps to the next question, or completes the session when questions
// are exhausted. Returns the new index and whether the session completed.
func (s *Session) advance(questionCount int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != domain.StatusActive {
		return 0, false, domain.ErrInvalidState
	}
	s.current++
	if s.current >= questionCount {
		s.status = domain.StatusCompleted
		return s.current, true, nil
	}
	s.questionStartedAt = s.now()
	return s.current, false, nil
}

// currentQuestion reports the live question index and when it was revealed.
// Fails unless the session is active with a question in flight.
func (s *Session) currentQuestion() (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != domain.StatusActive || s.current < 0 {
		return 0, time.Time{}, domain.ErrInvalidState
	}
	return s.current, s.questionStartedAt, nil
}

// recordAnswer appends an answer record and adds its points to the
// participant's score. At most one answer per question per participant;
// duplicates are rejected rather than overwritten.
func (s *Session) recordAnswer(participantID string, answer domain.Answer) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusActive {
		return 0, domain.ErrInvalidState
	}
	var participant *domain.Participant
	for _, p := range s.participants {
		if p.ID == participantID {
			participant = p
			break
		}
	}
	if participant == nil {
		return 0, domain.ErrParticipantNotFound
	}
	for _, prev := range participant.Answers {
		if prev.QuestionID == answer.QuestionID {
			return 0, domain.ErrAlreadyAnswered
		}
	}
	participant.Answers = append(participant.Answers, answer)
	participant.Score += answer.Points
	return participant.Score, nil
}

// leaderboard returns the ranked top-5 view of the current participants.
func (s *Session) leaderboard() []domain.LeaderboardEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.BuildLeaderboard(s.participantsLocked())
}

// snapshot captures the session for persistence.
func (s *Session) snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SessionSnapshot{
		ID:              s.id,
		QuizID:          s.quizID,
		JoinCode:        s.joinCode,
		Status:          s.status,
		CurrentQuestion: s.current,
		Participants:    s.participantsLocked(),
		UpdatedAt:       s.now(),
	}
}

// Snapshot is exported for stores that persist sessions.
func (s *Session) Snapshot() domain.SessionSnapshot {
	return s.snapshot()
}

func (s *Session) participantsLocked() []domain.Participant {
	out := make([]domain.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, *p)
	}
	return out
}

func (s *Session) rosterLocked() []domain.ParticipantView {
	views := make([]domain.ParticipantView, 0, len(s.participants))
	for _, p := range s.participants {
		views = append(views, domain.ParticipantView{ID: p.ID, Name: p.Name, Score: p.Score})
	}
	return views
}

// subscribe registers a room connection. The caller must invoke the returned
// cancel function to avoid leaks.
func (s *Session) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// publish fans an event out to every subscriber. A slow client drops its
// oldest pending event instead of blocking the room.
func (s *Session) publish(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}
