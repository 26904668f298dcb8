package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"live-quiz-service/internal/domain"
)

// SessionRepository abstracts how live sessions and their snapshots are kept
// (in-memory, Redis, etc). Implementations must serialize GetOrCreate so a
// burst of first joins cannot race two waiting sessions into existence for
// one quiz.
type SessionRepository interface {
	// GetOrCreate returns the unique non-completed session for a quiz,
	// creating one if absent.
	GetOrCreate(quiz domain.Quiz) *Session
	// Get resolves a live session by its id.
	Get(sessionID string) (*Session, bool)
	// Save persists a best-effort snapshot of the session.
	Save(ctx context.Context, snap domain.SessionSnapshot) error
	// FindSnapshot retrieves a stored snapshot, including for sessions that
	// are no longer live, for historical leaderboard reads.
	FindSnapshot(ctx context.Context, sessionID string) (domain.SessionSnapshot, error)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	GetQuizByJoinCode(ctx context.Context, joinCode string) (domain.Quiz, error)
}

// SessionArchiver records completed sessions in durable storage.
type SessionArchiver interface {
	ArchiveSession(ctx context.Context, snap domain.SessionSnapshot) error
}

// TimingPolicy controls whose clock decides how fast an answer was.
type TimingPolicy int

const (
	// EnforceDeadline computes elapsed time from the server-side question
	// start and rejects answers past the limit plus a small grace window.
	EnforceDeadline TimingPolicy = iota
	// TrustClientTiming accepts the client-reported elapsed time, clamped
	// during scoring. Simpler, exploitable; kept for parity with clients
	// that run the countdown themselves.
	TrustClientTiming
)

// JoinResult is returned to the joining connection alone.
type JoinResult struct {
	SessionID     string                   `json:"sessionId"`
	ParticipantID string                   `json:"participantId"`
	Participants  []domain.ParticipantView `json:"participants"`
}

// SessionService contains the live quiz session use cases: admission,
// lifecycle transitions, answer scoring, and room broadcasts.
type SessionService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	archiver SessionArchiver
	policy   TimingPolicy
	grace    time.Duration
	now      func() time.Time
}

// Option configures a SessionService.
type Option func(*SessionService)

// WithArchiver records completed sessions through the given archiver.
func WithArchiver(a SessionArchiver) Option {
	return func(s *SessionService) { s.archiver = a }
}

// WithTimingPolicy selects how answer timing is measured.
func WithTimingPolicy(p TimingPolicy, grace time.Duration) Option {
	return func(s *SessionService) {
		s.policy = p
		s.grace = grace
	}
}

// WithClock is test-only for deterministic deadline checks.
func WithClock(now func() time.Time) Option {
	return func(s *SessionService) { s.now = now }
}

func NewSessionService(sessions SessionRepository, quizzes QuizRepository, opts ...Option) *SessionService {
	s := &SessionService{
		sessions: sessions,
		quizzes:  quizzes,
		policy:   EnforceDeadline,
		grace:    2 * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Join admits a participant by join code: resolves the quiz, finds or creates
// the one non-completed session, registers the participant, persists, and
// broadcasts the updated roster to the room.
func (s *SessionService) Join(ctx context.Context, joinCode, participantName string) (JoinResult, error) {
	quiz, err := s.loadQuizByJoinCode(ctx, joinCode)
	if err != nil {
		return JoinResult{}, err
	}

	session := s.sessions.GetOrCreate(quiz)
	participant, roster, err := session.addParticipant(participantName)
	if err != nil {
		return JoinResult{}, err
	}
	if err := s.sessions.Save(ctx, session.snapshot()); err != nil {
		return JoinResult{}, fmt.Errorf("save session: %w", err)
	}

	session.publish(Event{Type: EventParticipantJoined, Payload: participantJoinedPayload{Participants: roster}})
	return JoinResult{
		SessionID:     session.ID(),
		ParticipantID: participant.ID,
		Participants:  roster,
	}, nil
}

// Start transitions a waiting session to active and announces it to the room.
// Question advancement is a separate step: the host follows up with
// NextQuestion to reveal the first question.
func (s *SessionService) Start(ctx context.Context, sessionID string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if err := session.start(); err != nil {
		return err
	}
	if err := s.sessions.Save(ctx, session.snapshot()); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	session.publish(Event{Type: EventQuizStarted, Payload: quizStartedPayload{SessionID: session.ID()}})
	return nil
}

// NextQuestion advances the session. While questions remain it broadcasts the
// next one with correctness flags stripped; past the last question the
// session completes and the final leaderboard goes out.
func (s *SessionService) NextQuestion(ctx context.Context, sessionID string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	quiz, err := s.loadQuiz(ctx, session.QuizID())
	if err != nil {
		return err
	}

	index, completed, err := session.advance(len(quiz.Questions))
	if err != nil {
		return err
	}
	if err := s.sessions.Save(ctx, session.snapshot()); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	if completed {
		if s.archiver != nil {
			if err := s.archiver.ArchiveSession(ctx, session.snapshot()); err != nil {
				log.Printf("archive session %s: %v", session.ID(), err)
			}
		}
		session.publish(Event{Type: EventQuizCompleted, Payload: quizCompletedPayload{Leaderboard: session.leaderboard()}})
		return nil
	}

	question := quiz.Questions[index]
	session.publish(Event{Type: EventNewQuestion, Payload: newQuestionPayload{
		Question:  question.View(),
		TimeLimit: question.TimeLimit,
	}})
	return nil
}

// SubmitAnswer validates and scores a submission for the session's current
// question, records it, persists, and broadcasts the updated leaderboard.
func (s *SessionService) SubmitAnswer(ctx context.Context, sessionID, participantID, questionID string, selected []string, clientElapsed float64) (domain.AnswerResult, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrSessionNotFound
	}
	quiz, err := s.loadQuiz(ctx, session.QuizID())
	if err != nil {
		return domain.AnswerResult{}, err
	}

	index, startedAt, err := session.currentQuestion()
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if index >= len(quiz.Questions) {
		return domain.AnswerResult{}, domain.ErrInvalidState
	}
	question := quiz.Questions[index]
	if question.ID != questionID {
		return domain.AnswerResult{}, domain.ErrQuestionNotActive
	}

	elapsed, err := s.elapsedSeconds(startedAt, question.TimeLimit, clientElapsed)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	correct, points, err := domain.Score(question, selected, elapsed)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	total, err := session.recordAnswer(participantID, domain.Answer{
		QuestionID:      question.ID,
		SelectedOptions: selected,
		TimeToAnswer:    elapsed,
		Correct:         correct,
		Points:          points,
	})
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if err := s.sessions.Save(ctx, session.snapshot()); err != nil {
		return domain.AnswerResult{}, fmt.Errorf("save session: %w", err)
	}

	session.publish(Event{Type: EventLeaderboardUpdate, Payload: session.leaderboard()})
	return domain.AnswerResult{
		QuestionID: question.ID,
		Correct:    correct,
		Awarded:    points,
		TotalScore: total,
	}, nil
}

// Subscribe returns the room event channel for a session. The caller must
// invoke the returned cancel function to avoid leaks.
func (s *SessionService) Subscribe(_ context.Context, sessionID string) (<-chan Event, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Leaderboard serves the historical leaderboard for any stored session,
// including completed ones no longer held live.
func (s *SessionService) Leaderboard(ctx context.Context, sessionID string) ([]domain.LeaderboardEntry, error) {
	if session, ok := s.sessions.Get(sessionID); ok {
		return session.leaderboard(), nil
	}
	snap, err := s.sessions.FindSnapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return domain.BuildLeaderboard(snap.Participants), nil
}

// elapsedSeconds measures how long the participant took, by policy. Under
// EnforceDeadline the server clock is authoritative and late answers are
// rejected; under TrustClientTiming the reported value is used as-is and
// scoring clamps it.
func (s *SessionService) elapsedSeconds(startedAt time.Time, timeLimit int, clientElapsed float64) (float64, error) {
	if s.policy == TrustClientTiming {
		return clientElapsed, nil
	}
	elapsed := s.now().Sub(startedAt).Seconds()
	if timeLimit > 0 && elapsed > float64(timeLimit)+s.grace.Seconds() {
		return 0, domain.ErrDeadlineExceeded
	}
	return elapsed, nil
}

// loadQuiz retries a failed read once: quiz reads are idempotent, and a
// transient store hiccup should not kick a participant out mid-question.
func (s *SessionService) loadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil && !isNotFound(err) {
		time.Sleep(retryBackoff)
		quiz, err = s.quizzes.GetQuiz(ctx, quizID)
	}
	return quiz, err
}

func (s *SessionService) loadQuizByJoinCode(ctx context.Context, joinCode string) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuizByJoinCode(ctx, joinCode)
	if err != nil && !isNotFound(err) {
		time.Sleep(retryBackoff)
		quiz, err = s.quizzes.GetQuizByJoinCode(ctx, joinCode)
	}
	return quiz, err
}

const retryBackoff = 100 * time.Millisecond

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrQuizNotFound)
}

type participantJoinedPayload struct {
	Participants []domain.ParticipantView `json:"participants"`
}

type quizStartedPayload struct {
	SessionID string `json:"sessionId"`
}

type newQuestionPayload struct {
	Question  domain.QuestionView `json:"question"`
	TimeLimit int                 `json:"timeLimit"`
}

type quizCompletedPayload struct {
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}
