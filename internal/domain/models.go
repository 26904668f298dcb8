package domain

import (
	"fmt"
	"time"
)

// QuestionType discriminates how submitted options are validated.
type QuestionType string

const (
	// SingleChoice questions have exactly one correct option.
	SingleChoice QuestionType = "single_choice"
	// TrueFalse questions are binary; validated like SingleChoice.
	TrueFalse QuestionType = "true_false"
	// MultipleChoice questions require the exact set of correct options.
	MultipleChoice QuestionType = "multiple_choice"
)

// SessionStatus tracks the lifecycle of one quiz run.
type SessionStatus string

const (
	StatusWaiting   SessionStatus = "waiting"
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed" // terminal
)

// Option represents a possible answer for a question. Correct is never
// serialized to participants while a question is live; use OptionView.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models a timed multiple-choice question.
type Question struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Type      QuestionType `json:"type"`
	Options   []Option     `json:"options"`
	TimeLimit int          `json:"timeLimit"` // seconds
}

// Quiz is an ordered collection of questions behind a join code. Immutable
// once a session referencing it is active.
type Quiz struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	JoinCode    string     `json:"joinCode"`
	Questions   []Question `json:"questions"`
}

// Answer is the append-only record of one submission. Never mutated after
// creation.
type Answer struct {
	QuestionID      string   `json:"questionId"`
	SelectedOptions []string `json:"selectedOptions"`
	TimeToAnswer    float64  `json:"timeToAnswer"` // seconds from question start
	Correct         bool     `json:"correct"`
	Points          int      `json:"points"`
}

// Participant belongs exclusively to one session.
type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Score    int       `json:"score"`
	Answers  []Answer  `json:"answers"`
	JoinedAt time.Time `json:"joinedAt"`
}

// SessionSnapshot is the persisted form of a session. The live state in
// internal/app is authoritative; snapshots serve best-effort persistence and
// historical leaderboard reads.
type SessionSnapshot struct {
	ID              string        `json:"id"`
	QuizID          string        `json:"quizId"`
	JoinCode        string        `json:"joinCode"`
	Status          SessionStatus `json:"status"`
	CurrentQuestion int           `json:"currentQuestion"` // -1 before start
	Participants    []Participant `json:"participants"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// ParticipantView is the roster entry broadcast to a room.
type ParticipantView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// OptionView is an option with the correctness flag stripped.
type OptionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionView is the participant-safe form of a live question.
type QuestionView struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Options []OptionView `json:"options"`
}

// AnswerResult summarizes the outcome of a submission for a single participant.
type AnswerResult struct {
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"`
	Awarded    int    `json:"awarded"`
	TotalScore int    `json:"totalScore"`
}

// View strips correctness flags so a live question can be sent to participants.
func (q Question) View() QuestionView {
	options := make([]OptionView, 0, len(q.Options))
	for _, opt := range q.Options {
		options = append(options, OptionView{ID: opt.ID, Text: opt.Text})
	}
	return QuestionView{ID: q.ID, Text: q.Text, Options: options}
}

// Validate checks the structural invariants of a quiz definition. Loaders
// reject quizzes that fail validation so the engine never sees them.
func (q Quiz) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("quiz: missing id")
	}
	if q.JoinCode == "" {
		return fmt.Errorf("quiz %s: missing join code", q.ID)
	}
	for _, question := range q.Questions {
		if err := question.Validate(); err != nil {
			return fmt.Errorf("quiz %s: %w", q.ID, err)
		}
	}
	return nil
}

// Validate enforces the per-question invariants: at least two options, at
// least one correct, and exactly one correct for single-answer types.
func (q Question) Validate() error {
	if len(q.Options) < 2 {
		return fmt.Errorf("question %s: needs at least 2 options", q.ID)
	}
	correct := 0
	for _, opt := range q.Options {
		if opt.Correct {
			correct++
		}
	}
	if correct == 0 {
		return fmt.Errorf("question %s: needs at least 1 correct option", q.ID)
	}
	switch q.Type {
	case SingleChoice, TrueFalse:
		if correct != 1 {
			return fmt.Errorf("question %s: %s requires exactly 1 correct option, has %d", q.ID, q.Type, correct)
		}
	case MultipleChoice:
	default:
		return fmt.Errorf("question %s: unknown type %q", q.ID, q.Type)
	}
	return nil
}
