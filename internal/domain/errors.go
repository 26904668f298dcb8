package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be resolved by id or join code.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrSessionNotFound is returned when no live session or stored snapshot matches the id.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrParticipantNotFound is returned when a participant id does not resolve within the session.
	ErrParticipantNotFound = errors.New("participant not found in session")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option ID does not belong to the question.
	ErrOptionNotFound = errors.New("option not found")
	// ErrInvalidState is returned when an operation is illegal for the session's
	// current status or question index.
	ErrInvalidState = errors.New("operation not allowed in current session state")
	// ErrQuestionNotActive is returned when an answer targets a question other
	// than the one currently live.
	ErrQuestionNotActive = errors.New("question is not the active question")
	// ErrNameTaken is returned when a display name is already used in the session.
	ErrNameTaken = errors.New("display name already taken in session")
	// ErrAlreadyAnswered is returned on a second submission for the same question.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrDeadlineExceeded is returned when an answer arrives after the question's
	// time limit under the enforcing timing policy.
	ErrDeadlineExceeded = errors.New("answer submitted after time limit")
)
