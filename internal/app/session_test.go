package app

import (
	"testing"
	"time"

	"live-quiz-service/internal/domain"
)

func testQuiz() domain.Quiz {
	return domain.Quiz{
		ID:       "quiz-1",
		JoinCode: "HFT9DD",
		Questions: []domain.Question{
			{
				ID:   "q1",
				Type: domain.SingleChoice,
				Options: []domain.Option{
					{ID: "o1", Correct: false},
					{ID: "o2", Correct: true},
				},
				TimeLimit: 30,
			},
			{
				ID:   "q2",
				Type: domain.TrueFalse,
				Options: []domain.Option{
					{ID: "t", Correct: true},
					{ID: "f", Correct: false},
				},
				TimeLimit: 15,
			},
		},
	}
}

func TestSessionLifecycle(t *testing.T) {
	session := NewSession(testQuiz())

	if session.Status() != domain.StatusWaiting {
		t.Fatalf("expected waiting, got %s", session.Status())
	}
	if _, _, err := session.currentQuestion(); err != domain.ErrInvalidState {
		t.Fatalf("expected invalid state before start, got %v", err)
	}

	if err := session.start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := session.start(); err != domain.ErrInvalidState {
		t.Fatalf("expected second start to fail, got %v", err)
	}

	index, completed, err := session.advance(2)
	if err != nil || completed || index != 0 {
		t.Fatalf("first advance: index=%d completed=%v err=%v", index, completed, err)
	}
	index, completed, err = session.advance(2)
	if err != nil || completed || index != 1 {
		t.Fatalf("second advance: index=%d completed=%v err=%v", index, completed, err)
	}
	_, completed, err = session.advance(2)
	if err != nil || !completed {
		t.Fatalf("expected completion past last question, completed=%v err=%v", completed, err)
	}
	if session.Status() != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", session.Status())
	}

	// completed is terminal
	if _, _, err := session.advance(2); err != domain.ErrInvalidState {
		t.Fatalf("expected advance on completed session to fail, got %v", err)
	}
	if _, _, err := session.addParticipant("Late"); err != domain.ErrInvalidState {
		t.Fatalf("expected join on completed session to fail, got %v", err)
	}
}

func TestSessionAddParticipant(t *testing.T) {
	session := NewSession(testQuiz())

	alice, roster, err := session.addParticipant("Alice")
	if err != nil {
		t.Fatalf("add participant: %v", err)
	}
	if alice.ID == "" || alice.Score != 0 || len(alice.Answers) != 0 {
		t.Fatalf("unexpected participant: %+v", alice)
	}
	if len(roster) != 1 || roster[0].Name != "Alice" {
		t.Fatalf("unexpected roster: %+v", roster)
	}

	if _, _, err := session.addParticipant("Alice"); err != domain.ErrNameTaken {
		t.Fatalf("expected duplicate name rejection, got %v", err)
	}

	// late join while active is allowed
	if err := session.start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, err := session.addParticipant("Bob"); err != nil {
		t.Fatalf("late join: %v", err)
	}

	lb := session.leaderboard()
	if len(lb) != 2 || lb[0].Score != 0 {
		t.Fatalf("expected two zero-score entries, got %+v", lb)
	}
}

func TestSessionRecordAnswer(t *testing.T) {
	session := NewSession(testQuiz())
	alice, _, err := session.addParticipant("Alice")
	if err != nil {
		t.Fatalf("add participant: %v", err)
	}

	answer := domain.Answer{QuestionID: "q1", SelectedOptions: []string{"o2"}, Correct: true, Points: 92}

	if _, err := session.recordAnswer(alice.ID, answer); err != domain.ErrInvalidState {
		t.Fatalf("expected answer before start to fail, got %v", err)
	}

	if err := session.start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, err := session.advance(2); err != nil {
		t.Fatalf("advance: %v", err)
	}

	total, err := session.recordAnswer(alice.ID, answer)
	if err != nil {
		t.Fatalf("record answer: %v", err)
	}
	if total != 92 {
		t.Fatalf("expected total 92, got %d", total)
	}

	if _, err := session.recordAnswer(alice.ID, answer); err != domain.ErrAlreadyAnswered {
		t.Fatalf("expected duplicate answer rejection, got %v", err)
	}
	if _, err := session.recordAnswer("ghost", answer); err != domain.ErrParticipantNotFound {
		t.Fatalf("expected unknown participant error, got %v", err)
	}
}

func TestSessionSnapshotAndRestore(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	session := NewSessionWithClock(testQuiz(), func() time.Time { return base })

	alice, _, err := session.addParticipant("Alice")
	if err != nil {
		t.Fatalf("add participant: %v", err)
	}
	if err := session.start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, err := session.advance(2); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := session.recordAnswer(alice.ID, domain.Answer{QuestionID: "q1", Points: 75, Correct: true}); err != nil {
		t.Fatalf("record answer: %v", err)
	}

	snap := session.Snapshot()
	if snap.Status != domain.StatusActive || snap.CurrentQuestion != 0 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.UpdatedAt != base {
		t.Fatalf("expected snapshot timestamp from injected clock, got %v", snap.UpdatedAt)
	}

	restored := RestoreSession(snap)
	if restored.ID() != session.ID() || restored.QuizID() != "quiz-1" || restored.JoinCode() != "HFT9DD" {
		t.Fatalf("restored identity mismatch")
	}
	lb := restored.leaderboard()
	if len(lb) != 1 || lb[0].Score != 75 {
		t.Fatalf("expected restored score 75, got %+v", lb)
	}
	// restored sessions accept further answers for other questions
	if _, _, err := restored.advance(2); err != nil {
		t.Fatalf("advance restored: %v", err)
	}
	if _, err := restored.recordAnswer(alice.ID, domain.Answer{QuestionID: "q2", Points: 60, Correct: true}); err != nil {
		t.Fatalf("record answer on restored session: %v", err)
	}
}

func TestSessionPublishReachesAllSubscribers(t *testing.T) {
	session := NewSession(testQuiz())

	ch1, cancel1 := session.subscribe()
	ch2, cancel2 := session.subscribe()
	defer cancel1()
	defer cancel2()

	session.publish(Event{Type: EventQuizStarted})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case event := <-ch:
			if event.Type != EventQuizStarted {
				t.Fatalf("subscriber %d: unexpected event %q", i, event.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: no event", i)
		}
	}
}
