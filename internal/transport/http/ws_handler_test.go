package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.NewSessionStore()
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuizzes()), time.Minute)
	service := app.NewSessionService(store, quizRepo)
	wsHandler := NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func dialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketQuizFlow(t *testing.T) {
	server := newTestServer(t)
	conn := dialWS(t, server)

	writeMsg(t, conn, "join-quiz", map[string]any{
		"joinCode":        "HFT9DD",
		"participantName": "Alice",
	})

	_, joined := readNext(conn, t, "joined-successfully")
	sessionID, _ := joined["sessionId"].(string)
	participantID, _ := joined["participantId"].(string)
	if sessionID == "" || participantID == "" {
		t.Fatalf("expected assigned ids, got %v", joined)
	}

	writeMsg(t, conn, "start-quiz", map[string]any{"sessionId": sessionID})
	readNext(conn, t, "quiz-started")

	writeMsg(t, conn, "next-question", map[string]any{"sessionId": sessionID})
	_, payload := readNext(conn, t, "new-question")

	question, _ := payload["question"].(map[string]any)
	if question == nil {
		t.Fatalf("expected question payload, got %v", payload)
	}
	options, _ := question["options"].([]any)
	if len(options) != 4 {
		t.Fatalf("expected 4 options, got %v", question)
	}
	for _, raw := range options {
		option, _ := raw.(map[string]any)
		if _, leaked := option["correct"]; leaked {
			t.Fatalf("correctness flag leaked to participants: %v", option)
		}
	}

	writeMsg(t, conn, "submit-answer", map[string]any{
		"sessionId":     sessionID,
		"participantId": participantID,
		"questionId":    "q1",
		"answer":        []string{"o2"},
		"timeToAnswer":  2,
	})

	answerSeen := false
	leaderboardSeen := false
	for i := 0; i < 3 && !(answerSeen && leaderboardSeen); i++ {
		typ, _ := readNext(conn, t, "")
		switch typ {
		case "answer-result":
			answerSeen = true
		case "leaderboard-update":
			leaderboardSeen = true
		}
	}
	if !answerSeen || !leaderboardSeen {
		t.Fatalf("expected answer-result and leaderboard-update, got answer=%v leaderboard=%v", answerSeen, leaderboardSeen)
	}

	writeMsg(t, conn, "next-question", map[string]any{"sessionId": sessionID})
	_, completed := readNext(conn, t, "quiz-completed")
	if _, ok := completed["leaderboard"]; !ok {
		t.Fatalf("expected final leaderboard, got %v", completed)
	}
}

func TestWebSocketParticipantJoinedBroadcast(t *testing.T) {
	server := newTestServer(t)

	host := dialWS(t, server)
	writeMsg(t, host, "join-quiz", map[string]any{"joinCode": "HFT9DD", "participantName": "Host"})
	readNext(host, t, "joined-successfully")

	guest := dialWS(t, server)
	writeMsg(t, guest, "join-quiz", map[string]any{"joinCode": "HFT9DD", "participantName": "Guest"})
	readNext(guest, t, "joined-successfully")

	// the earlier connection sees the roster grow
	_, payload := readNext(host, t, "participant-joined")
	participants, _ := payload["participants"].([]any)
	if len(participants) != 2 {
		t.Fatalf("expected 2 participants, got %v", payload)
	}
}

func TestWebSocketErrorsGoToSenderOnly(t *testing.T) {
	server := newTestServer(t)

	joined := dialWS(t, server)
	writeMsg(t, joined, "join-quiz", map[string]any{"joinCode": "HFT9DD", "participantName": "Alice"})
	readNext(joined, t, "joined-successfully")

	failing := dialWS(t, server)
	writeMsg(t, failing, "join-quiz", map[string]any{"joinCode": "WRONG1", "participantName": "Bob"})
	_, errPayload := readNext(failing, t, "error")
	if errPayload["message"] == "" {
		t.Fatalf("expected error message, got %v", errPayload)
	}

	// the joined connection must not see the other socket's error
	writeMsg(t, joined, "start-quiz", map[string]any{"sessionId": "bogus"})
	typ, _ := readNext(joined, t, "")
	if typ != "error" {
		t.Fatalf("expected own error frame, got %s", typ)
	}
}

func writeMsg(t *testing.T, conn *websocket.Conn, msgType string, payload map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": msgType, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string `json:"type"`
		Payload any    `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	payload, _ := msg.Payload.(map[string]any)
	return msg.Type, payload
}

func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:       "quiz-1",
			Title:    "Sample",
			JoinCode: "HFT9DD",
			Questions: []domain.Question{
				{
					ID:   "q1",
					Text: "What is 2 + 2?",
					Type: domain.SingleChoice,
					Options: []domain.Option{
						{ID: "o1", Text: "3", Correct: false},
						{ID: "o2", Text: "4", Correct: true},
						{ID: "o3", Text: "5", Correct: false},
						{ID: "o4", Text: "22", Correct: false},
					},
					TimeLimit: 30,
				},
			},
		},
	}
}
