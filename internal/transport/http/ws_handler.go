package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"live-quiz-service/internal/app"
)

type WSHandler struct {
	service  *app.SessionService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	JoinCode        string `json:"joinCode"`
	ParticipantName string `json:"participantName"`
}

type answerPayload struct {
	SessionID     string   `json:"sessionId"`
	ParticipantID string   `json:"participantId"`
	QuestionID    string   `json:"questionId"`
	Answer        []string `json:"answer"`
	TimeToAnswer  float64  `json:"timeToAnswer"`
}

type sessionPayload struct {
	SessionID string `json:"sessionId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// clientConn is the per-connection context: which room (session) this socket
// joined and how to stop forwarding room events to it. Connection-local by
// design, never shared between sockets.
type clientConn struct {
	sessionID     string
	participantID string
	cancelRoom    func()
	roomDone      chan struct{}
}

// ServeWS upgrades HTTP requests to websockets and speaks the room protocol:
// join-quiz, start-quiz, next-question, and submit-answer inbound; room
// events and direct replies outbound. Errors go to the offending socket only.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	client := &clientConn{}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r.Context(), client, send, closeSignals, inbound)
	}

	// A disconnect leaves the room but never withdraws the participant;
	// their answers and score stay in the session.
	if client.cancelRoom != nil {
		client.cancelRoom()
	}
	close(closeSignals)
	if client.roomDone != nil {
		<-client.roomDone
	}
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, client *clientConn, send chan outboundMessage[any], closeSignals chan struct{}, inbound inboundMessage) {
	switch inbound.Type {
	case "join-quiz":
		var payload joinPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.JoinCode == "" || payload.ParticipantName == "" {
			sendError(send, "invalid join payload")
			return
		}
		if client.sessionID != "" {
			sendError(send, "already joined a quiz")
			return
		}
		result, err := h.service.Join(ctx, payload.JoinCode, payload.ParticipantName)
		if err != nil {
			sendError(send, err.Error())
			return
		}
		updates, cancel, err := h.service.Subscribe(ctx, result.SessionID)
		if err != nil {
			sendError(send, err.Error())
			return
		}
		client.sessionID = result.SessionID
		client.participantID = result.ParticipantID
		client.cancelRoom = cancel
		client.roomDone = forwardRoomEvents(updates, send, closeSignals)
		send <- outboundMessage[any]{Type: "joined-successfully", Payload: result}

	case "submit-answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.SessionID == "" || payload.ParticipantID == "" {
			sendError(send, "invalid answer payload")
			return
		}
		result, err := h.service.SubmitAnswer(ctx, payload.SessionID, payload.ParticipantID, payload.QuestionID, payload.Answer, payload.TimeToAnswer)
		if err != nil {
			sendError(send, err.Error())
			return
		}
		send <- outboundMessage[any]{Type: "answer-result", Payload: result}

	case "start-quiz":
		var payload sessionPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.SessionID == "" {
			sendError(send, "invalid start payload")
			return
		}
		if err := h.service.Start(ctx, payload.SessionID); err != nil {
			sendError(send, err.Error())
		}

	case "next-question":
		var payload sessionPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.SessionID == "" {
			sendError(send, "invalid next-question payload")
			return
		}
		if err := h.service.NextQuestion(ctx, payload.SessionID); err != nil {
			sendError(send, err.Error())
		}

	default:
		sendError(send, "unsupported message type")
	}
}

// forwardRoomEvents pumps room broadcasts into this connection's writer until
// the subscription or the connection closes.
func forwardRoomEvents(updates <-chan app.Event, send chan outboundMessage[any], closeSignals chan struct{}) chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case event, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: event.Type, Payload: event.Payload}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()
	return done
}

func sendError(send chan outboundMessage[any], message string) {
	send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}
