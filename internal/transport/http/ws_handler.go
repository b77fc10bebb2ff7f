package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"exam-delivery-service/internal/app"
	"exam-delivery-service/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.ExamService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ExamService) *WSHandler {
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

type choosePayload struct {
	QuestionID  string `json:"questionId"`
	OptionIndex int    `json:"optionIndex"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
}

// ServeWS attaches a student to their live attempt. With assignmentId the
// attempt is started first; without it the socket joins the running session.
// Every state change, including each countdown tick, is pushed as a "state"
// message.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	assignmentID := r.URL.Query().Get("assignmentId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// the request context ends with the handler; session calls outlive reads
	ctx := context.WithoutCancel(r.Context())

	if assignmentID != "" {
		_, err := h.service.StartAttempt(ctx, userID, assignmentID)
		if err != nil && !errors.Is(err, domain.ErrAttemptInProgress) {
			_ = conn.WriteJSON(errorMessage(err))
			return
		}
	}

	updates, cancel, err := h.service.Subscribe(ctx, userID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	exited := false
	for !exited {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "choose":
			var payload choosePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid choose payload"}}
				continue
			}
			if _, err := h.service.Choose(ctx, userID, payload.QuestionID, payload.OptionIndex); err != nil {
				send <- errorMessage(err)
			}
		case "submit":
			result, err := h.service.Submit(ctx, userID)
			h.sendResult(send, result, err)
		case "retry":
			result, err := h.service.RetryPersist(ctx, userID)
			h.sendResult(send, result, err)
		case "retake":
			if _, err := h.service.Retake(ctx, userID); err != nil {
				send <- errorMessage(err)
			}
		case "exit":
			if err := h.service.Exit(ctx, userID); err != nil {
				send <- errorMessage(err)
				continue
			}
			send <- outboundMessage[any]{Type: "exited", Payload: h.service.Snapshot(ctx, userID)}
			exited = true
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone

	if !exited {
		// leaving mid-attempt abandons it; an unsaved result stays for retry
		if err := h.service.Exit(ctx, userID); err != nil && !errors.Is(err, domain.ErrNoActiveAttempt) {
			log.Printf("ws disconnect for user %s kept session: %v", userID, err)
		}
	}
}

func (h *WSHandler) sendResult(send chan<- outboundMessage[any], result app.AttemptResult, err error) {
	if err != nil && !errors.Is(err, domain.ErrPersistFailed) {
		send <- errorMessage(err)
		return
	}
	send <- outboundMessage[any]{Type: "result", Payload: result}
	if err != nil {
		send <- errorMessage(err)
	}
}
