package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/jarvis/internal/assistant"
	"github.com/ent0n29/jarvis/internal/protocol"
	"github.com/ent0n29/jarvis/internal/session"
)

const (
	modelUnavailableReply = "I can't reach my language model right now. Please try again in a moment."
	wsReadTimeout         = 120 * time.Second
	wsWriteTimeout        = 10 * time.Second
)

type chatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type chatResponse struct {
	TurnID      string `json:"turn_id"`
	UserID      string `json:"user_id"`
	Reply       string `json:"reply"`
	Intercepted bool   `json:"intercepted"`
	Intent      string `json:"intent,omitempty"`
	Facts       int    `json:"facts_saved"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.deps.Assistant == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "assistant not configured")
		return
	}
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID != "" && !s.limiter.Allow(userID) {
		respondError(w, http.StatusTooManyRequests, "rate_limited", "too many messages, slow down")
		return
	}

	resp, err := s.deps.Assistant.Respond(r.Context(), assistant.Request{UserID: userID, Text: req.Message})
	if err != nil {
		status, code, message := chatErrorStatus(err)
		respondError(w, status, code, message)
		return
	}
	respondJSON(w, http.StatusOK, chatResponse{
		TurnID:      resp.TurnID,
		UserID:      userID,
		Reply:       resp.Text,
		Intercepted: resp.Intercepted,
		Intent:      string(resp.Intent),
		Facts:       len(resp.Facts),
	})
}

// chatErrorStatus maps pipeline errors to an HTTP status, a stable code and a
// message safe to show the user.
func chatErrorStatus(err error) (int, string, string) {
	switch {
	case errors.Is(err, assistant.ErrEmptyMessage):
		return http.StatusBadRequest, "empty_message", err.Error()
	case errors.Is(err, assistant.ErrMissingUser):
		return http.StatusBadRequest, "missing_user_id", err.Error()
	case errors.Is(err, assistant.ErrModelUnavailable):
		return http.StatusBadGateway, "model_unavailable", modelUnavailableReply
	default:
		log.Printf("chat turn failed: %v", err)
		return http.StatusInternalServerError, "turn_failed", "the turn could not be completed"
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "user_id is required")
		return
	}

	sess, resumed := s.sessions.Create(userID)
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
		event := "created"
		if resumed {
			event = "resumed"
		}
		s.metrics.SessionEvents.WithLabelValues(event).Inc()
	}

	status := http.StatusCreated
	if resumed {
		status = http.StatusOK
	}
	respondJSON(w, status, session.CreateResponse{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		Status:          sess.Status,
		StartedAt:       sess.StartedAt,
		LastActivityAt:  sess.LastActivityAt,
		InactivityTTLMS: s.sessions.InactivityTimeout().Milliseconds(),
		Resumed:         resumed,
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
		s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if s.deps.Assistant == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "assistant not configured")
		return
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	if sess.Status != session.StatusActive {
		respondError(w, http.StatusGone, "session_ended", session.ErrEnded.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.observeSessionEvent("ws_connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 64)
	outbound := make(chan any, 64)
	runDone := make(chan struct{})

	go func() {
		defer close(runDone)
		defer close(outbound)
		s.runConnection(ctx, sess, inbound, outbound)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range outbound {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				cancel()
				_ = conn.Close()
				// Drain so runConnection never blocks on a dead socket.
				for range outbound {
				}
				return
			}
			if t, ok := messageTypeOf(msg); ok {
				s.observeWS("outbound", t)
			}
			if isSessionEnded(msg) {
				cancel()
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
					time.Now().Add(time.Second))
				_ = conn.Close()
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}
		var item any
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			item = protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Retryable: false,
				Detail:    err.Error(),
			}
		} else {
			item = parsed
			if t, ok := messageTypeOf(parsed); ok {
				s.observeWS("inbound", t)
			}
		}
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- item:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
	s.observeSessionEvent("ws_disconnected")
}

// runConnection processes inbound frames in order, one turn at a time, always
// as the session's user.
func (s *Server) runConnection(ctx context.Context, sess *session.Session, inbound <-chan any, outbound chan<- any) {
	send := func(msg any) bool {
		select {
		case <-ctx.Done():
			return false
		case outbound <- msg:
			return true
		}
	}

	if !send(protocol.SystemEvent{Type: protocol.TypeSystemEvent, SessionID: sess.ID, Code: "session_ready", Detail: sess.UserID}) {
		return
	}

	for item := range inbound {
		switch msg := item.(type) {
		case protocol.ErrorEvent:
			if !send(msg) {
				return
			}
		case protocol.ClientControl:
			switch msg.Action {
			case protocol.ActionPing:
				_ = s.sessions.Touch(sess.ID)
				if !send(protocol.SystemEvent{Type: protocol.TypeSystemEvent, SessionID: sess.ID, Code: "pong"}) {
					return
				}
			case protocol.ActionEnd:
				if _, err := s.sessions.End(sess.ID); err == nil {
					s.observeSessionEvent("ended")
					if s.metrics != nil {
						s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
					}
				}
				send(protocol.SystemEvent{Type: protocol.TypeSystemEvent, SessionID: sess.ID, Code: "session_ended"})
				return
			}
		case protocol.UserMessage:
			if !send(s.runTurn(ctx, sess, msg)) {
				return
			}
		}
	}
}

func (s *Server) runTurn(ctx context.Context, sess *session.Session, msg protocol.UserMessage) any {
	turnID := uuid.NewString()
	if err := s.sessions.StartTurn(sess.ID, turnID); err != nil {
		code := "session_not_found"
		switch {
		case errors.Is(err, session.ErrBusy):
			code = "session_busy"
		case errors.Is(err, session.ErrEnded):
			code = "session_ended"
		}
		return protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: sess.ID,
			Code:      code,
			Source:    "session",
			Retryable: errors.Is(err, session.ErrBusy),
			Detail:    err.Error(),
		}
	}
	defer func() { _ = s.sessions.FinishTurn(sess.ID) }()

	if !s.limiter.Allow(sess.UserID) {
		return protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: sess.ID,
			Code:      "rate_limited",
			Source:    "gateway",
			Retryable: true,
			Detail:    "too many messages, slow down",
		}
	}

	resp, err := s.deps.Assistant.Respond(ctx, assistant.Request{UserID: sess.UserID, Text: msg.Text, TurnID: turnID})
	if err != nil {
		_, code, detail := chatErrorStatus(err)
		return protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: sess.ID,
			Code:      code,
			Source:    "assistant",
			Retryable: errors.Is(err, assistant.ErrModelUnavailable),
			Detail:    detail,
		}
	}
	return protocol.AssistantMessage{
		Type:        protocol.TypeAssistantMessage,
		SessionID:   sess.ID,
		TurnID:      resp.TurnID,
		ClientMsgID: msg.ClientMsgID,
		Text:        resp.Text,
		Intercepted: resp.Intercepted,
		Intent:      string(resp.Intent),
	}
}

func (s *Server) observeSessionEvent(event string) {
	if s.metrics == nil {
		return
	}
	s.metrics.SessionEvents.WithLabelValues(event).Inc()
}

func (s *Server) observeWS(direction string, t protocol.MessageType) {
	if s.metrics == nil {
		return
	}
	s.metrics.WSMessages.WithLabelValues(direction, string(t)).Inc()
}

func isSessionEnded(v any) bool {
	ev, ok := v.(protocol.SystemEvent)
	return ok && ev.Code == "session_ended"
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.UserMessage:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.AssistantMessage:
		return m.Type, true
	case protocol.SystemEvent:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
