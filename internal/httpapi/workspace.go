package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ent0n29/jarvis/internal/workspace"
)

const defaultWorkspaceUser = "default"

type sendEmailRequest struct {
	UserID  string `json:"user_id"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (s *Server) handleWorkspaceEmail(w http.ResponseWriter, r *http.Request) {
	if !s.requireWorkspace(w) {
		return
	}
	var req sendEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(strings.TrimSpace(req.To)) < 3 || strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.Body) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "to, subject and body are required")
		return
	}
	userID := workspaceUser(req.UserID)
	id, err := s.deps.Workspace.SendEmail(r.Context(), userID, strings.TrimSpace(req.To), req.Subject, req.Body)
	if err != nil {
		respondWorkspaceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "sent", "id": id})
}

func (s *Server) handleWorkspaceInbox(w http.ResponseWriter, r *http.Request) {
	if !s.requireWorkspace(w) {
		return
	}
	limit, ok := queryLimit(w, r, 5)
	if !ok {
		return
	}
	emails, err := s.deps.Workspace.RecentEmails(r.Context(), workspaceUser(r.URL.Query().Get("user_id")), limit)
	if err != nil {
		respondWorkspaceError(w, err)
		return
	}
	if emails == nil {
		emails = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"emails": emails})
}

func (s *Server) handleWorkspaceCalendar(w http.ResponseWriter, r *http.Request) {
	if !s.requireWorkspace(w) {
		return
	}
	limit, ok := queryLimit(w, r, 10)
	if !ok {
		return
	}
	events, err := s.deps.Workspace.UpcomingEvents(r.Context(), workspaceUser(r.URL.Query().Get("user_id")), limit)
	if err != nil {
		respondWorkspaceError(w, err)
		return
	}
	if events == nil {
		events = []workspace.Event{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) requireWorkspace(w http.ResponseWriter) bool {
	if s.deps.Workspace == nil {
		respondError(w, http.StatusServiceUnavailable, "workspace_disabled", "no workspace provider configured")
		return false
	}
	return true
}

func respondWorkspaceError(w http.ResponseWriter, err error) {
	if errors.Is(err, workspace.ErrNotConnected) {
		respondError(w, http.StatusConflict, "workspace_not_connected", err.Error())
		return
	}
	respondError(w, http.StatusBadGateway, "workspace_failed", err.Error())
}

func workspaceUser(raw string) string {
	if v := strings.TrimSpace(raw); v != "" {
		return v
	}
	return defaultWorkspaceUser
}

func queryLimit(w http.ResponseWriter, r *http.Request, fallback int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 50 {
		respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 50")
		return 0, false
	}
	return n, true
}
