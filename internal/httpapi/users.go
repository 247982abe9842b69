package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/jarvis/internal/memory"
)

func (s *Server) handleUserProfile(w http.ResponseWriter, r *http.Request) {
	if s.deps.Profiles == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "personalization not configured")
		return
	}
	userID := strings.TrimSpace(chi.URLParam(r, "id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "user id is required")
		return
	}
	profile, err := s.deps.Profiles.Profile(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "profile_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"profile": profile,
	})
}

func (s *Server) handleUserMessages(w http.ResponseWriter, r *http.Request) {
	if s.deps.Memory == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "memory not configured")
		return
	}
	userID := strings.TrimSpace(chi.URLParam(r, "id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "user id is required")
		return
	}
	limit := memory.DefaultRecentLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	var roles []memory.Role
	if raw := strings.TrimSpace(r.URL.Query().Get("role")); raw != "" {
		role := memory.Role(raw)
		if !role.Valid() {
			respondError(w, http.StatusBadRequest, "invalid_role", memory.ErrInvalidRole.Error())
			return
		}
		roles = append(roles, role)
	}

	msgs, err := s.deps.Memory.RecentMessages(r.Context(), userID, limit, roles...)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, memory.ErrMissingUser) {
			status = http.StatusBadRequest
		}
		respondError(w, status, "messages_failed", err.Error())
		return
	}
	if msgs == nil {
		msgs = []memory.Message{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":  userID,
		"messages": msgs,
	})
}
