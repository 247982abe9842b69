package httpapi

import (
	"net/http"
	"strings"

	"github.com/ent0n29/jarvis/internal/rag"
)

type ingestItem struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type ingestRequest struct {
	// UserID tags every item; empty leaves items untagged, and untagged
	// documents never match a user-scoped search.
	UserID string       `json:"user_id"`
	Items  []ingestItem `json:"items"`
}

type searchRequest struct {
	Query    string            `json:"query"`
	TopK     int               `json:"top_k"`
	UserID   string            `json:"user_id"`
	AllUsers bool              `json:"all_users"`
	Filters  map[string]string `json:"filters,omitempty"`
}

func (s *Server) handleRAGIngest(w http.ResponseWriter, r *http.Request) {
	if s.deps.Retriever == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "retriever not configured")
		return
	}
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "items must not be empty")
		return
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.Text) == "" {
			respondError(w, http.StatusBadRequest, "invalid_request", "item text must not be empty")
			return
		}
	}

	userID := strings.TrimSpace(req.UserID)
	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		meta := rag.MetadataFromMap(item.Metadata)
		if userID != "" {
			meta.UserID = userID
		}
		id, err := s.deps.Retriever.AddText(item.Text, meta)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "store_write_failed", err.Error())
			return
		}
		ids = append(ids, id)
	}
	s.refreshDocumentGauge()
	respondJSON(w, http.StatusCreated, map[string]any{
		"status": "ok",
		"count":  len(ids),
		"ids":    ids,
	})
}

func (s *Server) handleRAGSearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Retriever == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "retriever not configured")
		return
	}
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "query must not be empty")
		return
	}

	filters := rag.Filters{}
	for k, v := range req.Filters {
		filters[k] = v
	}
	userID := strings.TrimSpace(req.UserID)
	switch {
	case userID != "":
		filters[rag.KeyUserID] = userID
	case req.AllUsers:
		delete(filters, rag.KeyUserID)
	default:
		if _, ok := filters[rag.KeyUserID]; !ok {
			respondError(w, http.StatusBadRequest, "missing_user_id", "user_id is required unless all_users is true")
			return
		}
	}

	results := s.deps.Retriever.Search(req.Query, req.TopK, filters)
	if s.metrics != nil {
		s.metrics.ObserveRetrievalHits(len(results))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"results": results,
	})
}

func (s *Server) handleRAGClear(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Store == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "vector store not configured")
		return
	}
	if err := s.deps.Store.Clear(); err != nil {
		respondError(w, http.StatusInternalServerError, "store_write_failed", err.Error())
		return
	}
	s.refreshDocumentGauge()
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) refreshDocumentGauge() {
	if s.deps.Store == nil {
		return
	}
	s.metrics.SetVectorDocuments(s.deps.Store.Len())
}
