package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/jarvis/internal/assistant"
	"github.com/ent0n29/jarvis/internal/config"
	"github.com/ent0n29/jarvis/internal/memory"
	"github.com/ent0n29/jarvis/internal/observability"
	"github.com/ent0n29/jarvis/internal/personalization"
	"github.com/ent0n29/jarvis/internal/rag"
	"github.com/ent0n29/jarvis/internal/session"
	"github.com/ent0n29/jarvis/internal/workspace"
)

// Assistant runs chat turns.
type Assistant interface {
	Respond(ctx context.Context, req assistant.Request) (assistant.Response, error)
	BrainName() string
}

type Retriever interface {
	AddText(text string, metadata rag.Metadata) (string, error)
	Search(query string, topK int, filters rag.Filters) []rag.Result
}

// VectorStore exposes the store operations served over HTTP.
type VectorStore interface {
	Len() int
	Clear() error
}

type ProfileReader interface {
	Profile(ctx context.Context, userID string) (personalization.Profile, error)
}

type Deps struct {
	Sessions  *session.Manager
	Assistant Assistant
	Retriever Retriever
	Store     VectorStore
	Memory    memory.Store
	Profiles  ProfileReader
	// Workspace may be nil; workspace routes then answer 503.
	Workspace workspace.Workspace
	Metrics   *observability.Metrics
}

type Server struct {
	cfg      config.Config
	deps     Deps
	sessions *session.Manager
	metrics  *observability.Metrics
	limiter  *userLimiter
	upgrader websocket.Upgrader
}

func New(cfg config.Config, deps Deps) *Server {
	sessions := deps.Sessions
	if sessions == nil {
		sessions = session.NewManager(cfg.SessionInactivityTimeout)
	}
	return &Server{
		cfg:      cfg,
		deps:     deps,
		sessions: sessions,
		metrics:  deps.Metrics,
		limiter:  newUserLimiter(cfg.ChatRateLimit, cfg.ChatRateBurst),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

// StartBackground runs the session and limiter janitors until ctx ends.
func (s *Server) StartBackground(ctx context.Context) {
	s.sessions.StartJanitor(ctx, 0)
	s.limiter.StartJanitor(ctx, 0)
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Post("/v1/chat", s.handleChat)
	r.Post("/v1/chat/session", s.handleCreateSession)
	r.Post("/v1/chat/session/{id}/end", s.handleEndSession)
	r.Get("/v1/chat/ws", s.handleSessionWS)

	r.Post("/v1/rag/ingest", s.handleRAGIngest)
	r.Post("/v1/rag/search", s.handleRAGSearch)
	r.Delete("/v1/rag/clear", s.handleRAGClear)

	r.Get("/v1/users/{id}/profile", s.handleUserProfile)
	r.Get("/v1/users/{id}/messages", s.handleUserMessages)

	r.Post("/v1/workspace/email", s.handleWorkspaceEmail)
	r.Get("/v1/workspace/inbox", s.handleWorkspaceInbox)
	r.Get("/v1/workspace/calendar", s.handleWorkspaceCalendar)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"status":             "ready",
		"brain_provider":     "",
		"memory_backend":     "",
		"vector_documents":   0,
		"workspace_provider": s.cfg.WorkspaceProvider,
		"active_sessions":    s.sessions.ActiveCount(),
	}
	status := http.StatusOK
	if s.deps.Assistant != nil {
		payload["brain_provider"] = s.deps.Assistant.BrainName()
	} else {
		payload["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	if s.deps.Memory != nil {
		payload["memory_backend"] = s.deps.Memory.Backend()
	}
	if s.deps.Store != nil {
		payload["vector_documents"] = s.deps.Store.Len()
	}
	respondJSON(w, status, payload)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
