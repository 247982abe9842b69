package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.BrainProvider != "auto" {
		t.Fatalf("BrainProvider = %q, want %q", cfg.BrainProvider, "auto")
	}
	if cfg.WorkspaceProvider != "none" {
		t.Fatalf("WorkspaceProvider = %q, want %q", cfg.WorkspaceProvider, "none")
	}
	if cfg.RetrievalTopK != 3 || cfg.HistoryLimit != 10 {
		t.Fatalf("RetrievalTopK, HistoryLimit = %d, %d, want 3, 10", cfg.RetrievalTopK, cfg.HistoryLimit)
	}
	if cfg.RAGEmbeddingDim != 256 {
		t.Fatalf("RAGEmbeddingDim = %d, want 256", cfg.RAGEmbeddingDim)
	}
	if cfg.RAGStrictLoad {
		t.Fatalf("RAGStrictLoad = true, want false")
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL = %q, want empty default", cfg.DatabaseURL)
	}
	if cfg.BrainFallbackMock {
		t.Fatalf("BrainFallbackMock = true, want false")
	}
}

func TestLoadExplicitValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9191")
	t.Setenv("DATABASE_URL", " sqlite:///tmp/jarvis.db ")
	t.Setenv("BRAIN_PROVIDER", "Ollama")
	t.Setenv("BRAIN_TIMEOUT", "5s")
	t.Setenv("RAG_STRICT_LOAD", "yes")
	t.Setenv("RETRIEVAL_TOP_K", "7")
	t.Setenv("CHAT_RATE_LIMIT", "0.5")
	t.Setenv("WORKSPACE_PROVIDER", "mock")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9191" {
		t.Fatalf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.DatabaseURL != "sqlite:///tmp/jarvis.db" {
		t.Fatalf("DatabaseURL = %q, want trimmed value", cfg.DatabaseURL)
	}
	if cfg.BrainProvider != "ollama" {
		t.Fatalf("BrainProvider = %q, want %q", cfg.BrainProvider, "ollama")
	}
	if cfg.BrainTimeout != 5*time.Second {
		t.Fatalf("BrainTimeout = %v, want 5s", cfg.BrainTimeout)
	}
	if !cfg.RAGStrictLoad {
		t.Fatalf("RAGStrictLoad = false, want true")
	}
	if cfg.RetrievalTopK != 7 {
		t.Fatalf("RetrievalTopK = %d, want 7", cfg.RetrievalTopK)
	}
	if cfg.ChatRateLimit != 0.5 {
		t.Fatalf("ChatRateLimit = %v, want 0.5", cfg.ChatRateLimit)
	}
	if cfg.WorkspaceProvider != "mock" {
		t.Fatalf("WorkspaceProvider = %q", cfg.WorkspaceProvider)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"BRAIN_PROVIDER":             "skynet",
		"WORKSPACE_PROVIDER":         "outlook",
		"RETRIEVAL_TOP_K":            "0",
		"RAG_EMBEDDING_DIM":          "-1",
		"BRAIN_TIMEOUT":              "soon",
		"SESSION_INACTIVITY_TIMEOUT": "1s",
		"RAG_STRICT_LOAD":            "maybe",
		"CHAT_RATE_LIMIT":            "-2",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(key, value)
			_, err := Load()
			if err == nil {
				t.Fatalf("Load() with %s=%q succeeded, want error", key, value)
			}
			if !strings.Contains(err.Error(), key) {
				t.Fatalf("error %q does not name %s", err, key)
			}
		})
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"SESSION_INACTIVITY_TIMEOUT",
		"DATABASE_URL",
		"RAG_STORE_PATH",
		"RAG_EMBEDDING_DIM",
		"RAG_EMBED_CACHE_SIZE",
		"RAG_STRICT_LOAD",
		"RETRIEVAL_TOP_K",
		"HISTORY_LIMIT",
		"ASSISTANT_PERSONA",
		"PERSONALIZATION_TRIGGERS_FILE",
		"BRAIN_PROVIDER",
		"BRAIN_MODEL",
		"BRAIN_TIMEOUT",
		"BRAIN_HTTP_URL",
		"BRAIN_FALLBACK_MOCK",
		"OLLAMA_HOST",
		"OPENAI_API_KEY",
		"ANTHROPIC_API_KEY",
		"GEMINI_API_KEY",
		"WORKSPACE_PROVIDER",
		"GOOGLE_CREDENTIALS_FILE",
		"GOOGLE_TOKEN_DIR",
		"CHAT_RATE_LIMIT",
		"CHAT_RATE_BURST",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
