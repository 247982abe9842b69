package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the assistant service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	DatabaseURL string

	RAGStorePath      string
	RAGEmbeddingDim   int
	RAGEmbedCacheSize int
	RAGStrictLoad     bool

	RetrievalTopK int
	HistoryLimit  int
	Persona       string

	PersonalizationTriggersFile string

	BrainProvider     string
	BrainModel        string
	BrainTimeout      time.Duration
	BrainHTTPURL      string
	BrainFallbackMock bool
	OllamaHost        string
	OpenAIAPIKey      string
	AnthropicAPIKey   string
	GeminiAPIKey      string

	WorkspaceProvider     string
	GoogleCredentialsFile string
	GoogleTokenDir        string

	// ChatRateLimit is turns per second per user; 0 disables limiting.
	ChatRateLimit float64
	ChatRateBurst int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                    envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:            envOrDefault("APP_METRICS_NAMESPACE", "jarvis"),
		AllowAnyOrigin:              false,
		DatabaseURL:                 stringsTrimSpace("DATABASE_URL"),
		RAGStorePath:                envOrDefault("RAG_STORE_PATH", "data/vector_store.json"),
		RAGEmbeddingDim:             256,
		RAGEmbedCacheSize:           4096,
		RetrievalTopK:               3,
		HistoryLimit:                10,
		Persona:                     stringsTrimSpace("ASSISTANT_PERSONA"),
		PersonalizationTriggersFile: stringsTrimSpace("PERSONALIZATION_TRIGGERS_FILE"),
		BrainProvider:               strings.ToLower(envOrDefault("BRAIN_PROVIDER", "auto")),
		BrainModel:                  stringsTrimSpace("BRAIN_MODEL"),
		BrainHTTPURL:                stringsTrimSpace("BRAIN_HTTP_URL"),
		BrainFallbackMock:           false,
		OllamaHost:                  stringsTrimSpace("OLLAMA_HOST"),
		OpenAIAPIKey:                stringsTrimSpace("OPENAI_API_KEY"),
		AnthropicAPIKey:             stringsTrimSpace("ANTHROPIC_API_KEY"),
		GeminiAPIKey:                stringsTrimSpace("GEMINI_API_KEY"),
		WorkspaceProvider:           strings.ToLower(envOrDefault("WORKSPACE_PROVIDER", "none")),
		GoogleCredentialsFile:       envOrDefault("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
		GoogleTokenDir:              envOrDefault("GOOGLE_TOKEN_DIR", "data/tokens"),
		ChatRateLimit:               2,
		ChatRateBurst:               5,
		ShutdownTimeout:             15 * time.Second,
		SessionInactivityTimeout:    10 * time.Minute,
		BrainTimeout:                60 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.BrainTimeout, err = durationFromEnv("BRAIN_TIMEOUT", cfg.BrainTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.RAGEmbeddingDim, err = intFromEnv("RAG_EMBEDDING_DIM", cfg.RAGEmbeddingDim)
	if err != nil {
		return Config{}, err
	}
	cfg.RAGEmbedCacheSize, err = intFromEnv("RAG_EMBED_CACHE_SIZE", cfg.RAGEmbedCacheSize)
	if err != nil {
		return Config{}, err
	}
	cfg.RAGStrictLoad, err = boolFromEnv("RAG_STRICT_LOAD", cfg.RAGStrictLoad)
	if err != nil {
		return Config{}, err
	}
	cfg.RetrievalTopK, err = intFromEnv("RETRIEVAL_TOP_K", cfg.RetrievalTopK)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryLimit, err = intFromEnv("HISTORY_LIMIT", cfg.HistoryLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.BrainFallbackMock, err = boolFromEnv("BRAIN_FALLBACK_MOCK", cfg.BrainFallbackMock)
	if err != nil {
		return Config{}, err
	}
	cfg.ChatRateLimit, err = floatFromEnv("CHAT_RATE_LIMIT", cfg.ChatRateLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.ChatRateBurst, err = intFromEnv("CHAT_RATE_BURST", cfg.ChatRateBurst)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.BrainTimeout <= 0 {
		return Config{}, fmt.Errorf("BRAIN_TIMEOUT must be positive")
	}
	if cfg.RAGEmbeddingDim <= 0 {
		return Config{}, fmt.Errorf("RAG_EMBEDDING_DIM must be positive")
	}
	if cfg.RAGEmbedCacheSize < 0 {
		return Config{}, fmt.Errorf("RAG_EMBED_CACHE_SIZE must be >= 0")
	}
	if strings.TrimSpace(cfg.RAGStorePath) == "" {
		return Config{}, fmt.Errorf("RAG_STORE_PATH must not be empty")
	}
	if cfg.RetrievalTopK <= 0 {
		return Config{}, fmt.Errorf("RETRIEVAL_TOP_K must be positive")
	}
	if cfg.HistoryLimit <= 0 {
		return Config{}, fmt.Errorf("HISTORY_LIMIT must be positive")
	}
	if cfg.ChatRateLimit < 0 {
		return Config{}, fmt.Errorf("CHAT_RATE_LIMIT must be >= 0")
	}
	if cfg.ChatRateLimit > 0 && cfg.ChatRateBurst <= 0 {
		return Config{}, fmt.Errorf("CHAT_RATE_BURST must be positive when CHAT_RATE_LIMIT is set")
	}
	switch cfg.BrainProvider {
	case "auto", "mock", "http", "ollama", "openai", "anthropic", "gemini":
	default:
		return Config{}, fmt.Errorf("BRAIN_PROVIDER %q is not supported", cfg.BrainProvider)
	}
	switch cfg.WorkspaceProvider {
	case "none", "mock", "google":
	default:
		return Config{}, fmt.Errorf("WORKSPACE_PROVIDER %q is not supported", cfg.WorkspaceProvider)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
