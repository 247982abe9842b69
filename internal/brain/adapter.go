// Package brain wraps the language-model providers behind one Adapter.
package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ent0n29/jarvis/internal/reliability"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the ordered prompt sent to a model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Adapter turns an ordered message list into a single reply. Adapters never
// retry; a failure is returned to the caller as is.
type Adapter interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Name() string
}

var ErrEmptyReply = errors.New("model returned an empty reply")

// ProviderError is a non-success answer from an upstream provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether the caller may try again later.
func (e *ProviderError) Retryable() bool {
	return reliability.IsRetryableHTTPStatus(e.StatusCode)
}

// Config controls adapter construction.
type Config struct {
	Provider     string
	Model        string
	Timeout      time.Duration
	HTTPURL      string
	FallbackMock bool
	OllamaHost   string
	OpenAIKey    string
	AnthropicKey string
	GeminiKey    string
}

// NewAdapter builds the configured provider, wrapped with the timeout and
// optional mock fallback.
func NewAdapter(ctx context.Context, cfg Config) (Adapter, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" || provider == "auto" {
		provider = autoProvider(cfg)
	}

	var (
		primary Adapter
		err     error
	)
	switch provider {
	case "mock":
		primary = NewMockAdapter()
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("brain HTTP url is required for http provider")
		}
		primary = NewHTTPAdapter(cfg.HTTPURL, cfg.Model)
	case "ollama":
		primary, err = NewOllamaAdapter(cfg.OllamaHost, cfg.Model)
	case "openai":
		primary, err = NewOpenAIAdapter(cfg.OpenAIKey, cfg.Model)
	case "anthropic":
		primary, err = NewAnthropicAdapter(cfg.AnthropicKey, cfg.Model)
	case "gemini":
		primary, err = NewGeminiAdapter(ctx, cfg.GeminiKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported brain provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	adapter := WithTimeout(primary, cfg.Timeout)
	if cfg.FallbackMock && provider != "mock" {
		adapter = NewFallbackAdapter(adapter, NewMockAdapter())
	}
	return adapter, nil
}

// autoProvider prefers cloud keys, then an explicit HTTP endpoint, then a
// local Ollama host, then the mock.
func autoProvider(cfg Config) string {
	switch {
	case strings.TrimSpace(cfg.AnthropicKey) != "":
		return "anthropic"
	case strings.TrimSpace(cfg.OpenAIKey) != "":
		return "openai"
	case strings.TrimSpace(cfg.GeminiKey) != "":
		return "gemini"
	case strings.TrimSpace(cfg.HTTPURL) != "":
		return "http"
	case strings.TrimSpace(cfg.OllamaHost) != "":
		return "ollama"
	}
	return "mock"
}

// splitSystem joins system messages into one instruction and returns the rest
// in order. Providers with a dedicated system field use it.
func splitSystem(messages []Message) (string, []Message) {
	var (
		system []string
		rest   = make([]Message, 0, len(messages))
	)
	for _, m := range messages {
		if m.Role == RoleSystem {
			if s := strings.TrimSpace(m.Content); s != "" {
				system = append(system, s)
			}
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

func lastUserText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
