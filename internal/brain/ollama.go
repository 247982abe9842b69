package brain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

const defaultOllamaModel = "llama3.1"

// OllamaAdapter talks to a local Ollama server.
type OllamaAdapter struct {
	client *ollama.Client
	model  string
}

func NewOllamaAdapter(host, model string) (*OllamaAdapter, error) {
	if strings.TrimSpace(host) == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	if strings.TrimSpace(model) == "" {
		model = defaultOllamaModel
	}
	httpClient := &http.Client{
		Timeout: 120 * time.Second,
	}
	return &OllamaAdapter{client: ollama.NewClient(u, httpClient), model: model}, nil
}

func (a *OllamaAdapter) Name() string { return "ollama" }

func (a *OllamaAdapter) Complete(ctx context.Context, messages []Message) (string, error) {
	msgs := make([]ollama.Message, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, ollama.Message{Role: string(m.Role), Content: m.Content})
	}
	stream := false

	var text strings.Builder
	err := a.client.Chat(ctx, &ollama.ChatRequest{
		Model:    a.model,
		Messages: msgs,
		Stream:   &stream,
	}, func(resp ollama.ChatResponse) error {
		text.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", &ProviderError{Provider: "ollama", StatusCode: ollamaStatus(err), Err: err}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", ErrEmptyReply
	}
	return out, nil
}

func ollamaStatus(err error) int {
	var se ollama.StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
