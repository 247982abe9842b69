package brain

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPAdapter forwards the prompt to a JSON chat endpoint. The endpoint may
// answer with a JSON object, plain text, SSE or NDJSON.
type HTTPAdapter struct {
	url    string
	model  string
	client *http.Client
}

type httpRequest struct {
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`
}

func NewHTTPAdapter(url, model string) *HTTPAdapter {
	return &HTTPAdapter{
		url:   strings.TrimSpace(url),
		model: strings.TrimSpace(model),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (a *HTTPAdapter) Name() string { return "http" }

func (a *HTTPAdapter) Complete(ctx context.Context, messages []Message) (string, error) {
	payload, err := json.Marshal(httpRequest{Model: a.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", &ProviderError{
			Provider:   "http",
			StatusCode: res.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(body))),
		}
	}

	ct := strings.ToLower(res.Header.Get("Content-Type"))
	if strings.Contains(ct, "text/event-stream") || strings.Contains(ct, "application/x-ndjson") {
		return consumeStreaming(res.Body)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		text := strings.TrimSpace(string(body))
		if text == "" {
			return "", ErrEmptyReply
		}
		return text, nil
	}

	text := extractText(obj)
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

func consumeStreaming(body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
		if line == "[DONE]" {
			break
		}

		delta := line
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err == nil {
			delta = extractText(obj)
		}
		out.WriteString(delta)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("stream read: %w", err)
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

func extractText(obj map[string]any) string {
	for _, k := range []string{"text", "delta", "output", "response", "content"} {
		if s, ok := obj[k].(string); ok {
			return s
		}
	}
	// {"message":{"role":"assistant","content":"..."}} and plain {"message":"..."}
	switch m := obj["message"].(type) {
	case string:
		return m
	case map[string]any:
		if s, ok := m["content"].(string); ok {
			return s
		}
	}
	return ""
}
