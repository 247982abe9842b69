package brain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaAdapterChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Model != "tiny" || len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("request = %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"tiny","message":{"role":"assistant","content":"pong"},"done":true}` + "\n"))
	}))
	defer srv.Close()

	a, err := NewOllamaAdapter(srv.URL, "tiny")
	if err != nil {
		t.Fatalf("NewOllamaAdapter() error = %v", err)
	}
	text, err := a.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "persona"},
		{Role: RoleUser, Content: "ping"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != "pong" {
		t.Fatalf("text = %q, want pong", text)
	}
}
