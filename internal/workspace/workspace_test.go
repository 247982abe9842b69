package workspace

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/api/calendar/v3"
)

func TestMockRecordsAndLimits(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	m.Inbox = []string{"a", "b", "c"}
	m.Events = []Event{{Summary: "standup", Start: "2026-01-01T09:00:00Z"}}

	if _, err := m.SendEmail(ctx, "u1", "bob@example.com", "Hi", "Hello"); err != nil {
		t.Fatalf("SendEmail() error = %v", err)
	}
	sent := m.Sent()
	if len(sent) != 1 || sent[0].To != "bob@example.com" || sent[0].UserID != "u1" {
		t.Fatalf("Sent() = %+v", sent)
	}
	emails, _ := m.RecentEmails(ctx, "u1", 2)
	if len(emails) != 2 {
		t.Fatalf("RecentEmails() len = %d, want 2", len(emails))
	}
	events, _ := m.UpcomingEvents(ctx, "u1", 5)
	if len(events) != 1 {
		t.Fatalf("UpcomingEvents() len = %d, want 1", len(events))
	}

	m.Err = errors.New("offline")
	if _, err := m.RecentEmails(ctx, "u1", 1); err == nil {
		t.Fatalf("expected error")
	}
}

func TestEncodeMessageStripsHeaderBreaks(t *testing.T) {
	raw, err := base64.URLEncoding.DecodeString(encodeMessage("bob@example.com\r\nBcc: eve@example.com", "Hi", "Hello"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	msg := string(raw)
	if strings.Contains(msg, "\r\nBcc:") {
		t.Fatalf("header injection not prevented: %q", msg)
	}
	if !strings.HasSuffix(msg, "\r\n\r\nHello") {
		t.Fatalf("body missing: %q", msg)
	}
}

func TestToEvent(t *testing.T) {
	ev := toEvent(&calendar.Event{Start: &calendar.EventDateTime{Date: "2026-03-01"}})
	if ev.Summary != "(No title)" || ev.Start != "2026-03-01" {
		t.Fatalf("toEvent() = %+v", ev)
	}
	ev = toEvent(&calendar.Event{Summary: "Review", Start: &calendar.EventDateTime{DateTime: "2026-03-01T10:00:00Z"}})
	if ev.Start != "2026-03-01T10:00:00Z" {
		t.Fatalf("toEvent() = %+v", ev)
	}
}

func TestGoogleMissingTokenIsNotConnected(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "credentials.json")
	body := `{"installed":{"client_id":"id","client_secret":"secret","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`
	if err := os.WriteFile(creds, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	g, err := NewGoogle(creds, dir)
	if err != nil {
		t.Fatalf("NewGoogle() error = %v", err)
	}
	if _, err := g.RecentEmails(context.Background(), "u1", 5); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("RecentEmails() error = %v, want ErrNotConnected", err)
	}
	if _, err := g.UpcomingEvents(context.Background(), "../etc", 5); err == nil || errors.Is(err, ErrNotConnected) {
		t.Fatalf("UpcomingEvents() error = %v, want invalid user id", err)
	}
}

func TestNewProvider(t *testing.T) {
	ws, err := New("none", "", "")
	if err != nil || ws != nil {
		t.Fatalf("New(none) = %v, %v, want nil, nil", ws, err)
	}
	ws, err = New("Mock", "", "")
	if err != nil {
		t.Fatalf("New(mock) error = %v", err)
	}
	if _, ok := ws.(*Mock); !ok {
		t.Fatalf("New(mock) = %T, want *Mock", ws)
	}
	if _, err := New("outlook", "", ""); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
