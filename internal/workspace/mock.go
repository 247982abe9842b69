package workspace

import (
	"context"
	"sync"
)

// SentEmail records one SendEmail call on Mock.
type SentEmail struct {
	UserID  string `json:"user_id"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Mock is an in-process Workspace for local runs and tests.
type Mock struct {
	mu     sync.Mutex
	sent   []SentEmail
	Inbox  []string
	Events []Event
	// Err, when set, is returned by every call.
	Err error
}

func NewMock() *Mock {
	return &Mock{
		Inbox: []string{
			"Welcome to Jarvis: your assistant is ready.",
		},
	}
}

func (m *Mock) SendEmail(_ context.Context, userID, to, subject, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.sent = append(m.sent, SentEmail{UserID: userID, To: to, Subject: subject, Body: body})
	return "Email sent successfully", nil
}

func (m *Mock) RecentEmails(_ context.Context, _ string, n int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if n <= 0 || n > len(m.Inbox) {
		n = len(m.Inbox)
	}
	return append([]string(nil), m.Inbox[:n]...), nil
}

func (m *Mock) UpcomingEvents(_ context.Context, _ string, n int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if n <= 0 || n > len(m.Events) {
		n = len(m.Events)
	}
	return append([]Event(nil), m.Events[:n]...), nil
}

// Sent returns a copy of every email sent so far.
func (m *Mock) Sent() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentEmail(nil), m.sent...)
}
