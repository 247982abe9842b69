// Package workspace is the mail and calendar collaborator used by the command
// interceptor and the workspace HTTP routes.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrNotConnected = errors.New("workspace account is not connected")

// Event is an upcoming calendar entry. Start is RFC 3339 for timed events and
// YYYY-MM-DD for all-day ones.
type Event struct {
	Summary string `json:"summary"`
	Start   string `json:"start"`
}

// Workspace sends and reads mail and lists calendar events for a user.
type Workspace interface {
	SendEmail(ctx context.Context, userID, to, subject, body string) (string, error)
	RecentEmails(ctx context.Context, userID string, n int) ([]string, error)
	UpcomingEvents(ctx context.Context, userID string, n int) ([]Event, error)
}

// New returns the configured provider. "none" yields a nil Workspace, which
// disables every workspace intent.
func New(provider, credentialsFile, tokenDir string) (Workspace, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "none":
		return nil, nil
	case "mock":
		return NewMock(), nil
	case "google":
		g, err := NewGoogle(credentialsFile, tokenDir)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	return nil, fmt.Errorf("unknown workspace provider %q", provider)
}
