package memory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultRecentLimit is the history window used when callers pass limit <= 0.
const DefaultRecentLimit = 10

// Role tags a message in the log.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem rows hold personalization facts, not conversation turns.
	RoleSystem Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

var (
	ErrInvalidRole = errors.New("invalid message role")
	ErrMissingUser = errors.New("user id is required")
)

// Message is one entry in a user's conversation log. Seq is assigned by the
// store and is the only ordering key; CreatedAt is informational.
type Message struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists and retrieves per-user conversation logs.
type Store interface {
	SaveMessage(ctx context.Context, msg Message) (Message, error)
	// RecentMessages returns the newest limit messages for userID, oldest
	// first. When roles is non-empty only those roles are considered.
	RecentMessages(ctx context.Context, userID string, limit int, roles ...Role) ([]Message, error)
	// Messages returns every message with the given role, in insertion order.
	Messages(ctx context.Context, userID string, role Role) ([]Message, error)
	Backend() string
	Close() error
}

// prepare validates msg and fills the fields a backend does not assign itself.
func prepare(msg Message) (Message, error) {
	msg.UserID = strings.TrimSpace(msg.UserID)
	if msg.UserID == "" {
		return Message{}, ErrMissingUser
	}
	if !msg.Role.Valid() {
		return Message{}, ErrInvalidRole
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return msg, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return limit
}

func roleStrings(roles []Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}

func hasRole(roles []Role, r Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, want := range roles {
		if want == r {
			return true
		}
	}
	return false
}

func reverse(items []Message) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
