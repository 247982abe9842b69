package brain

import (
	"context"
	"fmt"
	"strings"
)

// MockAdapter provides deterministic local replies when no model is configured.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) Name() string { return "mock" }

func (a *MockAdapter) Complete(ctx context.Context, messages []Message) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return buildMockReply(messages), nil
}

// buildMockReply echoes the newest user turn and, when the prompt carried
// retrieved context, the last remembered line.
func buildMockReply(messages []Message) string {
	base := strings.TrimSpace(lastUserText(messages))
	if base == "" {
		base = "I am listening."
	}

	var memory string
	for _, m := range messages {
		if m.Role != RoleSystem || !strings.HasPrefix(m.Content, ContextHeader) {
			continue
		}
		lines := strings.Split(strings.TrimSpace(m.Content), "\n")
		memory = strings.TrimSpace(strings.TrimPrefix(lines[len(lines)-1], "- "))
	}
	if memory == "" || memory == ContextHeader {
		return fmt.Sprintf("I heard you: %s", base)
	}
	return fmt.Sprintf("I heard you: %s\nI also remember: %s", base, memory)
}

// ContextHeader opens the retrieved-context system message.
const ContextHeader = "Relevant memories:"
