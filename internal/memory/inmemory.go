package memory

import (
	"context"
	"sync"
)

// InMemoryStore is a simple in-process memory store for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	seq     int64
	records map[string][]Message
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]Message)}
}

func (s *InMemoryStore) SaveMessage(_ context.Context, msg Message) (Message, error) {
	msg, err := prepare(msg)
	if err != nil {
		return Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	msg.Seq = s.seq
	s.records[msg.UserID] = append(s.records[msg.UserID], msg)
	return msg, nil
}

func (s *InMemoryStore) RecentMessages(_ context.Context, userID string, limit int, roles ...Role) ([]Message, error) {
	limit = normalizeLimit(limit)
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.records[userID]
	out := make([]Message, 0, limit)
	for i := len(arr) - 1; i >= 0 && len(out) < limit; i-- {
		if hasRole(roles, arr[i].Role) {
			out = append(out, arr[i])
		}
	}
	reverse(out)
	return out, nil
}

func (s *InMemoryStore) Messages(_ context.Context, userID string, role Role) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Message
	for _, m := range s.records[userID] {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Backend() string { return "memory" }

func (s *InMemoryStore) Close() error { return nil }
