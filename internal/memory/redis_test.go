package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisSaveAssignsIncreasingSeq(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t)

	var last int64
	for i := 0; i < 5; i++ {
		user := "ua"
		if i%2 == 1 {
			user = "ub"
		}
		saved, err := s.SaveMessage(ctx, Message{UserID: user, Role: RoleUser, Content: fmt.Sprintf("m%d", i)})
		if err != nil {
			t.Fatalf("SaveMessage() error = %v", err)
		}
		if saved.Seq <= last {
			t.Fatalf("Seq = %d after %d, want strictly increasing", saved.Seq, last)
		}
		last = saved.Seq
	}

	got, err := s.RecentMessages(ctx, "ua", 2)
	if err != nil {
		t.Fatalf("RecentMessages() error = %v", err)
	}
	if len(got) != 2 || got[0].Content != "m2" || got[1].Content != "m4" {
		t.Fatalf("RecentMessages(ua, 2) = %+v, want m2 then m4", got)
	}
	if got[0].Seq >= got[1].Seq {
		t.Fatalf("stored seq not oldest-first: %+v", got)
	}
	for _, m := range got {
		if m.UserID != "ua" {
			t.Fatalf("foreign message returned: %+v", m)
		}
	}
}

func TestRedisRoleFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t)
	for _, m := range []Message{
		{UserID: "u", Role: RoleUser, Content: "hi"},
		{UserID: "u", Role: RoleSystem, Content: "name:Ann"},
		{UserID: "u", Role: RoleAssistant, Content: "hello"},
		{UserID: "u", Role: RoleSystem, Content: "name:Anna"},
	} {
		if _, err := s.SaveMessage(ctx, m); err != nil {
			t.Fatalf("SaveMessage() error = %v", err)
		}
	}

	turns, err := s.RecentMessages(ctx, "u", 10, RoleUser, RoleAssistant)
	if err != nil {
		t.Fatalf("RecentMessages() error = %v", err)
	}
	if len(turns) != 2 || turns[0].Content != "hi" || turns[1].Content != "hello" {
		t.Fatalf("turns = %+v", turns)
	}
	facts, err := s.Messages(ctx, "u", RoleSystem)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(facts) != 2 || facts[0].Content != "name:Ann" || facts[1].Content != "name:Anna" {
		t.Fatalf("facts = %+v", facts)
	}
	if _, err := s.SaveMessage(ctx, Message{UserID: "u", Role: "tool", Content: "x"}); err == nil {
		t.Fatalf("SaveMessage() with invalid role should fail")
	}
}
