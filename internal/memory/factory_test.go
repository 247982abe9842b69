package memory

import (
	"context"
	"testing"
)

func TestNewStoreDefaultsToInMemory(t *testing.T) {
	s, err := NewStore(context.Background(), "  ")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if s.Backend() != "memory" {
		t.Fatalf("Backend() = %q, want memory", s.Backend())
	}
}

func TestSQLiteURLDetection(t *testing.T) {
	tests := []struct {
		in     string
		sqlite bool
		dsn    string
	}{
		{in: "sqlite:///tmp/j.db", sqlite: true, dsn: "/tmp/j.db"},
		{in: "sqlite:data/j.db", sqlite: true, dsn: "data/j.db"},
		{in: "file:j.db?cache=shared", sqlite: true, dsn: "file:j.db?cache=shared"},
		{in: "/var/lib/jarvis/memory.db", sqlite: true, dsn: "/var/lib/jarvis/memory.db"},
		{in: "postgres://u:p@localhost/db", sqlite: false},
	}
	for _, tt := range tests {
		if got := isSQLiteURL(tt.in); got != tt.sqlite {
			t.Fatalf("isSQLiteURL(%q) = %v, want %v", tt.in, got, tt.sqlite)
		}
		if tt.sqlite {
			if got := sqliteDSN(tt.in); got != tt.dsn {
				t.Fatalf("sqliteDSN(%q) = %q, want %q", tt.in, got, tt.dsn)
			}
		}
	}
}

func TestNewStoreOpensSQLite(t *testing.T) {
	s, err := NewStore(context.Background(), "sqlite:"+t.TempDir()+"/m.db")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer s.Close()
	if s.Backend() != "sqlite" {
		t.Fatalf("Backend() = %q, want sqlite", s.Backend())
	}
}

func TestDecodeMessagesDropsForeignEntries(t *testing.T) {
	raw := []string{
		`{"id":"1","seq":1,"user_id":"ua","role":"user","content":"mine"}`,
		`{"id":"2","seq":2,"user_id":"ub","role":"user","content":"theirs"}`,
	}
	got, err := decodeMessages(raw, "ua")
	if err != nil {
		t.Fatalf("decodeMessages() error = %v", err)
	}
	if len(got) != 1 || got[0].Content != "mine" {
		t.Fatalf("decodeMessages() = %+v", got)
	}
	if _, err := decodeMessages([]string{"{bad"}, "ua"); err == nil {
		t.Fatalf("expected decode error")
	}
}
