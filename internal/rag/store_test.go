package rag

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestOpenCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.json")
	s, err := Open(path, StoreOptions{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("store file not created: %v", err)
	}
	if _, err := decodeStore(raw); err != nil {
		t.Fatalf("decodeStore() error = %v", err)
	}
}

func TestAddDocumentPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	s, err := Open(path, StoreOptions{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	meta := Metadata{UserID: "alice", Kind: "note", Extra: map[string]string{"source": "email"}}
	id1, err := s.AddDocument("first", []float64{1, 0}, meta)
	if err != nil {
		t.Fatalf("AddDocument() error = %v", err)
	}
	id2, err := s.AddDocument("second", []float64{0, 1}, Metadata{})
	if err != nil {
		t.Fatalf("AddDocument() error = %v", err)
	}
	if id1 == "" || id1 == id2 {
		t.Fatalf("ids = %q, %q, want distinct non-empty", id1, id2)
	}

	reopened, err := Open(path, StoreOptions{OnCorrupt: CorruptFail})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if !reflect.DeepEqual(reopened.AllDocuments(), s.AllDocuments()) {
		t.Fatalf("reloaded documents = %+v, want %+v", reopened.AllDocuments(), s.AllDocuments())
	}
	got, ok := reopened.Get(id1)
	if !ok {
		t.Fatalf("Get(%q) missing after reopen", id1)
	}
	if got.Metadata.UserID != "alice" || got.Metadata.Extra["source"] != "email" {
		t.Fatalf("metadata = %+v", got.Metadata)
	}
}

func TestAllDocumentsReturnsCopies(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "store.json"), StoreOptions{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	id, _ := s.AddDocument("text", []float64{1, 2}, Metadata{UserID: "u1"})

	docs := s.AllDocuments()
	docs[0].Embedding[0] = 99
	docs[0].Metadata.UserID = "intruder"

	got, _ := s.Get(id)
	if got.Embedding[0] != 1 || got.Metadata.UserID != "u1" {
		t.Fatalf("store mutated through copy: %+v", got)
	}
}

func TestOpenCorruptFileResetsByDefault(t *testing.T) {
	for name, body := range map[string]string{
		"garbage":      "{not json",
		"missing key":  `{"docs": []}`,
		"duplicate id": `{"documents":[{"id":"a","text":"x"},{"id":"a","text":"y"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "store.json")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			s, err := Open(path, StoreOptions{})
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if s.Len() != 0 {
				t.Fatalf("Len() = %d, want 0", s.Len())
			}
			raw, _ := os.ReadFile(path)
			if _, err := decodeStore(raw); err != nil {
				t.Fatalf("file was not rewritten: %v", err)
			}
		})
	}
}

func TestOpenCorruptFileStrict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path, StoreOptions{OnCorrupt: CorruptFail})
	if !errors.Is(err, ErrCorruptStore) {
		t.Fatalf("Open() error = %v, want ErrCorruptStore", err)
	}
	raw, _ := os.ReadFile(path)
	if string(raw) != "{not json" {
		t.Fatalf("strict open modified the file: %q", raw)
	}
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	s, _ := Open(path, StoreOptions{})
	if _, err := s.AddDocument("a", []float64{1}, Metadata{}); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}
	reopened, _ := Open(path, StoreOptions{OnCorrupt: CorruptFail})
	if reopened.Len() != 0 {
		t.Fatalf("reopened Len() = %d, want 0", reopened.Len())
	}
}

func TestFlushLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, _ := Open(filepath.Join(dir, "store.json"), StoreOptions{})
	for i := 0; i < 3; i++ {
		if _, err := s.AddDocument("doc", []float64{1}, Metadata{}); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("dir entries = %v, want only store.json", names)
	}
}

func TestMetadataJSONRoundTripFlattensTypedFields(t *testing.T) {
	var m Metadata
	if err := m.UnmarshalJSON([]byte(`{"user_id":"u1","role":"user","kind":"chat","page":3,"tag":"x","empty":null}`)); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v", err)
	}
	if m.UserID != "u1" || m.Role != "user" || m.Kind != "chat" {
		t.Fatalf("typed fields = %+v", m)
	}
	if m.Extra["page"] != "3" || m.Extra["tag"] != "x" {
		t.Fatalf("Extra = %v", m.Extra)
	}
	if _, ok := m.Extra["empty"]; ok {
		t.Fatalf("null value should be dropped")
	}
	if v, ok := m.Lookup(KeyUserID); !ok || v != "u1" {
		t.Fatalf("Lookup(user_id) = %q, %v", v, ok)
	}
	if _, ok := (Metadata{}).Lookup(KeyUserID); ok {
		t.Fatalf("empty user id should be absent")
	}
}

func TestFailedCommitLeavesStoreUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	s, err := Open(path, StoreOptions{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	id, err := s.AddDocument("kept", []float64{1}, Metadata{UserID: "u1"})
	if err != nil {
		t.Fatalf("AddDocument() error = %v", err)
	}

	// A non-empty directory at the target path makes the rename fail.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(path, "blocker"), 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := s.AddDocument("lost", []float64{1}, Metadata{UserID: "u1"}); err == nil {
		t.Fatalf("AddDocument() error = nil, want commit failure")
	}
	if s.Len() != 1 {
		t.Fatalf("Len() after failed add = %d, want 1", s.Len())
	}
	if err := s.Clear(); err == nil {
		t.Fatalf("Clear() error = nil, want commit failure")
	}
	if s.Len() != 1 {
		t.Fatalf("Len() after failed clear = %d, want 1", s.Len())
	}
	if _, ok := s.Get(id); !ok {
		t.Fatalf("Get(%q) missing after failed commits", id)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "store.json" {
			t.Fatalf("leftover entry %q after failed commits", e.Name())
		}
	}
}
