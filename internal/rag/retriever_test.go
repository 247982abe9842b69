package rag

import (
	"path/filepath"
	"testing"
)

func newTestRetriever(t *testing.T) (*Retriever, *FileStore) {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "store.json"), StoreOptions{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	emb, err := NewHashEmbedder(DefaultDimension, 0)
	if err != nil {
		t.Fatalf("NewHashEmbedder() error = %v", err)
	}
	return NewRetriever(store, emb), store
}

func TestSearchUserIsolation(t *testing.T) {
	r, _ := newTestRetriever(t)

	aliceID, _ := r.AddText("project phoenix update from alice", Metadata{UserID: "alice"})
	bobID, _ := r.AddText("project phoenix update from bob", Metadata{UserID: "bob"})
	untaggedID, _ := r.AddText("project phoenix update legacy", Metadata{})

	got := r.SearchUser("alice", "project phoenix update", 10)
	if len(got) != 1 || got[0].ID != aliceID {
		t.Fatalf("alice results = %+v, want only %s", got, aliceID)
	}

	got = r.SearchUser("bob", "project phoenix update", 10)
	if len(got) != 1 || got[0].ID != bobID {
		t.Fatalf("bob results = %+v, want only %s", got, bobID)
	}

	got = r.SearchUser("", "project phoenix update", 10)
	if len(got) != 0 {
		t.Fatalf("empty user results = %+v, want none", got)
	}

	all := r.Search("project phoenix update", 10, nil)
	if len(all) != 3 {
		t.Fatalf("unscoped results = %d, want 3", len(all))
	}
	seen := map[string]bool{}
	for _, res := range all {
		seen[res.ID] = true
	}
	if !seen[untaggedID] {
		t.Fatalf("unscoped search should include untagged document")
	}
}

func TestSearchRanksAndTruncates(t *testing.T) {
	r, _ := newTestRetriever(t)

	best, _ := r.AddText("golang channels and goroutines", Metadata{})
	_, _ = r.AddText("golang modules", Metadata{})
	_, _ = r.AddText("cooking pasta", Metadata{})

	got := r.Search("golang goroutines channels", 1, nil)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].ID != best {
		t.Fatalf("top result = %q, want %q", got[0].Text, "golang channels and goroutines")
	}

	got = r.Search("golang goroutines channels", 0, nil)
	for _, res := range got {
		if res.Text == "cooking pasta" {
			t.Fatalf("zero-score document returned: %+v", res)
		}
		if res.Score <= 0 || res.Score > 1 {
			t.Fatalf("score out of range: %v", res.Score)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Score < got[i].Score {
			t.Fatalf("results not sorted: %+v", got)
		}
	}
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	r, _ := newTestRetriever(t)
	first, _ := r.AddText("same words", Metadata{Kind: "a"})
	second, _ := r.AddText("same words", Metadata{Kind: "b"})

	got := r.Search("same words", 5, nil)
	if len(got) != 2 || got[0].ID != first || got[1].ID != second {
		t.Fatalf("tie order = %+v, want %s then %s", got, first, second)
	}
}

func TestSearchGenericFilters(t *testing.T) {
	r, _ := newTestRetriever(t)
	noteID, _ := r.AddText("quarterly report", Metadata{UserID: "u1", Kind: "note"})
	_, _ = r.AddText("quarterly report", Metadata{UserID: "u1", Kind: "chat"})
	_, _ = r.AddText("quarterly report", Metadata{UserID: "u1", Extra: map[string]string{"source": "drive"}})

	got := r.Search("quarterly report", 5, Filters{KeyUserID: "u1", KeyKind: "note"})
	if len(got) != 1 || got[0].ID != noteID {
		t.Fatalf("kind filter results = %+v", got)
	}

	got = r.Search("quarterly report", 5, Filters{"source": "drive"})
	if len(got) != 1 || got[0].Metadata.Extra["source"] != "drive" {
		t.Fatalf("extra filter results = %+v", got)
	}
}

func TestSearchEmptyStoreAndQuery(t *testing.T) {
	r, _ := newTestRetriever(t)
	if got := r.Search("anything", 3, nil); len(got) != 0 {
		t.Fatalf("empty store results = %+v", got)
	}
	_, _ = r.AddText("hello world", Metadata{})
	if got := r.Search("", 3, nil); len(got) != 0 {
		t.Fatalf("empty query results = %+v", got)
	}
}
