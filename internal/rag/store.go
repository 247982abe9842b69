package rag

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// ErrCorruptStore is returned by Open when the backing file cannot be decoded
// and the store was opened with CorruptFail.
var ErrCorruptStore = errors.New("vector store file is corrupt")

// CorruptPolicy decides what Open does with an undecodable store file.
type CorruptPolicy int

const (
	// CorruptReset discards the unreadable file and starts empty. Lossy.
	CorruptReset CorruptPolicy = iota
	// CorruptFail refuses to open the store.
	CorruptFail
)

// StoreOptions configures Open.
type StoreOptions struct {
	OnCorrupt CorruptPolicy
}

type storeFile struct {
	Documents []Document `json:"documents"`
}

// FileStore is an append-only document collection persisted as one JSON file.
// Every mutation rewrites the whole file through a temp file + rename, so the
// file on disk always holds a complete collection. There is no coordination
// between processes sharing the same path.
type FileStore struct {
	mu    sync.Mutex
	path  string
	docs  []Document
	index map[string]int
}

// Open loads the store at path, creating it when missing.
func Open(path string, opts StoreOptions) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("vector store path is required")
	}
	s := &FileStore{path: path, index: make(map[string]int)}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.flush(nil); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}

	docs, err := decodeStore(raw)
	if err != nil {
		if opts.OnCorrupt == CorruptFail {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStore, path, err)
		}
		log.Printf("vector store %s is unreadable, resetting to empty: %v", path, err)
		if err := s.flush(nil); err != nil {
			return nil, err
		}
		return s, nil
	}

	s.docs = docs
	for i, d := range docs {
		s.index[d.ID] = i
	}
	return s, nil
}

func decodeStore(raw []byte) ([]Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, err
	}
	docsRaw, ok := top["documents"]
	if !ok {
		return nil, errors.New(`missing "documents" key`)
	}
	var docs []Document
	if err := json.Unmarshal(docsRaw, &docs); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if d.ID == "" {
			return nil, errors.New("document without id")
		}
		if _, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("duplicate document id %q", d.ID)
		}
		seen[d.ID] = struct{}{}
	}
	return docs, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// AddDocument appends a document and persists the collection. The in-memory
// state only changes once the new file is committed.
func (s *FileStore) AddDocument(text string, embedding []float64, metadata Metadata) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	for s.hasID(id) {
		id = uuid.NewString()
	}
	doc := Document{
		ID:        id,
		Text:      text,
		Embedding: append([]float64(nil), embedding...),
		Metadata:  metadata.Clone(),
	}

	next := make([]Document, len(s.docs), len(s.docs)+1)
	copy(next, s.docs)
	next = append(next, doc)
	if err := s.flush(next); err != nil {
		return "", err
	}
	s.docs = next
	s.index[id] = len(next) - 1
	return id, nil
}

func (s *FileStore) hasID(id string) bool {
	_, ok := s.index[id]
	return ok
}

// AllDocuments returns a deep copy of the collection in insertion order.
func (s *FileStore) AllDocuments() []Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Document, len(s.docs))
	for i, d := range s.docs {
		out[i] = d.clone()
	}
	return out
}

// Get returns a copy of the document with the given id.
func (s *FileStore) Get(id string) (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return Document{}, false
	}
	return s.docs[i].clone(), true
}

// Len reports the number of stored documents.
func (s *FileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// Clear removes every document.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flush(nil); err != nil {
		return err
	}
	s.docs = nil
	s.index = make(map[string]int)
	return nil
}

// flush writes docs to a temp file next to the target and renames it into
// place. The rename is the only commit point.
func (s *FileStore) flush(docs []Document) error {
	if docs == nil {
		docs = []Document{}
	}
	payload, err := json.MarshalIndent(storeFile{Documents: docs}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(payload)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, syncErr, closeErr); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("commit store file: %w", err)
	}
	return nil
}
