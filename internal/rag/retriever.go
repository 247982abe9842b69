package rag

import (
	"sort"
)

// DefaultTopK is used when a search asks for zero or fewer results.
const DefaultTopK = 5

// DocumentStore is the subset of FileStore the retriever needs.
type DocumentStore interface {
	AddDocument(text string, embedding []float64, metadata Metadata) (string, error)
	AllDocuments() []Document
}

// Retriever embeds text into a store and ranks stored documents against a
// query.
type Retriever struct {
	store    DocumentStore
	embedder Embedder
}

func NewRetriever(store DocumentStore, embedder Embedder) *Retriever {
	return &Retriever{store: store, embedder: embedder}
}

// AddText embeds text and stores it.
func (r *Retriever) AddText(text string, metadata Metadata) (string, error) {
	return r.store.AddDocument(text, r.embedder.Embed(text), metadata)
}

// Search returns at most topK documents with a positive cosine score, best
// first. Equal scores keep store insertion order.
//
// If filters carries user_id, documents without that exact user id are
// dropped before any other check, including untagged legacy documents.
func (r *Retriever) Search(query string, topK int, filters Filters) []Result {
	if topK <= 0 {
		topK = DefaultTopK
	}
	q := r.embedder.Embed(query)
	docs := r.store.AllDocuments()

	wantUser, scoped := filters[KeyUserID]
	keys := filters.Keys()

	results := make([]Result, 0, len(docs))
	for _, doc := range docs {
		if scoped && !ownedBy(doc.Metadata, wantUser) {
			continue
		}
		if !matches(doc.Metadata, filters, keys) {
			continue
		}
		score := CosineSimilarity(q, doc.Embedding)
		if !(score > 0) {
			continue
		}
		results = append(results, Result{
			ID:       doc.ID,
			Text:     doc.Text,
			Metadata: doc.Metadata,
			Score:    score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// SearchUser is Search scoped to one user.
func (r *Retriever) SearchUser(userID, query string, topK int) []Result {
	return r.Search(query, topK, UserFilter(userID))
}

func ownedBy(m Metadata, userID string) bool {
	return m.UserID != "" && m.UserID == userID
}

func matches(m Metadata, filters Filters, keys []string) bool {
	for _, k := range keys {
		got, ok := m.Lookup(k)
		if !ok || got != filters[k] {
			return false
		}
	}
	return true
}
