package rag

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/dgraph-io/ristretto"
)

// DefaultDimension is the embedding size used when none is configured.
const DefaultDimension = 256

// Embedder converts text into a fixed-length vector.
type Embedder interface {
	Embed(text string) []float64
	Dimension() int
}

// HashEmbedder is a local, deterministic embedder based on hashed token
// frequencies. It needs no model files and no network.
type HashEmbedder struct {
	dim   int
	cache *ristretto.Cache
}

// NewHashEmbedder returns an embedder producing vectors of dimension dim.
// cacheSize > 0 keeps up to that many computed vectors in memory.
func NewHashEmbedder(dim, cacheSize int) (*HashEmbedder, error) {
	if dim <= 0 {
		dim = DefaultDimension
	}
	e := &HashEmbedder{dim: dim}
	if cacheSize > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: int64(cacheSize) * 10,
			MaxCost:     int64(cacheSize),
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("create embedding cache: %w", err)
		}
		e.cache = cache
	}
	return e, nil
}

func (e *HashEmbedder) Dimension() int { return e.dim }

// Embed never fails. Token-less input yields the zero vector.
func (e *HashEmbedder) Embed(text string) []float64 {
	if e.cache != nil {
		if v, ok := e.cache.Get(text); ok {
			if vec, ok := v.([]float64); ok {
				return append([]float64(nil), vec...)
			}
		}
	}

	vec := make([]float64, e.dim)
	tokens := Tokenize(text)
	for _, tok := range tokens {
		sum := sha256.Sum256([]byte(tok))
		bucket := binary.BigEndian.Uint32(sum[:4]) % uint32(e.dim)
		vec[bucket]++
	}
	normalize(vec)

	if e.cache != nil {
		e.cache.Set(text, append([]float64(nil), vec...), 1)
	}
	return vec
}

// Close releases the embedding cache.
func (e *HashEmbedder) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// Tokenize lower-cases text and splits it into runs of [a-z0-9_].
func Tokenize(text string) []string {
	lower := strings.ToLower(text)
	var (
		tokens []string
		start  = -1
	)
	for i := 0; i < len(lower); i++ {
		if isTokenByte(lower[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, lower[start:i])
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, lower[start:])
	}
	return tokens
}

func isTokenByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_'
}

func normalize(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}

// CosineSimilarity returns 0 for mismatched dimensions or zero vectors.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(score) {
		return 0
	}
	// Rounding can push identical unit vectors a hair past 1.
	return math.Max(-1, math.Min(1, score))
}
