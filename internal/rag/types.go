package rag

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Metadata keys with a dedicated field on Metadata.
const (
	KeyUserID = "user_id"
	KeyRole   = "role"
	KeyKind   = "kind"
)

// Metadata describes a stored document. UserID, Role and Kind are typed so the
// retriever can enforce user isolation without a map lookup; anything else
// lives in Extra.
type Metadata struct {
	UserID string
	Role   string
	Kind   string
	Extra  map[string]string
}

// Lookup returns the value stored under key and whether it is present.
func (m Metadata) Lookup(key string) (string, bool) {
	switch key {
	case KeyUserID:
		return m.UserID, m.UserID != ""
	case KeyRole:
		return m.Role, m.Role != ""
	case KeyKind:
		return m.Kind, m.Kind != ""
	}
	v, ok := m.Extra[key]
	return v, ok
}

// Clone returns a deep copy. An empty Extra map becomes nil.
func (m Metadata) Clone() Metadata {
	c := m
	c.Extra = nil
	if len(m.Extra) > 0 {
		c.Extra = make(map[string]string, len(m.Extra))
		for k, v := range m.Extra {
			if isReservedKey(k) {
				continue
			}
			c.Extra[k] = v
		}
		if len(c.Extra) == 0 {
			c.Extra = nil
		}
	}
	return c
}

func isReservedKey(k string) bool {
	return k == KeyUserID || k == KeyRole || k == KeyKind
}

// MetadataFromMap builds Metadata from an open key-value bag.
func MetadataFromMap(in map[string]any) Metadata {
	var m Metadata
	for k, v := range in {
		s, ok := v.(string)
		if !ok {
			if v == nil {
				continue
			}
			raw, err := json.Marshal(v)
			if err != nil {
				continue
			}
			s = string(raw)
		}
		switch k {
		case KeyUserID:
			m.UserID = s
		case KeyRole:
			m.Role = s
		case KeyKind:
			m.Kind = s
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]string)
			}
			m.Extra[k] = s
		}
	}
	return m
}

// Map flattens Metadata back into a key-value bag.
func (m Metadata) Map() map[string]string {
	out := make(map[string]string, len(m.Extra)+3)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.UserID != "" {
		out[KeyUserID] = m.UserID
	}
	if m.Role != "" {
		out[KeyRole] = m.Role
	}
	if m.Kind != "" {
		out[KeyKind] = m.Kind
	}
	return out
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Map())
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	*m = MetadataFromMap(raw)
	return nil
}

// Document is one stored unit of retrievable text.
type Document struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float64 `json:"embedding"`
	Metadata  Metadata  `json:"metadata"`
}

func (d Document) clone() Document {
	c := d
	c.Embedding = append([]float64(nil), d.Embedding...)
	c.Metadata = d.Metadata.Clone()
	return c
}

// Filters is an exact-match predicate over document metadata.
type Filters map[string]string

// UserFilter scopes a search to a single user.
func UserFilter(userID string) Filters {
	return Filters{KeyUserID: userID}
}

// Keys returns filter keys in a stable order.
func (f Filters) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Result is a ranked search hit.
type Result struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Score    float64  `json:"score"`
}
