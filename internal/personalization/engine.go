// Package personalization extracts durable user facts from chat text and
// rebuilds a profile from them on demand.
package personalization

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/coregx/ahocorasick"

	"github.com/ent0n29/jarvis/internal/memory"
)

// Trigger maps a lower-case phrase to the profile key it fills.
type Trigger struct {
	Phrase string `yaml:"phrase" json:"phrase"`
	Key    string `yaml:"key" json:"key"`
}

// Fact is one extracted key/value pair.
type Fact struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (f Fact) encode() string { return f.Key + ":" + f.Value }

// Profile is the last-write-wins view of a user's facts.
type Profile map[string]string

// Keys returns profile keys sorted.
func (p Profile) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FactStore is the part of memory.Store the engine writes facts through.
type FactStore interface {
	SaveMessage(ctx context.Context, msg memory.Message) (memory.Message, error)
	Messages(ctx context.Context, userID string, role memory.Role) ([]memory.Message, error)
}

func DefaultTriggers() []Trigger {
	return []Trigger{
		{Phrase: "my name is", Key: "name"},
		{Phrase: "i live in", Key: "location"},
		{Phrase: "i work at", Key: "employer"},
		{Phrase: "i work as", Key: "occupation"},
		{Phrase: "my favorite color is", Key: "favorite_color"},
		{Phrase: "my birthday is", Key: "birthday"},
		{Phrase: "i am allergic to", Key: "allergy"},
	}
}

// Engine scans user text for trigger phrases.
type Engine struct {
	store    FactStore
	triggers []Trigger
	ac       *ahocorasick.Automaton
}

// NewEngine builds the trigger automaton. A nil or empty triggers list uses
// DefaultTriggers.
func NewEngine(store FactStore, triggers []Trigger) (*Engine, error) {
	if store == nil {
		return nil, errors.New("personalization: fact store is required")
	}
	if len(triggers) == 0 {
		triggers = DefaultTriggers()
	}
	clean := make([]Trigger, 0, len(triggers))
	patterns := make([]string, 0, len(triggers))
	for _, tr := range triggers {
		phrase := asciiLower(strings.TrimSpace(tr.Phrase))
		key := strings.TrimSpace(tr.Key)
		if phrase == "" || key == "" {
			return nil, fmt.Errorf("personalization: invalid trigger %q -> %q", tr.Phrase, tr.Key)
		}
		if strings.Contains(key, ":") {
			return nil, fmt.Errorf("personalization: trigger key %q must not contain ':'", key)
		}
		clean = append(clean, Trigger{Phrase: phrase, Key: key})
		patterns = append(patterns, phrase)
	}

	ac, err := ahocorasick.NewBuilder().
		AddStrings(patterns).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build trigger automaton: %w", err)
	}
	return &Engine{store: store, triggers: clean, ac: ac}, nil
}

// Triggers returns a copy of the configured trigger list.
func (e *Engine) Triggers() []Trigger {
	return append([]Trigger(nil), e.triggers...)
}

// Extract returns the facts text would produce, without persisting them.
// For each trigger the value is whatever follows its last occurrence. Facts
// are ordered by where their trigger ends in text.
func (e *Engine) Extract(text string) []Fact {
	lower := asciiLower(text)
	lastEnd := make(map[int]int)
	for _, m := range e.ac.FindAllOverlapping([]byte(lower)) {
		if m.End > lastEnd[m.PatternID] {
			lastEnd[m.PatternID] = m.End
		}
	}
	if len(lastEnd) == 0 {
		return nil
	}

	ids := make([]int, 0, len(lastEnd))
	for id := range lastEnd {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if lastEnd[ids[i]] != lastEnd[ids[j]] {
			return lastEnd[ids[i]] < lastEnd[ids[j]]
		}
		return ids[i] < ids[j]
	})

	facts := make([]Fact, 0, len(ids))
	for _, id := range ids {
		value := cleanValue(text[lastEnd[id]:])
		if value == "" {
			continue
		}
		facts = append(facts, Fact{Key: e.triggers[id].Key, Value: value})
	}
	return facts
}

// ProcessUserText extracts facts from text and stores each one as a system
// message for userID.
func (e *Engine) ProcessUserText(ctx context.Context, userID, text string) ([]Fact, error) {
	facts := e.Extract(text)
	for _, f := range facts {
		if _, err := e.store.SaveMessage(ctx, memory.Message{
			UserID:  userID,
			Role:    memory.RoleSystem,
			Content: f.encode(),
		}); err != nil {
			return nil, fmt.Errorf("save fact %s: %w", f.Key, err)
		}
	}
	return facts, nil
}

// Profile replays every fact for userID in insertion order.
func (e *Engine) Profile(ctx context.Context, userID string) (Profile, error) {
	rows, err := e.store.Messages(ctx, userID, memory.RoleSystem)
	if err != nil {
		return nil, fmt.Errorf("load facts: %w", err)
	}
	return Fold(rows), nil
}

// Fold applies fact messages in order; later keys overwrite earlier ones.
// Rows that are not facts are skipped.
func Fold(rows []memory.Message) Profile {
	p := make(Profile)
	for _, m := range rows {
		if m.Role != memory.RoleSystem {
			continue
		}
		key, value, ok := strings.Cut(m.Content, ":")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			continue
		}
		p[key] = value
	}
	return p
}

func cleanValue(s string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), ".,!?;:"))
}

// asciiLower lower-cases ASCII letters only, so byte offsets in the result
// line up with the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
