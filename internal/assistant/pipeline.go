// Package assistant assembles the per-turn context and runs one chat turn
// end to end: intercept, retrieve, prompt, persist, index, personalize.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/jarvis/internal/brain"
	"github.com/ent0n29/jarvis/internal/commands"
	"github.com/ent0n29/jarvis/internal/memory"
	"github.com/ent0n29/jarvis/internal/observability"
	"github.com/ent0n29/jarvis/internal/personalization"
	"github.com/ent0n29/jarvis/internal/policy"
	"github.com/ent0n29/jarvis/internal/rag"
)

const (
	DefaultPersona = "You are Jarvis, a highly intelligent personal AI assistant. " +
		"You are helpful, concise, polite, and slightly witty. " +
		"You remember user preferences and personalize responses. " +
		"Always aim to assist efficiently."
	DefaultTopK         = 3
	DefaultHistoryLimit = memory.DefaultRecentLimit

	// ProfileHeader opens the profile-facts system message.
	ProfileHeader = "Known facts about the user:"

	KindChat = "chat"

	logTextLimit = 120
)

var (
	ErrEmptyMessage     = errors.New("message is empty")
	ErrMissingUser      = errors.New("user id is required")
	ErrModelUnavailable = errors.New("model unavailable")
)

// Retriever is the slice of rag.Retriever the pipeline uses.
type Retriever interface {
	AddText(text string, metadata rag.Metadata) (string, error)
	SearchUser(userID, query string, topK int) []rag.Result
}

type Personalizer interface {
	ProcessUserText(ctx context.Context, userID, text string) ([]personalization.Fact, error)
	Profile(ctx context.Context, userID string) (personalization.Profile, error)
}

type Interceptor interface {
	Intercept(ctx context.Context, userID, text string) commands.Decision
}

type Config struct {
	Persona      string
	TopK         int
	HistoryLimit int
}

type Deps struct {
	Retriever    Retriever
	Memory       memory.Store
	Personalizer Personalizer
	Interceptor  Interceptor
	Brain        brain.Adapter
	Metrics      *observability.Metrics
	// DocumentCount, when set, feeds the vector_documents gauge after indexing.
	DocumentCount func() int
}

type Pipeline struct {
	deps Deps
	cfg  Config
}

type Request struct {
	UserID string
	Text   string
	// TurnID is generated when empty.
	TurnID string
}

type Response struct {
	TurnID      string
	Text        string
	Intercepted bool
	Intent      commands.Intent
	Facts       []personalization.Fact
	// Prompt is the message list sent to the model; empty when intercepted.
	Prompt []brain.Message
}

func New(deps Deps, cfg Config) (*Pipeline, error) {
	if deps.Retriever == nil || deps.Memory == nil || deps.Personalizer == nil || deps.Brain == nil {
		return nil, errors.New("assistant pipeline requires retriever, memory, personalizer and brain")
	}
	if strings.TrimSpace(cfg.Persona) == "" {
		cfg.Persona = DefaultPersona
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	return &Pipeline{deps: deps, cfg: cfg}, nil
}

func (p *Pipeline) BrainName() string { return p.deps.Brain.Name() }

// Respond runs one turn. Input errors return before any side effect; a model
// failure returns before anything is persisted.
func (p *Pipeline) Respond(ctx context.Context, req Request) (Response, error) {
	started := time.Now()
	userID := strings.TrimSpace(req.UserID)
	text := strings.TrimSpace(req.Text)
	if userID == "" {
		p.deps.Metrics.ObserveTurn(observability.OutcomeRejected)
		return Response{}, ErrMissingUser
	}
	if text == "" {
		p.deps.Metrics.ObserveTurn(observability.OutcomeRejected)
		return Response{}, ErrEmptyMessage
	}
	resp := Response{TurnID: req.TurnID}
	if resp.TurnID == "" {
		resp.TurnID = uuid.NewString()
	}

	stage := time.Now()
	decision := commands.Decision(commands.Continue{})
	if p.deps.Interceptor != nil {
		decision = p.deps.Interceptor.Intercept(ctx, userID, text)
	}
	p.deps.Metrics.ObserveTurnStage(observability.StageIntercept, time.Since(stage))

	switch d := decision.(type) {
	case commands.Intercepted:
		resp.Text = d.Reply
		resp.Intercepted = true
		resp.Intent = d.Intent
	case commands.Continue:
		prompt, err := p.assemble(ctx, userID, text)
		if err != nil {
			p.deps.Metrics.ObserveTurn(observability.OutcomeError)
			return Response{}, err
		}
		resp.Prompt = prompt

		stage = time.Now()
		reply, err := p.deps.Brain.Complete(ctx, prompt)
		elapsed := time.Since(stage)
		p.deps.Metrics.ObserveTurnStage(observability.StageModel, elapsed)
		p.deps.Metrics.ObserveModelLatency(elapsed)
		if err != nil {
			p.deps.Metrics.ObserveTurn(observability.OutcomeError)
			p.observeProviderError(err)
			log.Printf("assistant model error user=%s brain=%s: %v", userID, p.deps.Brain.Name(), err)
			return Response{}, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
		}
		resp.Text = reply
	}

	stage = time.Now()
	facts, err := p.commit(ctx, userID, text, resp.Text)
	p.deps.Metrics.ObserveTurnStage(observability.StagePersist, time.Since(stage))
	if err != nil {
		p.deps.Metrics.ObserveTurn(observability.OutcomeError)
		return Response{}, err
	}
	resp.Facts = facts

	outcome := observability.OutcomeModel
	if resp.Intercepted {
		outcome = observability.OutcomeIntercepted
	}
	p.deps.Metrics.ObserveTurn(outcome)
	p.deps.Metrics.ObserveTurnStage(observability.StageTurnTotal, time.Since(started))
	log.Printf("assistant turn user=%s outcome=%s facts=%d text=%q", userID, outcome, len(facts), policy.LogSafe(text, logTextLimit))
	return resp, nil
}

// assemble builds the prompt in fixed order: persona, profile, retrieved
// context, history, new user turn.
func (p *Pipeline) assemble(ctx context.Context, userID, text string) ([]brain.Message, error) {
	stage := time.Now()
	profile, err := p.deps.Personalizer.Profile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	p.deps.Metrics.ObserveTurnStage(observability.StageProfile, time.Since(stage))

	stage = time.Now()
	hits := p.deps.Retriever.SearchUser(userID, text, p.cfg.TopK)
	p.deps.Metrics.ObserveTurnStage(observability.StageRetrieve, time.Since(stage))
	p.deps.Metrics.ObserveRetrievalHits(len(hits))
	if len(hits) == 0 {
		p.deps.Metrics.ObserveTurnIndicator("retrieval_empty")
	}

	stage = time.Now()
	history, err := p.deps.Memory.RecentMessages(ctx, userID, p.cfg.HistoryLimit, memory.RoleUser, memory.RoleAssistant)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	p.deps.Metrics.ObserveTurnStage(observability.StageHistory, time.Since(stage))

	prompt := make([]brain.Message, 0, len(history)+4)
	prompt = append(prompt, brain.Message{Role: brain.RoleSystem, Content: p.cfg.Persona})
	if msg, ok := profileMessage(profile); ok {
		prompt = append(prompt, msg)
	}
	if msg, ok := contextMessage(hits); ok {
		prompt = append(prompt, msg)
	}
	for _, m := range history {
		prompt = append(prompt, brain.Message{Role: brain.Role(m.Role), Content: m.Content})
	}
	prompt = append(prompt, brain.Message{Role: brain.RoleUser, Content: text})
	return prompt, nil
}

// commit persists both turns, indexes them for retrieval and updates the
// profile from the user text. Earlier writes stand if a later one fails.
func (p *Pipeline) commit(ctx context.Context, userID, text, reply string) ([]personalization.Fact, error) {
	turns := []struct {
		role    memory.Role
		content string
	}{
		{memory.RoleUser, text},
		{memory.RoleAssistant, reply},
	}
	for _, turn := range turns {
		if _, err := p.deps.Memory.SaveMessage(ctx, memory.Message{UserID: userID, Role: turn.role, Content: turn.content}); err != nil {
			return nil, fmt.Errorf("persist %s turn: %w", turn.role, err)
		}
	}
	for _, turn := range turns {
		if strings.TrimSpace(turn.content) == "" {
			continue
		}
		meta := rag.Metadata{UserID: userID, Role: string(turn.role), Kind: KindChat}
		if _, err := p.deps.Retriever.AddText(turn.content, meta); err != nil {
			return nil, fmt.Errorf("index %s turn: %w", turn.role, err)
		}
	}
	if p.deps.DocumentCount != nil {
		p.deps.Metrics.SetVectorDocuments(p.deps.DocumentCount())
	}
	facts, err := p.deps.Personalizer.ProcessUserText(ctx, userID, text)
	if err != nil {
		return nil, fmt.Errorf("personalize: %w", err)
	}
	return facts, nil
}

func (p *Pipeline) observeProviderError(err error) {
	if p.deps.Metrics == nil {
		return
	}
	code := "unknown"
	var perr *brain.ProviderError
	switch {
	case errors.As(err, &perr) && perr.StatusCode > 0:
		code = fmt.Sprintf("%d", perr.StatusCode)
	case errors.Is(err, context.DeadlineExceeded):
		code = "timeout"
	case errors.Is(err, context.Canceled):
		code = "canceled"
	}
	p.deps.Metrics.ProviderErrors.WithLabelValues(p.deps.Brain.Name(), code).Inc()
}

func profileMessage(profile personalization.Profile) (brain.Message, bool) {
	if len(profile) == 0 {
		return brain.Message{}, false
	}
	var b strings.Builder
	b.WriteString(ProfileHeader)
	for _, k := range profile.Keys() {
		fmt.Fprintf(&b, "\n- %s: %s", k, profile[k])
	}
	return brain.Message{Role: brain.RoleSystem, Content: b.String()}, true
}

func contextMessage(hits []rag.Result) (brain.Message, bool) {
	if len(hits) == 0 {
		return brain.Message{}, false
	}
	var b strings.Builder
	b.WriteString(brain.ContextHeader)
	for _, h := range hits {
		b.WriteString("\n- ")
		b.WriteString(strings.ReplaceAll(strings.TrimSpace(h.Text), "\n", " "))
	}
	return brain.Message{Role: brain.RoleSystem, Content: b.String()}, true
}
