package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ent0n29/jarvis/internal/assistant"
	"github.com/ent0n29/jarvis/internal/brain"
	"github.com/ent0n29/jarvis/internal/commands"
	"github.com/ent0n29/jarvis/internal/config"
	"github.com/ent0n29/jarvis/internal/httpapi"
	"github.com/ent0n29/jarvis/internal/memory"
	"github.com/ent0n29/jarvis/internal/observability"
	"github.com/ent0n29/jarvis/internal/personalization"
	"github.com/ent0n29/jarvis/internal/rag"
	"github.com/ent0n29/jarvis/internal/reliability"
	"github.com/ent0n29/jarvis/internal/session"
	"github.com/ent0n29/jarvis/internal/workspace"
)

const (
	storeConnectAttempts = 5
	storeConnectBase     = 250 * time.Millisecond
	storeConnectCap      = 4 * time.Second
)

type BuildResult struct {
	Config    config.Config
	API       *httpapi.Server
	Sessions  *session.Manager
	Pipeline  *assistant.Pipeline
	Metrics   *observability.Metrics
	Store     *rag.FileStore
	Memory    memory.Store
	Brain     brain.Adapter
	Workspace workspace.Workspace

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	var memoryStore memory.Store
	err := reliability.Retry(ctx, storeConnectAttempts, storeConnectBase, storeConnectCap, func(ctx context.Context) error {
		s, err := memory.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("memory store connect failed: %v", err)
			return err
		}
		memoryStore = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("memory store init failed: %w", err)
	}

	policy := rag.CorruptReset
	if cfg.RAGStrictLoad {
		policy = rag.CorruptFail
	}
	store, err := rag.Open(cfg.RAGStorePath, rag.StoreOptions{OnCorrupt: policy})
	if err != nil {
		_ = memoryStore.Close()
		return nil, fmt.Errorf("vector store init failed: %w", err)
	}
	embedder, err := rag.NewHashEmbedder(cfg.RAGEmbeddingDim, cfg.RAGEmbedCacheSize)
	if err != nil {
		_ = memoryStore.Close()
		return nil, fmt.Errorf("embedder init failed: %w", err)
	}
	retriever := rag.NewRetriever(store, embedder)
	metrics.SetVectorDocuments(store.Len())

	triggers := personalization.DefaultTriggers()
	if cfg.PersonalizationTriggersFile != "" {
		triggers, err = personalization.LoadTriggers(cfg.PersonalizationTriggersFile)
		if err != nil {
			embedder.Close()
			_ = memoryStore.Close()
			return nil, err
		}
	}
	engine, err := personalization.NewEngine(memoryStore, triggers)
	if err != nil {
		embedder.Close()
		_ = memoryStore.Close()
		return nil, fmt.Errorf("personalization init failed: %w", err)
	}

	adapter, err := brain.NewAdapter(ctx, brain.Config{
		Provider:     cfg.BrainProvider,
		Model:        cfg.BrainModel,
		Timeout:      cfg.BrainTimeout,
		HTTPURL:      cfg.BrainHTTPURL,
		FallbackMock: cfg.BrainFallbackMock,
		OllamaHost:   cfg.OllamaHost,
		OpenAIKey:    cfg.OpenAIAPIKey,
		AnthropicKey: cfg.AnthropicAPIKey,
		GeminiKey:    cfg.GeminiAPIKey,
	})
	if err != nil {
		embedder.Close()
		_ = memoryStore.Close()
		return nil, fmt.Errorf("brain adapter init failed: %w", err)
	}

	ws, err := workspace.New(cfg.WorkspaceProvider, cfg.GoogleCredentialsFile, cfg.GoogleTokenDir)
	if err != nil {
		embedder.Close()
		_ = memoryStore.Close()
		return nil, fmt.Errorf("workspace init failed: %w", err)
	}

	pipeline, err := assistant.New(assistant.Deps{
		Retriever:     retriever,
		Memory:        memoryStore,
		Personalizer:  engine,
		Interceptor:   commands.New(ws),
		Brain:         adapter,
		Metrics:       metrics,
		DocumentCount: store.Len,
	}, assistant.Config{
		Persona:      cfg.Persona,
		TopK:         cfg.RetrievalTopK,
		HistoryLimit: cfg.HistoryLimit,
	})
	if err != nil {
		embedder.Close()
		_ = memoryStore.Close()
		return nil, err
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	api := httpapi.New(cfg, httpapi.Deps{
		Sessions:  sessions,
		Assistant: pipeline,
		Retriever: retriever,
		Store:     store,
		Memory:    memoryStore,
		Profiles:  engine,
		Workspace: ws,
		Metrics:   metrics,
	})

	log.Printf("brain=%s memory=%s vector_store=%s (%d docs) workspace=%s",
		adapter.Name(), memoryStore.Backend(), store.Path(), store.Len(), cfg.WorkspaceProvider)

	cleanup := func() error {
		var errs []string
		embedder.Close()
		if err := memoryStore.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:    cfg,
		API:       api,
		Sessions:  sessions,
		Pipeline:  pipeline,
		Metrics:   metrics,
		Store:     store,
		Memory:    memoryStore,
		Brain:     adapter,
		Workspace: ws,
		Cleanup:   cleanup,
	}, nil
}
