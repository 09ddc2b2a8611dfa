// Package app wires the campus copilot together: configuration,
// database, Genkit, stores, the agent, and the HTTP server. Everything
// is constructed explicitly here and passed down; no package-level
// singletons.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexora/campus-copilot/api"
	"github.com/nexora/campus-copilot/db"
	"github.com/nexora/campus-copilot/internal/clock"
	"github.com/nexora/campus-copilot/internal/config"
	"github.com/nexora/campus-copilot/internal/conversation"
	"github.com/nexora/campus-copilot/internal/database"
	"github.com/nexora/campus-copilot/internal/knowledge"
	"github.com/nexora/campus-copilot/internal/log"
	"github.com/nexora/campus-copilot/internal/moderation"
	"github.com/nexora/campus-copilot/internal/orchestrator"
	"github.com/nexora/campus-copilot/internal/service"
	"github.com/nexora/campus-copilot/internal/tools"
)

// App holds the assembled application.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit        *genkit.Genkit
	Embedder      ai.Embedder
	DBPool        *pgxpool.Pool
	Knowledge     *knowledge.Service
	Conversations *conversation.Store
	Copilot       *service.Copilot
	Server        *api.Server
}

// Setup creates and initializes the application. On error everything
// already initialized is released; otherwise call Close.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	a.Embedder = googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if a.Embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	chunker := knowledge.NewChunker(cfg.ChunkSize, logger.With("component", "chunker"))
	store := knowledge.NewStore(pool, a.Embedder, cfg.VectorWeight, logger.With("component", "knowledge-store"))
	a.Knowledge = knowledge.NewService(store, chunker,
		cfg.RetrievalTopK, cfg.SimilarityThreshold, logger.With("component", "knowledge"))

	a.Conversations = conversation.New(pool, pool, logger.With("component", "conversations"))

	registered, err := tools.RegisterAll(g, logger.With("component", "tools"))
	if err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	agent, err := orchestrator.New(orchestrator.Config{
		Genkit:      g,
		Retriever:   a.Knowledge,
		Clock:       clock.New(cfg.Timezone),
		Logger:      logger.With("component", "orchestrator"),
		Tools:       registered,
		ModelName:   cfg.FullModelName(),
		Temperature: float64(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
		MaxTurns:    cfg.MaxTurns,
	})
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}

	gate, err := moderation.New(cfg.OpenAIAPIKey, cfg.ModerationModel, logger.With("component", "moderation"))
	if err != nil {
		return nil, fmt.Errorf("creating moderation gate: %w", err)
	}

	a.Copilot, err = service.New(service.Config{
		Agent:         agent,
		Gate:          gate,
		Conversations: a.Conversations,
		Deps: &tools.Deps{
			Client:  &http.Client{Timeout: time.Duration(cfg.CampusTimeoutMS) * time.Millisecond},
			BaseURL: cfg.CampusBaseURL,
		},
		Logger:       logger.With("component", "service"),
		HistoryLimit: config.NormalizeHistoryLimit(cfg.HistoryLimit),
	})
	if err != nil {
		return nil, fmt.Errorf("creating service facade: %w", err)
	}

	a.Server = api.NewServer(a.Copilot, a.Conversations, gate, pool, cfg.APIKey, logger.With("component", "api"))

	return a, nil
}

// Close releases all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database pool closed")
	}
	return nil
}

// provideDBPool runs migrations and opens the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL(), logger.With("component", "migrate")); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}

// provideGenkit initializes Genkit with the Google AI plugin. The
// plugin reads GEMINI_API_KEY from the environment.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, fmt.Errorf("initializing genkit")
	}
	return g, nil
}
