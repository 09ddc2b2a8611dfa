package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/nexora/campus-copilot/internal/app"
	"github.com/nexora/campus-copilot/internal/config"
	"github.com/nexora/campus-copilot/internal/log"
	"github.com/spf13/cobra"
)

func newKnowledgeCmd(logger log.Logger) *cobra.Command {
	knowledgeCmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Manage the knowledge base",
	}

	knowledgeCmd.AddCommand(newKnowledgeLoadCmd(logger))
	knowledgeCmd.AddCommand(newKnowledgeStatsCmd(logger))

	return knowledgeCmd
}

func newKnowledgeLoadCmd(logger log.Logger) *cobra.Command {
	var dir string

	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Ingest markdown files into the knowledge base",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKnowledgeLoad(logger, dir)
		},
	}
	loadCmd.Flags().StringVar(&dir, "dir", "", "knowledge base directory (default: configured knowledge_dir)")

	return loadCmd
}

func newKnowledgeStatsCmd(logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKnowledgeStats(logger)
		},
	}
}

func runKnowledgeLoad(logger log.Logger, dir string) error {
	ctx, a, cleanup, err := setupApp(logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if dir == "" {
		dir = a.Config.KnowledgeDir
	}

	loaded, err := a.Knowledge.Load(ctx, dir)
	if err != nil {
		return fmt.Errorf("loading knowledge base: %w", err)
	}
	if !loaded {
		fmt.Printf("No markdown files ingested from %s\n", dir)
		return nil
	}

	count, err := a.Knowledge.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting chunks: %w", err)
	}
	fmt.Printf("Knowledge base loaded from %s (%d chunks stored)\n", dir, count)
	return nil
}

func runKnowledgeStats(logger log.Logger) error {
	ctx, a, cleanup, err := setupApp(logger)
	if err != nil {
		return err
	}
	defer cleanup()

	count, err := a.Knowledge.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting chunks: %w", err)
	}

	fmt.Printf("Chunks stored:  %d\n", count)
	fmt.Printf("Embedder model: %s\n", a.Config.EmbedderModel)
	fmt.Printf("Chunk size:     %d tokens\n", a.Config.ChunkSize)
	fmt.Printf("Retrieval topK: %d (threshold %.2f, vector weight %.2f)\n",
		a.Config.RetrievalTopK, a.Config.SimilarityThreshold, a.Config.VectorWeight)
	return nil
}

// setupApp loads configuration and assembles the application for one-shot
// commands. The returned context is canceled on SIGINT/SIGTERM; the cleanup
// function releases the app and the signal watcher.
func setupApp(logger log.Logger) (context.Context, *app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("initializing application: %w", err)
	}

	cleanup := func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
		cancel()
	}
	return ctx, a, cleanup, nil
}
