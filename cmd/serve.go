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

func newServeCmd(logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(logger)
		},
	}
}

func runServe(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting campus copilot", "version", Version, "model", cfg.ModelName)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	// Ingest the knowledge base on startup so retrieval is available from
	// the first request. A missing directory degrades to tool-only answers.
	if loaded, loadErr := a.Knowledge.Load(ctx, cfg.KnowledgeDir); loadErr != nil {
		logger.Warn("knowledge base load failed, continuing without retrieval", "error", loadErr)
	} else if !loaded {
		logger.Warn("knowledge base empty, continuing without retrieval", "dir", cfg.KnowledgeDir)
	}

	return a.Server.Run(ctx, cfg.ServerAddr())
}
