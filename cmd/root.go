// Package cmd provides the CLI commands for the campus copilot.
//
// Commands:
//   - serve: HTTP API server hosting the chat endpoint
//   - knowledge: knowledge base ingestion and inspection
//   - version: build information
//
// All long-running commands honor SIGINT/SIGTERM via context
// cancellation and shut down gracefully.
package cmd

import (
	"log/slog"
	"os"

	"github.com/nexora/campus-copilot/internal/log"
	"github.com/spf13/cobra"
)

func newRootCmd(logger log.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "campus-copilot",
		Short:         "Nexora Campus Copilot - campus assistant chat backend",
		Long:          "Campus assistant backend: a Gemini-powered chat service with\ncampus tool calling, a pgvector knowledge base, and conversation persistence.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newServeCmd(logger))
	rootCmd.AddCommand(newKnowledgeCmd(logger))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute is the entry point called from main.
func Execute() error {
	logger := newLogger()
	return newRootCmd(logger).Execute()
}

// newLogger builds the process logger. DEBUG enables debug-level output,
// LOG_JSON switches to JSON format for log aggregation.
func newLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	if os.Getenv("LOG_JSON") != "" {
		cfg.JSON = true
	}
	return log.New(cfg)
}
