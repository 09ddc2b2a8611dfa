package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nexora/campus-copilot/internal/log"
)

// loadBatchSize bounds how many chunks are embedded and written per round
// trip when loading the knowledge base.
const loadBatchSize = 100

// ChunkStore is the persistence interface the service consumes.
// *Store satisfies it.
type ChunkStore interface {
	AddBatch(ctx context.Context, chunks []Chunk) error
	DeleteSource(ctx context.Context, source string) error
	Search(ctx context.Context, query string, topK int) ([]Result, error)
	Count(ctx context.Context) (int, error)
}

// Service ties chunking, storage, and retrieval together. It owns the
// similarity threshold: callers of Retrieve only ever see results at or
// above it.
type Service struct {
	store     ChunkStore
	chunker   *Chunker
	topK      int
	threshold float64
	logger    log.Logger
}

// NewService creates a retrieval service. topK bounds how many candidates
// the hybrid search returns before threshold filtering.
func NewService(store ChunkStore, chunker *Chunker, topK int, threshold float64, logger log.Logger) *Service {
	return &Service{
		store:     store,
		chunker:   chunker,
		topK:      topK,
		threshold: threshold,
		logger:    logger,
	}
}

// Load ingests every markdown file in dir into the knowledge base.
// A missing directory or one without markdown files is reported as
// loaded=false, not as an error; the assistant still answers from tools.
// Files that fail to read are skipped and logged.
func (s *Service) Load(ctx context.Context, dir string) (bool, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return false, fmt.Errorf("globbing knowledge base dir: %w", err)
	}
	if _, statErr := os.Stat(dir); errors.Is(statErr, fs.ErrNotExist) {
		s.logger.Error("knowledge base directory not found", "dir", dir)
		return false, nil
	}
	if len(entries) == 0 {
		s.logger.Warn("no markdown files found", "dir", dir)
		return false, nil
	}

	s.logger.Info("loading knowledge base", "dir", dir, "files", len(entries))

	var pending []Chunk
	var total, files int
	for _, path := range entries {
		content, err := os.ReadFile(path)
		if err != nil {
			s.logger.Error("failed to read knowledge file, skipping", "file", path, "error", err)
			continue
		}

		// Drop the previous chunks for this file first so a shrunken file
		// does not leave stale trailing chunks behind.
		source := filepath.Base(path)
		if err := s.store.DeleteSource(ctx, source); err != nil {
			return false, fmt.Errorf("clearing stale chunks for %s: %w", source, err)
		}
		for i, text := range s.chunker.Split(string(content)) {
			pending = append(pending, Chunk{Source: source, Index: i, Content: text})
			total++

			if len(pending) >= loadBatchSize {
				if err := s.store.AddBatch(ctx, pending); err != nil {
					return false, fmt.Errorf("storing chunk batch: %w", err)
				}
				pending = pending[:0]
			}
		}
		files++
	}

	if len(pending) > 0 {
		if err := s.store.AddBatch(ctx, pending); err != nil {
			return false, fmt.Errorf("storing chunk batch: %w", err)
		}
	}

	if total == 0 {
		s.logger.Warn("no chunks were produced from knowledge base", "dir", dir)
		return false, nil
	}

	s.logger.Info("knowledge base loaded", "chunks", total, "files", files)
	return true, nil
}

// Retrieve runs hybrid search for the query and drops every result whose
// blended score is below the similarity threshold. An empty result set is
// normal and not an error.
func (s *Service) Retrieve(ctx context.Context, query string) ([]Result, error) {
	results, err := s.store.Search(ctx, query, s.topK)
	if err != nil {
		return nil, fmt.Errorf("searching knowledge base: %w", err)
	}

	filtered := results[:0]
	for _, r := range results {
		if r.Similarity >= s.threshold {
			filtered = append(filtered, r)
		}
	}

	s.logger.Info("knowledge search complete",
		"query", truncate(query, 50),
		"candidates", len(results),
		"relevant", len(filtered))
	return filtered, nil
}

// Count returns the number of stored chunks.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// Loaded reports whether the knowledge base holds any chunks.
func (s *Service) Loaded(ctx context.Context) bool {
	count, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Warn("failed to count knowledge chunks", "error", err)
		return false
	}
	return count > 0
}

// ContextFromResults renders results as a plain context string with source
// attribution, for callers that want retrieval output without the prompt
// framing.
func ContextFromResults(results []Result) string {
	if len(results) == 0 {
		return ""
	}

	parts := make([]string, 0, len(results)*3)
	for _, r := range results {
		parts = append(parts,
			fmt.Sprintf("[Source: %s (Relevance: %.2f)]", r.Source, r.Similarity),
			r.Content,
			"---")
	}
	return strings.Join(parts, "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
