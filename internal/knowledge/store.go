package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"

	"github.com/nexora/campus-copilot/internal/log"
)

// VectorDimension is the embedding width of the vector(768) column.
// gemini-embedding-001 emits 3072 floats by default; OutputDimensionality
// truncates to 768 (Matryoshka Representation Learning), so every embed
// request must carry it or inserts and queries fail on dimension mismatch.
const VectorDimension int32 = 768

// searchTimeout bounds vector search queries so a slow index scan cannot
// stall a chat request.
const searchTimeout = 10 * time.Second

// Querier is the database interface the store consumes. *pgxpool.Pool
// satisfies it. Defined on the consumer side, like io.Reader, so tests can
// substitute a fake.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists knowledge chunks and performs hybrid search over them.
// Embeddings are generated through the configured embedder on write and on
// every query.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db           Querier
	embedder     ai.Embedder
	vectorWeight float64
	logger       log.Logger
}

// NewStore creates a Store. vectorWeight is the hybrid blend weight w in
// [0,1]: combined = w*vector + (1-w)*keyword. A weight of 1 degenerates to
// pure vector search, 0 to pure keyword search.
func NewStore(db Querier, embedder ai.Embedder, vectorWeight float64, logger log.Logger) *Store {
	return &Store{
		db:           db,
		embedder:     embedder,
		vectorWeight: vectorWeight,
		logger:       logger,
	}
}

// AddBatch embeds and upserts a batch of chunks. All chunk contents are sent
// to the embedder in one request; each chunk is then upserted keyed on
// (source, chunk_index) so reloading a file replaces its previous chunks.
func (s *Store) AddBatch(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]*ai.Document, len(chunks))
	for i, ch := range chunks {
		docs[i] = &ai.Document{Content: []*ai.Part{ai.NewTextPart(ch.Content)}}
	}

	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   docs,
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(resp.Embeddings) != len(chunks) {
		return fmt.Errorf("embedder returned %d embeddings for %d chunks", len(resp.Embeddings), len(chunks))
	}

	const upsert = `
		INSERT INTO knowledge_chunks (source, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source, chunk_index)
		DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`

	for i, ch := range chunks {
		if len(resp.Embeddings[i].Embedding) == 0 {
			return fmt.Errorf("empty embedding returned for chunk %s#%d", ch.Source, ch.Index)
		}
		vec := pgvector.NewVector(resp.Embeddings[i].Embedding)
		if _, err := s.db.Exec(ctx, upsert, ch.Source, ch.Index, ch.Content, vec); err != nil {
			return fmt.Errorf("failed to upsert chunk %s#%d: %w", ch.Source, ch.Index, err)
		}
	}

	s.logger.Debug("stored chunk batch", "chunks", len(chunks))
	return nil
}

// Search performs hybrid retrieval: cosine similarity over embeddings blended
// with a full-text rank, combined = w*vector + (1-w)*keyword, ordered by the
// combined score. Results are not threshold-filtered here; the retrieval
// service applies the similarity cutoff.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	dim := VectorDimension
	resp, err := s.embedder.Embed(queryCtx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(query)}},
		},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding generation timeout: %w", err)
		}
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned for query")
	}

	queryVec := pgvector.NewVector(resp.Embeddings[0].Embedding)

	// ts_rank_cd is unbounded above; LEAST clamps it so the keyword term
	// stays on the same [0,1] scale as cosine similarity.
	const search = `
		SELECT source, chunk_index, content,
		       ($3 * (1 - (embedding <=> $1))
		        + (1 - $3) * LEAST(ts_rank_cd(content_tsv, plainto_tsquery('english', $2)), 1.0)
		       ) AS similarity
		FROM knowledge_chunks
		ORDER BY similarity DESC
		LIMIT $4`

	rows, err := s.db.Query(queryCtx, search, queryVec, query, s.vectorWeight, topK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Source, &r.Index, &r.Content, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}

	return results, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM knowledge_chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return count, nil
}

// DeleteSource removes all chunks belonging to one source document.
func (s *Store) DeleteSource(ctx context.Context, source string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM knowledge_chunks WHERE source = $1`, source); err != nil {
		return fmt.Errorf("failed to delete chunks for %q: %w", source, err)
	}
	s.logger.Debug("deleted source chunks", "source", source)
	return nil
}
