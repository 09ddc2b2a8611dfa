package knowledge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexora/campus-copilot/internal/log"
)

// fakeStore records AddBatch calls and serves canned search results.
type fakeStore struct {
	batches   [][]Chunk
	cleared   []string
	results   []Result
	searchErr error
	addErr    error
	count     int
}

func (f *fakeStore) AddBatch(_ context.Context, chunks []Chunk) error {
	if f.addErr != nil {
		return f.addErr
	}
	batch := make([]Chunk, len(chunks))
	copy(batch, chunks)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeStore) DeleteSource(_ context.Context, source string) error {
	f.cleared = append(f.cleared, source)
	return nil
}

func (f *fakeStore) Search(context.Context, string, int) ([]Result, error) {
	return f.results, f.searchErr
}

func (f *fakeStore) Count(context.Context) (int, error) {
	return f.count, nil
}

func newTestService(store ChunkStore, threshold float64) *Service {
	return NewService(store, NewChunker(8192, log.NewNop()), 3, threshold, log.NewNop())
}

func TestLoad_MissingDirectory(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	svc := newTestService(store, 0.5)

	loaded, err := svc.Load(t.Context(), filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Empty(t, store.batches)
}

func TestLoad_EmptyDirectory(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	svc := newTestService(store, 0.5)

	loaded, err := svc.Load(t.Context(), t.TempDir())
	require.NoError(t, err)
	assert.False(t, loaded)
}

func TestLoad_IngestsMarkdownFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "library.md"), []byte("Library opens at 8am."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shuttle.md"), []byte("Shuttle runs hourly."), 0o600))
	// Non-markdown files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	store := &fakeStore{}
	svc := newTestService(store, 0.5)

	loaded, err := svc.Load(t.Context(), dir)
	require.NoError(t, err)
	assert.True(t, loaded)

	var all []Chunk
	for _, b := range store.batches {
		all = append(all, b...)
	}
	require.Len(t, all, 2)
	sources := []string{all[0].Source, all[1].Source}
	assert.ElementsMatch(t, []string{"library.md", "shuttle.md"}, sources)
	assert.Equal(t, 0, all[0].Index)

	// Reloads replace a file's chunks rather than appending to them.
	assert.ElementsMatch(t, []string{"library.md", "shuttle.md"}, store.cleared)
}

func TestLoad_BatchesWrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for i := range 120 {
		name := filepath.Join(dir, fmt.Sprintf("doc_%03d.md", i))
		require.NoError(t, os.WriteFile(name, []byte("Short campus fact."), 0o600))
	}

	store := &fakeStore{}
	svc := newTestService(store, 0.5)

	loaded, err := svc.Load(t.Context(), dir)
	require.NoError(t, err)
	assert.True(t, loaded)

	require.GreaterOrEqual(t, len(store.batches), 2)
	assert.Len(t, store.batches[0], loadBatchSize)
}

func TestLoad_StoreFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("content"), 0o600))

	store := &fakeStore{addErr: errors.New("connection refused")}
	svc := newTestService(store, 0.5)

	_, err := svc.Load(t.Context(), dir)
	assert.Error(t, err)
}

func TestRetrieve_FiltersBelowThreshold(t *testing.T) {
	t.Parallel()

	store := &fakeStore{results: []Result{
		{Chunk: Chunk{Source: "a.md", Content: "strong match"}, Similarity: 0.91},
		{Chunk: Chunk{Source: "b.md", Content: "borderline"}, Similarity: 0.50},
		{Chunk: Chunk{Source: "c.md", Content: "weak"}, Similarity: 0.31},
	}}
	svc := newTestService(store, 0.5)

	got, err := svc.Retrieve(t.Context(), "when does the library open")
	require.NoError(t, err)

	// The threshold is inclusive; everything below it is dropped.
	require.Len(t, got, 2)
	assert.Equal(t, "a.md", got[0].Source)
	assert.Equal(t, "b.md", got[1].Source)
	for _, r := range got {
		assert.GreaterOrEqual(t, r.Similarity, 0.5)
	}
}

func TestRetrieve_EmptyIsNotAnError(t *testing.T) {
	t.Parallel()

	svc := newTestService(&fakeStore{}, 0.5)

	got, err := svc.Retrieve(t.Context(), "anything")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieve_SearchFailure(t *testing.T) {
	t.Parallel()

	store := &fakeStore{searchErr: errors.New("index offline")}
	svc := newTestService(store, 0.5)

	_, err := svc.Retrieve(t.Context(), "anything")
	assert.Error(t, err)
}

func TestLoaded(t *testing.T) {
	t.Parallel()

	assert.False(t, newTestService(&fakeStore{count: 0}, 0.5).Loaded(t.Context()))
	assert.True(t, newTestService(&fakeStore{count: 12}, 0.5).Loaded(t.Context()))
}

func TestContextFromResults(t *testing.T) {
	t.Parallel()

	assert.Empty(t, ContextFromResults(nil))

	out := ContextFromResults([]Result{
		{Chunk: Chunk{Source: "library_hours.md", Content: "Open 8am to 10pm."}, Similarity: 0.87},
	})
	assert.Contains(t, out, "[Source: library_hours.md (Relevance: 0.87)]")
	assert.Contains(t, out, "Open 8am to 10pm.")
	assert.Contains(t, out, "---")
}
