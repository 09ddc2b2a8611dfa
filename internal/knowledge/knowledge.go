// Package knowledge implements the campus knowledge base: markdown
// documents are chunked, embedded, and stored in PostgreSQL with pgvector,
// then retrieved with a hybrid vector + keyword search.
package knowledge

// Chunk is one stored slice of a source document.
type Chunk struct {
	Source  string // source file name, e.g. "library_hours.md"
	Index   int    // position within the source document
	Content string
}

// Result is a chunk returned from search with its blended relevance score.
type Result struct {
	Chunk
	Similarity float64
}
