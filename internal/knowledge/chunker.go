package knowledge

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/nexora/campus-copilot/internal/log"
)

// chunkEncoding is the tokenizer used for chunk boundaries. Token-based
// splitting keeps every chunk within the embedder's input window regardless
// of the script or language of the source text.
const chunkEncoding = "cl100k_base"

// Chunker splits document text into token-bounded chunks.
type Chunker struct {
	size   int
	enc    *tiktoken.Tiktoken
	logger log.Logger
}

// NewChunker creates a Chunker producing chunks of at most size tokens.
// If the tokenizer cannot be initialized the chunker still works: Split
// degrades to returning the whole text as a single chunk.
func NewChunker(size int, logger log.Logger) *Chunker {
	enc, err := tiktoken.GetEncoding(chunkEncoding)
	if err != nil {
		logger.Error("failed to load tokenizer, chunking disabled", "encoding", chunkEncoding, "error", err)
		enc = nil
	}

	return &Chunker{size: size, enc: enc, logger: logger}
}

// Split divides text into chunks of at most the configured token count.
// Splitting is deterministic: the same text always yields the same chunks,
// and decoding the concatenated chunks reproduces the original text.
//
// Empty text yields no chunks. If the tokenizer is unavailable, the whole
// text is returned as a single chunk rather than dropping the document.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}

	if c.enc == nil {
		return []string{text}
	}

	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) <= c.size {
		return []string{text}
	}

	chunks := make([]string, 0, (len(tokens)+c.size-1)/c.size)
	for start := 0; start < len(tokens); start += c.size {
		end := min(start+c.size, len(tokens))
		chunks = append(chunks, c.enc.Decode(tokens[start:end]))
	}

	return chunks
}
