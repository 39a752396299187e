package passage

import "context"

// EmbeddingProvider abstracts text embedding.
type EmbeddingProvider interface {
	// Embed returns embedding vectors for the given texts, same order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the embedding vector size.
	Dimensions() int
	// Name returns the provider name.
	Name() string
}

// Summarizer produces a short document-level summary. Optional capability
// used by the contextual chunking strategy; when absent or failing, the
// strategy falls back to a first-paragraph heuristic.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}
