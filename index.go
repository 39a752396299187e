package passage

import "context"

// Index abstracts the vector/lexical store chunks are searched in. One Index
// value is scoped to a single logical collection. The retriever treats it as
// the single source of truth and holds no cache of its contents.
//
// Implementations own the keyword scoring scheme behind QueryKeyword; the
// retriever only requires scores to be >= 0 with higher meaning a stronger
// lexical match.
type Index interface {
	// Upsert stores or replaces a chunk together with its embedding.
	Upsert(ctx context.Context, chunk Chunk, embedding []float32) error
	// QueryVector returns up to topN chunk references ranked by similarity
	// to the given embedding, highest first.
	QueryVector(ctx context.Context, embedding []float32, topN int) ([]VectorHit, error)
	// QueryKeyword returns up to topN chunk references ranked by lexical
	// match against the given terms, highest first.
	QueryKeyword(ctx context.Context, terms []string, topN int) ([]KeywordHit, error)
	// GetChunks resolves chunk IDs to full chunk records. Unknown IDs are
	// skipped, not errors.
	GetChunks(ctx context.Context, ids []string) ([]Chunk, error)
	// Count returns the number of chunks held by the collection.
	Count(ctx context.Context) (int, error)
}
