package passage

// --- Domain types ---

// Document is an immutable source text with metadata. Ownership stays with
// the ingestion stage; the chunking engine only reads it.
type Document struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Source    string            `json:"source"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt int64             `json:"created_at"`
}

// Chunk is a contiguous span of a document treated as one retrievable unit.
// Content may carry injected context (see ChunkMeta.RawText for the original
// span). Start/End are byte offsets into the source document's Content.
// Chunks are immutable after creation; re-chunking a document produces a new
// generation of chunk IDs, superseding the old ones.
type Chunk struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"document_id"`
	Content    string     `json:"content"`
	ChunkIndex int        `json:"chunk_index"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
	Meta       *ChunkMeta `json:"metadata,omitempty"`
	Embedding  []float32  `json:"-"`
}

// ChunkMeta holds chunk provenance: the strategy that was requested, the one
// that actually ran (they differ when a fallback occurred), and any
// strategy-specific fields.
type ChunkMeta struct {
	Strategy       string            `json:"strategy"`
	StrategyUsed   string            `json:"strategy_used"`
	FallbackReason string            `json:"fallback_reason,omitempty"`
	RawText        string            `json:"raw_text,omitempty"`
	Summary        string            `json:"summary,omitempty"`
	SummarySource  string            `json:"summary_source,omitempty"`
	Page           int               `json:"page,omitempty"`
	Document       map[string]string `json:"document,omitempty"`
}

// RetrievalText returns the text retrieval scoring should operate on: the
// original span for context-enriched chunks, Content otherwise.
func (c Chunk) RetrievalText() string {
	if c.Meta != nil && c.Meta.RawText != "" {
		return c.Meta.RawText
	}
	return c.Content
}

// --- Retrieval types ---

// ScoredCandidate is a chunk scored against a single query. Created fresh
// per query, never persisted.
type ScoredCandidate struct {
	Chunk      Chunk   `json:"chunk"`
	Similarity float64 `json:"similarity_score"`
	Keyword    float64 `json:"keyword_score"`
	Fused      float64 `json:"fused_score"`
}

// VectorHit is a single result from Index.QueryVector.
type VectorHit struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
}

// KeywordHit is a single result from Index.QueryKeyword.
type KeywordHit struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
}

// Result is the outcome of one retrieval call. Candidates are ordered by
// descending fused score with ties broken by ascending chunk ID.
type Result struct {
	Candidates []ScoredCandidate `json:"candidates"`
	Strategy   RetrievalStrategy `json:"strategy"`
	// Degraded is true when a signal was dropped mid-flight (embedding
	// provider unavailable, keyword lookup failed) and ranking proceeded
	// on whatever remained.
	Degraded bool `json:"degraded,omitempty"`
	// ExpandedTerms lists the extra keyword terms added by query expansion.
	// Empty for non-contextual strategies.
	ExpandedTerms []string `json:"expanded_terms,omitempty"`
}
