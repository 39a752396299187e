// Package chunk splits document text into retrievable units under
// interchangeable strategies.
//
// All strategies produce chunks whose Start/End offsets index into the
// source document, in non-decreasing order. Recursive chunks are exact
// substrings with a fixed overlap; semantic chunks tile the document at
// embedding-detected topic boundaries; contextual chunks prepend a document
// summary to recursive chunks; hybrid picks one of the three from document
// statistics.
package chunk

import (
	"context"
	"log/slog"
	"strings"

	"github.com/passagedev/passage"
)

// Strategy names a chunking behavior. Recorded in every produced chunk's
// metadata.
type Strategy string

const (
	// Recursive splits on paragraph, then sentence, then word boundaries,
	// stitching adjacent chunks with an exact overlap. Deterministic, no
	// external calls; the fallback for every other strategy.
	Recursive Strategy = "recursive"
	// Semantic opens chunk boundaries where adjacent-sentence embedding
	// similarity drops. Requires an embedding provider.
	Semantic Strategy = "semantic"
	// Contextual runs Recursive and prepends a document-level summary to
	// each chunk, keeping the original span in metadata.
	Contextual Strategy = "contextual"
	// Hybrid auto-selects one of the above from document statistics.
	Hybrid Strategy = "hybrid"
)

// Option configures an Engine.
type Option func(*Engine)

// WithEmbedding sets the embedding provider used by the semantic strategy
// and the hybrid strategy's topic probe. Without it those strategies fall
// back to Recursive.
func WithEmbedding(p passage.EmbeddingProvider) Option {
	return func(e *Engine) { e.embed = p }
}

// WithSummarizer sets the summarizer used by the contextual strategy.
// Without it (or on failure) the document's first paragraph serves as a
// heuristic summary.
func WithSummarizer(s passage.Summarizer) Option {
	return func(e *Engine) { e.summarizer = s }
}

// WithLogger sets a structured logger. When unset, nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithBoundaryThreshold fixes the semantic strategy's similarity threshold.
// When unset, the threshold is derived per document as mean minus one
// standard deviation of the adjacent-sentence similarities.
func WithBoundaryThreshold(t float64) Option {
	return func(e *Engine) { e.boundaryThreshold = t }
}

// WithLongDocThreshold sets the document length, in bytes, above which the
// hybrid strategy considers the semantic strategy. Default 10000.
func WithLongDocThreshold(n int) Option {
	return func(e *Engine) { e.longDocChars = n }
}

// WithComplexityCeiling sets the estimated chunk count above which the
// hybrid strategy switches to Contextual, on the grounds that standalone
// chunks from such documents are ambiguous without context. Default 64.
func WithComplexityCeiling(n int) Option {
	return func(e *Engine) { e.complexityCeiling = n }
}

// WithTopicDrift sets the minimum topic variance, 1 minus the mean sampled
// adjacent-sentence similarity, for the hybrid strategy to choose
// Semantic. Default 0.2.
func WithTopicDrift(v float64) Option {
	return func(e *Engine) { e.topicDrift = v }
}

// Engine is the chunking engine. Stateless per call: chunking the same
// document twice with the same strategy and config yields identical
// boundaries.
type Engine struct {
	cfg        passage.Config
	embed      passage.EmbeddingProvider
	summarizer passage.Summarizer
	logger     *slog.Logger

	boundaryThreshold float64
	longDocChars      int
	complexityCeiling int
	topicDrift        float64
	probePairs        int
	summaryLimit      int
}

// NewEngine creates an Engine. The configuration is validated up front;
// contradictory values (overlap >= size) fail construction immediately.
func NewEngine(cfg passage.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:               cfg,
		logger:            passage.NopLogger(),
		longDocChars:      10000,
		complexityCeiling: 64,
		topicDrift:        0.2,
		probePairs:        8,
		summaryLimit:      480,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Chunk splits the document under the given strategy, producing generation 1
// chunk IDs. It fails with *passage.InvalidInputError on empty document text
// and *passage.ConfigError on an unknown strategy name.
func (e *Engine) Chunk(ctx context.Context, doc passage.Document, strategy Strategy) ([]passage.Chunk, error) {
	return e.ChunkGeneration(ctx, doc, strategy, 1)
}

// ChunkGeneration is Chunk with an explicit generation for the derived chunk
// IDs. Re-chunking a document bumps the generation so old chunk IDs are
// superseded, never mutated.
func (e *Engine) ChunkGeneration(ctx context.Context, doc passage.Document, strategy Strategy, generation int) ([]passage.Chunk, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, &passage.InvalidInputError{Msg: "document has no text"}
	}

	switch strategy {
	case Recursive:
		return e.chunkRecursive(doc, generation), nil
	case Semantic:
		return e.chunkSemantic(ctx, doc, generation)
	case Contextual:
		return e.chunkContextual(ctx, doc, generation)
	case Hybrid:
		return e.chunkHybrid(ctx, doc, generation)
	default:
		return nil, &passage.ConfigError{Field: "chunk_strategy", Msg: "unknown strategy " + string(strategy)}
	}
}

// chunkRecursive splits on paragraph, sentence, then word boundaries and
// fills chunks up to ChunkSize with an exact ChunkOverlap stitch. Every
// chunk is a verbatim substring of the document, so concatenating chunk
// texts minus the overlap reconstructs the document exactly.
func (e *Engine) chunkRecursive(doc passage.Document, generation int) []passage.Chunk {
	cuts := cutPoints(doc.Content, e.cfg.ChunkSize, e.cfg.ChunkOverlap)
	spans := windowSpans(cuts, e.cfg.ChunkSize, e.cfg.ChunkOverlap)

	chunks := e.buildChunks(doc, generation, spans, Recursive)
	e.logger.Debug("recursive chunking done",
		"doc_id", doc.ID, "chunks", len(chunks), "cuts", len(cuts))
	return chunks
}

// buildChunks materializes spans into chunk records with derived IDs and
// strategy metadata.
func (e *Engine) buildChunks(doc passage.Document, generation int, spans []Span, used Strategy) []passage.Chunk {
	chunks := make([]passage.Chunk, 0, len(spans))
	for i, sp := range spans {
		chunks = append(chunks, passage.Chunk{
			ID:         passage.ChunkID(doc.ID, generation, i),
			DocumentID: doc.ID,
			Content:    doc.Content[sp.Start:sp.End],
			ChunkIndex: i,
			Start:      sp.Start,
			End:        sp.End,
			Meta: &passage.ChunkMeta{
				Strategy:     string(used),
				StrategyUsed: string(used),
				Document:     doc.Metadata,
			},
		})
	}
	return chunks
}

// recursiveFallback re-chunks with the dependency-free strategy and records
// the substitution in metadata so callers can detect it.
func (e *Engine) recursiveFallback(doc passage.Document, generation int, requested Strategy, cause error) []passage.Chunk {
	e.logger.Warn("falling back to recursive chunking",
		"doc_id", doc.ID, "requested", string(requested), "err", cause)
	chunks := e.chunkRecursive(doc, generation)
	for i := range chunks {
		m := chunks[i].Meta
		m.Strategy = string(requested)
		m.StrategyUsed = string(Recursive)
		m.FallbackReason = cause.Error()
	}
	return chunks
}
