package chunk

import (
	"context"
	"strings"

	"github.com/passagedev/passage"
)

// DocStats are the measurable document signals the hybrid strategy selects
// from. Exposed as an inspectable intermediate so the selection is testable
// without running a full chunking pass.
type DocStats struct {
	// Chars is the document length in bytes.
	Chars int
	// Paragraphs is the number of blank-line separated paragraphs.
	Paragraphs int
	// Sentences is the number of detected sentences.
	Sentences int
	// EstimatedChunks is the chunk count a recursive pass would roughly
	// produce: ceil(Chars / (ChunkSize - ChunkOverlap)).
	EstimatedChunks int
	// TopicVariance is 1 minus the mean adjacent-sentence similarity over the
	// sampled probe. Higher means more topic drift.
	TopicVariance float64
	// Sampled reports whether the topic probe ran. False when no embedding
	// provider is configured, the document is too short to probe, or the
	// provider failed.
	Sampled bool
}

// Analyze computes the document statistics driving hybrid strategy
// selection. The topic probe embeds a small, evenly spaced sample of
// adjacent sentence pairs; a provider failure degrades to Sampled=false
// rather than erroring, so Analyze stays usable for inspection.
func (e *Engine) Analyze(ctx context.Context, doc passage.Document) DocStats {
	spans := sentenceSpans(doc.Content)
	stride := e.cfg.ChunkSize - e.cfg.ChunkOverlap
	stats := DocStats{
		Chars:           len(doc.Content),
		Paragraphs:      len(paragraphCuts(doc.Content)) + 1,
		Sentences:       len(spans),
		EstimatedChunks: (len(doc.Content) + stride - 1) / stride,
	}

	if e.embed == nil || len(spans) < 2*e.probePairs {
		return stats
	}

	pairs := samplePairs(len(spans), e.probePairs)
	texts := make([]string, 0, 2*len(pairs))
	for _, p := range pairs {
		texts = append(texts,
			strings.TrimSpace(doc.Content[spans[p].Start:spans[p].End]),
			strings.TrimSpace(doc.Content[spans[p+1].Start:spans[p+1].End]))
	}

	embs, err := e.embed.Embed(ctx, texts)
	if err != nil || len(embs) != len(texts) {
		e.logger.Warn("topic probe failed, selection proceeds unsampled", "doc_id", doc.ID, "err", err)
		return stats
	}

	var sum float64
	for i := 0; i < len(embs); i += 2 {
		sum += cosineSimilarity(embs[i], embs[i+1])
	}
	stats.TopicVariance = 1 - sum/float64(len(pairs))
	stats.Sampled = true
	return stats
}

// Select maps document statistics to a concrete strategy. Pure function:
// the same stats and engine thresholds always select the same strategy.
// Contextual wins when the estimated chunk count exceeds the complexity
// ceiling, since that many standalone chunks are ambiguous without document
// context. Semantic wins for long documents whose sampled topic drift is at
// or above the drift threshold. Everything else chunks recursively.
func (e *Engine) Select(stats DocStats) Strategy {
	if stats.EstimatedChunks > e.complexityCeiling {
		return Contextual
	}
	if stats.Chars > e.longDocChars && stats.Sampled && stats.TopicVariance >= e.topicDrift {
		return Semantic
	}
	return Recursive
}

// chunkHybrid analyzes the document, selects a strategy, runs it, and
// records the choice in every chunk's metadata.
func (e *Engine) chunkHybrid(ctx context.Context, doc passage.Document, generation int) ([]passage.Chunk, error) {
	stats := e.Analyze(ctx, doc)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	chosen := e.Select(stats)
	e.logger.Debug("hybrid selection",
		"doc_id", doc.ID, "chosen", string(chosen),
		"chars", stats.Chars, "estimated_chunks", stats.EstimatedChunks,
		"topic_variance", stats.TopicVariance, "sampled", stats.Sampled)

	chunks, err := e.ChunkGeneration(ctx, doc, chosen, generation)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		// StrategyUsed keeps the inner outcome, including any fallback the
		// chosen strategy itself performed.
		chunks[i].Meta.Strategy = string(Hybrid)
	}
	return chunks, nil
}

// samplePairs returns up to want evenly spaced adjacent-pair indices
// (i, i+1) over n sentences. Deterministic for a given n.
func samplePairs(n, want int) []int {
	if n < 2 {
		return nil
	}
	if want > n-1 {
		want = n - 1
	}
	pairs := make([]int, 0, want)
	step := float64(n-1) / float64(want)
	for k := 0; k < want; k++ {
		pairs = append(pairs, int(float64(k)*step))
	}
	return pairs
}
