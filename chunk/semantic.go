package chunk

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/passagedev/passage"
)

// chunkSemantic embeds every sentence, computes adjacent cosine
// similarities, and opens a chunk boundary where similarity drops below the
// threshold, provided the accumulated chunk already clears the minimum
// floor, so a single outlier sentence cannot produce a sliver chunk.
// Chunks tile the document with no overlap: the boundaries themselves mark
// topic shifts. On provider failure the document is re-chunked recursively
// and the fallback recorded in metadata.
func (e *Engine) chunkSemantic(ctx context.Context, doc passage.Document, generation int) ([]passage.Chunk, error) {
	if e.embed == nil {
		cause := &passage.ProviderUnavailableError{Provider: "embedding"}
		return e.recursiveFallback(doc, generation, Semantic, cause), nil
	}

	if len(doc.Content) <= e.cfg.ChunkSize {
		return e.buildChunks(doc, generation, []Span{{Start: 0, End: len(doc.Content)}}, Semantic), nil
	}

	spans := sentenceSpans(doc.Content)
	if len(spans) <= 1 {
		return e.buildChunks(doc, generation, []Span{{Start: 0, End: len(doc.Content)}}, Semantic), nil
	}

	texts := make([]string, len(spans))
	for i, sp := range spans {
		texts[i] = strings.TrimSpace(doc.Content[sp.Start:sp.End])
	}

	embs, err := e.embed.Embed(ctx, texts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		cause := &passage.ProviderUnavailableError{Provider: e.embed.Name(), Err: err}
		return e.recursiveFallback(doc, generation, Semantic, cause), nil
	}
	if len(embs) != len(texts) {
		cause := &passage.ProviderUnavailableError{
			Provider: e.embed.Name(),
			Err:      fmt.Errorf("got %d embeddings for %d sentences", len(embs), len(texts)),
		}
		return e.recursiveFallback(doc, generation, Semantic, cause), nil
	}

	sims := make([]float64, len(spans)-1)
	for i := 0; i < len(spans)-1; i++ {
		sims[i] = cosineSimilarity(embs[i], embs[i+1])
	}

	threshold := e.boundaryThreshold
	if threshold == 0 {
		threshold = derivedThreshold(sims)
	}

	groups := e.groupSpans(spans, sims, threshold)
	final := e.splitOversized(doc.Content, groups)

	e.logger.Debug("semantic chunking done",
		"doc_id", doc.ID, "sentences", len(spans), "threshold", threshold, "chunks", len(final))
	return e.buildChunks(doc, generation, final, Semantic), nil
}

// groupSpans merges sentence spans into chunk spans, closing a chunk after
// sentence i when similarity to sentence i+1 is below threshold and the
// accumulated chunk length already exceeds the minimum floor.
func (e *Engine) groupSpans(spans []Span, sims []float64, threshold float64) []Span {
	floor := e.cfg.MinChunkSize
	if floor <= 0 {
		floor = e.cfg.ChunkSize / 5
	}

	var groups []Span
	start := spans[0].Start
	for i, sp := range spans {
		if i < len(sims) && sims[i] < threshold && sp.End-start >= floor {
			groups = append(groups, Span{Start: start, End: sp.End})
			start = sp.End
		}
	}
	if start < spans[len(spans)-1].End {
		groups = append(groups, Span{Start: start, End: spans[len(spans)-1].End})
	}
	return groups
}

// splitOversized sub-splits any group longer than ChunkSize using the
// recursive cut logic with zero overlap, preserving the tiling property.
func (e *Engine) splitOversized(text string, groups []Span) []Span {
	var out []Span
	for _, g := range groups {
		if g.End-g.Start <= e.cfg.ChunkSize {
			out = append(out, g)
			continue
		}
		sub := text[g.Start:g.End]
		cuts := cutPoints(sub, e.cfg.ChunkSize, 0)
		for _, sp := range windowSpans(cuts, e.cfg.ChunkSize, 0) {
			out = append(out, Span{Start: g.Start + sp.Start, End: g.Start + sp.End})
		}
	}
	return out
}

// cosineSimilarity computes cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// derivedThreshold returns mean minus one standard deviation of the
// similarities. Boundaries then open only at drops that are unusual for
// this particular document.
func derivedThreshold(sims []float64) float64 {
	if len(sims) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sims {
		sum += s
	}
	mean := sum / float64(len(sims))

	var variance float64
	for _, s := range sims {
		variance += (s - mean) * (s - mean)
	}
	return mean - math.Sqrt(variance/float64(len(sims)))
}
