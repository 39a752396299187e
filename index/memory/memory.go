// Package memory provides an in-process Index for tests, examples, and
// small corpora. Vector search is exact brute-force cosine; keyword search
// scores normalized query-term overlap against each chunk's retrieval text.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/passagedev/passage"
)

// Index is an in-memory chunk store. Safe for concurrent use.
type Index struct {
	mu         sync.RWMutex
	chunks     map[string]passage.Chunk
	embeddings map[string][]float32
}

// New creates an empty index.
func New() *Index {
	return &Index{
		chunks:     make(map[string]passage.Chunk),
		embeddings: make(map[string][]float32),
	}
}

// Upsert stores or replaces a chunk and its embedding.
func (x *Index) Upsert(_ context.Context, chunk passage.Chunk, embedding []float32) error {
	emb := make([]float32, len(embedding))
	copy(emb, embedding)

	x.mu.Lock()
	defer x.mu.Unlock()
	x.chunks[chunk.ID] = chunk
	x.embeddings[chunk.ID] = emb
	return nil
}

// DeleteDocument removes every chunk belonging to the given document.
// Used when re-ingesting a document supersedes its previous chunk
// generation.
func (x *Index) DeleteDocument(_ context.Context, documentID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for id, c := range x.chunks {
		if c.DocumentID == documentID {
			delete(x.chunks, id)
			delete(x.embeddings, id)
		}
	}
	return nil
}

// QueryVector ranks all chunks by cosine similarity to the query embedding,
// highest first, ties broken by ascending chunk ID.
func (x *Index) QueryVector(_ context.Context, embedding []float32, topN int) ([]passage.VectorHit, error) {
	x.mu.RLock()
	hits := make([]passage.VectorHit, 0, len(x.embeddings))
	for id, emb := range x.embeddings {
		hits = append(hits, passage.VectorHit{ChunkID: id, Score: cosine(embedding, emb)})
	}
	x.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if topN > 0 && len(hits) > topN {
		hits = hits[:topN]
	}
	return hits, nil
}

// QueryKeyword ranks chunks by the share of query terms present in their
// retrieval text. Chunks matching no term are omitted.
func (x *Index) QueryKeyword(_ context.Context, terms []string, topN int) ([]passage.KeywordHit, error) {
	x.mu.RLock()
	hits := make([]passage.KeywordHit, 0, len(x.chunks))
	for id, c := range x.chunks {
		score := passage.TermOverlap(terms, c.RetrievalText())
		if score > 0 {
			hits = append(hits, passage.KeywordHit{ChunkID: id, Score: score})
		}
	}
	x.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if topN > 0 && len(hits) > topN {
		hits = hits[:topN]
	}
	return hits, nil
}

// GetChunks resolves IDs to chunk records, preserving input order and
// skipping unknown IDs.
func (x *Index) GetChunks(_ context.Context, ids []string) ([]passage.Chunk, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]passage.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := x.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Count returns the number of stored chunks.
func (x *Index) Count(context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks), nil
}

func cosine(a, b []float32) float64 {
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
