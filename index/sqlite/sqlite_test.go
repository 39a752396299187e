package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/passagedev/passage"
)

func testIndex(t *testing.T) *Index {
	t.Helper()
	x := New(filepath.Join(t.TempDir(), "test.db"))
	if err := x.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { x.Close() })
	return x
}

func TestInitIdempotent(t *testing.T) {
	x := New(filepath.Join(t.TempDir(), "init.db"))
	ctx := context.Background()
	if err := x.Init(ctx); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	if err := x.Init(ctx); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	x.Close()
}

func seedChunks(t *testing.T, x *Index) {
	t.Helper()
	ctx := context.Background()
	rows := []struct {
		id, docID, text string
		emb             []float32
	}{
		{"doc-1#g001#c00000", "doc-1", "cats purr and nap all day", []float32{1, 0, 0}},
		{"doc-1#g001#c00001", "doc-1", "cars need fuel and open roads", []float32{0, 1, 0}},
		{"doc-2#g001#c00000", "doc-2", "cats chase mice in barns", []float32{0.9, 0.1, 0}},
	}
	for i, r := range rows {
		c := passage.Chunk{
			ID:         r.id,
			DocumentID: r.docID,
			Content:    r.text,
			ChunkIndex: i,
			Start:      0,
			End:        len(r.text),
			Meta:       &passage.ChunkMeta{Strategy: "recursive", StrategyUsed: "recursive"},
		}
		if err := x.Upsert(ctx, c, r.emb); err != nil {
			t.Fatalf("Upsert(%s): %v", r.id, err)
		}
	}
}

func TestUpsertAndCount(t *testing.T) {
	x := testIndex(t)
	seedChunks(t, x)

	n, err := x.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}

func TestQueryVector(t *testing.T) {
	x := testIndex(t)
	seedChunks(t, x)

	hits, err := x.QueryVector(context.Background(), []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("QueryVector: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ChunkID != "doc-1#g001#c00000" {
		t.Errorf("top hit = %s, want the aligned vector", hits[0].ChunkID)
	}
	if hits[0].Score <= hits[1].Score {
		t.Errorf("scores not descending: %v, %v", hits[0].Score, hits[1].Score)
	}
}

func TestQueryKeyword(t *testing.T) {
	x := testIndex(t)
	seedChunks(t, x)

	hits, err := x.QueryKeyword(context.Background(), []string{"cats", "mice"}, 10)
	if err != nil {
		t.Fatalf("QueryKeyword: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d (car chunk matches nothing)", len(hits))
	}
	if hits[0].ChunkID != "doc-2#g001#c00000" {
		t.Errorf("top hit = %s, want the chunk matching both terms", hits[0].ChunkID)
	}
	for _, h := range hits {
		if h.Score < 0 || h.Score >= 1 {
			t.Errorf("score %v outside [0, 1)", h.Score)
		}
	}
}

func TestQueryKeywordEmptyTerms(t *testing.T) {
	x := testIndex(t)
	seedChunks(t, x)

	hits, err := x.QueryKeyword(context.Background(), nil, 10)
	if err != nil {
		t.Fatalf("QueryKeyword: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits for empty terms, got %d", len(hits))
	}
}

func TestQueryKeywordQuotesOperators(t *testing.T) {
	x := testIndex(t)
	seedChunks(t, x)

	// FTS5 would choke on a bare NEAR or AND token; quoting must make
	// these plain terms.
	if _, err := x.QueryKeyword(context.Background(), []string{"near", "and"}, 10); err != nil {
		t.Fatalf("QueryKeyword with operator-looking terms: %v", err)
	}
}

func TestKeywordSearchesRetrievalText(t *testing.T) {
	x := testIndex(t)
	ctx := context.Background()
	c := passage.Chunk{
		ID:         "c1",
		DocumentID: "d",
		Content:    "Summary about finance.\n\nthe kitchen sink overflowed",
		End:        27,
		Meta:       &passage.ChunkMeta{RawText: "the kitchen sink overflowed"},
	}
	if err := x.Upsert(ctx, c, []float32{1}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := x.QueryKeyword(ctx, []string{"finance"}, 10)
	if err != nil {
		t.Fatalf("QueryKeyword: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("summary text leaked into keyword index: %v", hits)
	}
	hits, err = x.QueryKeyword(ctx, []string{"kitchen"}, 10)
	if err != nil {
		t.Fatalf("QueryKeyword: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("raw text not indexed: %v", hits)
	}
}

func TestGetChunksPreservesOrderAndMeta(t *testing.T) {
	x := testIndex(t)
	seedChunks(t, x)

	got, err := x.GetChunks(context.Background(), []string{"doc-1#g001#c00001", "missing", "doc-1#g001#c00000"})
	if err != nil {
		t.Fatalf("GetChunks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	if got[0].ID != "doc-1#g001#c00001" || got[1].ID != "doc-1#g001#c00000" {
		t.Errorf("input order not preserved: %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].Meta == nil || got[0].Meta.Strategy != "recursive" {
		t.Errorf("metadata not round-tripped: %+v", got[0].Meta)
	}
	if len(got[0].Embedding) != 3 {
		t.Errorf("embedding not round-tripped: %v", got[0].Embedding)
	}
}

func TestStoreDocumentReplacesGeneration(t *testing.T) {
	x := testIndex(t)
	ctx := context.Background()

	doc := passage.Document{ID: "doc-1", Title: "t", Source: "test", Content: "cats purr", CreatedAt: passage.NowUnix()}
	gen1 := []passage.Chunk{{
		ID: "doc-1#g001#c00000", DocumentID: "doc-1", Content: "cats purr",
		End: 9, Embedding: []float32{1, 0},
	}}
	if err := x.StoreDocument(ctx, doc, 1, gen1); err != nil {
		t.Fatalf("StoreDocument gen 1: %v", err)
	}

	gen2 := []passage.Chunk{{
		ID: "doc-1#g002#c00000", DocumentID: "doc-1", Content: "cats purr",
		End: 9, Embedding: []float32{0, 1},
	}}
	if err := x.StoreDocument(ctx, doc, 2, gen2); err != nil {
		t.Fatalf("StoreDocument gen 2: %v", err)
	}

	n, _ := x.Count(ctx)
	if n != 1 {
		t.Errorf("Count = %d after re-ingest, want 1 (old generation superseded)", n)
	}
	g, err := x.Generation(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Generation: %v", err)
	}
	if g != 2 {
		t.Errorf("Generation = %d, want 2", g)
	}
	got, _ := x.GetChunks(ctx, []string{"doc-1#g001#c00000", "doc-1#g002#c00000"})
	if len(got) != 1 || got[0].ID != "doc-1#g002#c00000" {
		t.Errorf("old generation chunks still present: %+v", got)
	}
}

func TestGenerationUnknownDocument(t *testing.T) {
	x := testIndex(t)
	g, err := x.Generation(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Generation: %v", err)
	}
	if g != 0 {
		t.Errorf("Generation = %d for unknown document, want 0", g)
	}
}

func TestDeleteDocument(t *testing.T) {
	x := testIndex(t)
	seedChunks(t, x)
	ctx := context.Background()

	if err := x.DeleteDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	n, _ := x.Count(ctx)
	if n != 1 {
		t.Errorf("Count = %d after delete, want 1", n)
	}
	hits, err := x.QueryKeyword(ctx, []string{"cars"}, 10)
	if err != nil {
		t.Fatalf("QueryKeyword: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("FTS entries survived the delete: %v", hits)
	}
}
