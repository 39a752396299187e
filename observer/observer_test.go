package observer

import (
	"context"
	"errors"
	"testing"

	passage "github.com/passagedev/passage"
	"github.com/passagedev/passage/chunk"
	"github.com/passagedev/passage/index/memory"
)

// mockEmbedding for observer tests.
type mockEmbedding struct {
	name  string
	dims  int
	calls int
	err   error
}

func (m *mockEmbedding) Name() string    { return m.name }
func (m *mockEmbedding) Dimensions() int { return m.dims }
func (m *mockEmbedding) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

// testInstruments creates Instruments against the global OTEL providers,
// which are no-ops by default. Safe for testing delegation behavior without
// any backend.
func testInstruments(t *testing.T) *Instruments {
	t.Helper()
	inst, err := newInstruments()
	if err != nil {
		t.Fatalf("newInstruments: %v", err)
	}
	return inst
}

func TestObservedEmbeddingDelegates(t *testing.T) {
	inner := &mockEmbedding{name: "mock", dims: 3}
	obs := WrapEmbedding(inner, testInstruments(t))

	if obs.Name() != "mock" {
		t.Errorf("Name = %q", obs.Name())
	}
	if obs.Dimensions() != 3 {
		t.Errorf("Dimensions = %d", obs.Dimensions())
	}
	vecs, err := obs.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 2 || inner.calls != 1 {
		t.Errorf("vecs = %d, calls = %d", len(vecs), inner.calls)
	}
}

func TestObservedEmbeddingPropagatesError(t *testing.T) {
	wantErr := errors.New("down")
	obs := WrapEmbedding(&mockEmbedding{name: "mock", dims: 3, err: wantErr}, testInstruments(t))
	_, err := obs.Embed(context.Background(), []string{"a"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestObservedEngineDelegates(t *testing.T) {
	eng, err := chunk.NewEngine(passage.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	obs := WrapEngine(eng, testInstruments(t))

	doc := passage.Document{ID: "doc-1", Content: "Some short content."}
	chunks, err := obs.Chunk(context.Background(), doc, chunk.Recursive)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Errorf("chunks = %d, want 1", len(chunks))
	}

	_, err = obs.Chunk(context.Background(), passage.Document{ID: "doc-2"}, chunk.Recursive)
	if err == nil {
		t.Error("expected error for empty document")
	}
}

func TestObservedRetrieverDelegates(t *testing.T) {
	idx := memory.New()
	emb := &mockEmbedding{name: "mock", dims: 3}
	ctx := context.Background()

	chunkRec := passage.Chunk{
		ID:         passage.ChunkID("doc-1", 1, 0),
		DocumentID: "doc-1",
		Content:    "cats are great companions",
		End:        25,
	}
	if err := idx.Upsert(ctx, chunkRec, []float32{1, 0, 0}); err != nil {
		t.Fatal(err)
	}

	cfg := passage.DefaultConfig()
	cfg.SimilarityThreshold = 0
	r, err := passage.NewRetriever(idx, emb, passage.RetrieveHybrid, cfg)
	if err != nil {
		t.Fatal(err)
	}
	obs := WrapRetriever(r, testInstruments(t))

	res, err := obs.Retrieve(ctx, "cats")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Candidates) == 0 {
		t.Fatal("no candidates")
	}
	if res.Candidates[0].Chunk.ID != chunkRec.ID {
		t.Errorf("top candidate = %s", res.Candidates[0].Chunk.ID)
	}
}
