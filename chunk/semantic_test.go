package chunk

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// stubEmbedding answers with a deterministic vector per input text.
type stubEmbedding struct {
	fn func(texts []string) ([][]float32, error)
}

func (s *stubEmbedding) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return s.fn(texts)
}

func (s *stubEmbedding) Dimensions() int { return 3 }
func (s *stubEmbedding) Name() string    { return "stub" }

// topicEmbedding maps cat sentences and car sentences to orthogonal vectors,
// so the only low-similarity adjacency is the topic switch.
func topicEmbedding() *stubEmbedding {
	return &stubEmbedding{fn: func(texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, t := range texts {
			if strings.Contains(strings.ToLower(t), "cat") {
				out[i] = []float32{1, 0, 0}
			} else {
				out[i] = []float32{0, 1, 0}
			}
		}
		return out, nil
	}}
}

func TestSemanticSplitsAtTopicBoundary(t *testing.T) {
	text := "Cats purr loudly at home. Cats nap all day. Cats chase mice. " +
		"Cars need fuel to run. Cars have four wheels. Cars drive on roads."
	cfg := testConfig(100, 0)
	cfg.MinChunkSize = 30
	e := newTestEngine(t, cfg,
		WithEmbedding(topicEmbedding()),
		WithBoundaryThreshold(0.5),
	)

	chunks, err := e.Chunk(context.Background(), testDoc(text), Semantic)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2 (one per topic)", len(chunks))
	}
	if !strings.Contains(chunks[0].Content, "Cats chase mice.") {
		t.Errorf("first chunk missing last cat sentence: %q", chunks[0].Content)
	}
	if !strings.HasPrefix(strings.TrimSpace(chunks[1].Content), "Cars need fuel") {
		t.Errorf("second chunk does not start at topic switch: %q", chunks[1].Content)
	}
	// Spans must tile the document.
	if got := reconstruct(chunks, 0); got != text {
		t.Errorf("chunks do not tile the document:\ngot  %q\nwant %q", got, text)
	}
	for _, c := range chunks {
		if c.Meta.StrategyUsed != "semantic" {
			t.Errorf("strategy_used = %q, want semantic", c.Meta.StrategyUsed)
		}
	}
}

func TestSemanticShortDocumentSingleChunk(t *testing.T) {
	text := "One short document."
	e := newTestEngine(t, testConfig(1000, 0), WithEmbedding(topicEmbedding()))

	chunks, err := e.Chunk(context.Background(), testDoc(text), Semantic)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 1 || chunks[0].Content != text {
		t.Fatalf("got %d chunks, want a single full-document chunk", len(chunks))
	}
	if chunks[0].Meta.StrategyUsed != "semantic" {
		t.Errorf("strategy_used = %q, want semantic", chunks[0].Meta.StrategyUsed)
	}
}

func TestSemanticFallsBackWhenProviderFails(t *testing.T) {
	failing := &stubEmbedding{fn: func([]string) ([][]float32, error) {
		return nil, errors.New("provider down")
	}}
	text := "Cats purr loudly at home. Cats nap all day. Cats chase mice. " +
		"Cars need fuel to run. Cars have four wheels. Cars drive on roads."
	e := newTestEngine(t, testConfig(100, 0), WithEmbedding(failing))

	chunks, err := e.Chunk(context.Background(), testDoc(text), Semantic)
	if err != nil {
		t.Fatalf("Chunk() error = %v, want graceful fallback", err)
	}
	if len(chunks) == 0 {
		t.Fatal("fallback produced no chunks")
	}
	for _, c := range chunks {
		if c.Meta.Strategy != "semantic" {
			t.Errorf("strategy = %q, want semantic (the requested one)", c.Meta.Strategy)
		}
		if c.Meta.StrategyUsed != "recursive" {
			t.Errorf("strategy_used = %q, want recursive", c.Meta.StrategyUsed)
		}
		if c.Meta.FallbackReason == "" {
			t.Error("fallback reason not recorded")
		}
	}
}

func TestSemanticWithoutProviderFallsBack(t *testing.T) {
	text := strings.Repeat("A sentence about something. ", 10)
	e := newTestEngine(t, testConfig(100, 0))

	chunks, err := e.Chunk(context.Background(), testDoc(text), Semantic)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if chunks[0].Meta.StrategyUsed != "recursive" {
		t.Errorf("strategy_used = %q, want recursive", chunks[0].Meta.StrategyUsed)
	}
}

func TestSemanticRespectsChunkSizeCeiling(t *testing.T) {
	// All sentences share one topic, so the grouper would emit a single
	// giant chunk without the oversize split.
	text := strings.Repeat("Cats are wonderful animals to keep. ", 12)
	text = strings.TrimSpace(text)
	cfg := testConfig(80, 0)
	cfg.MinChunkSize = 20
	e := newTestEngine(t, cfg, WithEmbedding(topicEmbedding()), WithBoundaryThreshold(0.5))

	chunks, err := e.Chunk(context.Background(), testDoc(text), Semantic)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want oversized group split up", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Content) > 80 {
			t.Errorf("chunk %d is %d bytes, want <= 80", i, len(c.Content))
		}
	}
	if got := reconstruct(chunks, 0); got != text {
		t.Errorf("split chunks do not tile the document")
	}
}

func TestDerivedThreshold(t *testing.T) {
	// mean 0.5, stddev 0.25 over {0.25, 0.75} pairs.
	sims := []float64{0.25, 0.75, 0.25, 0.75}
	got := derivedThreshold(sims)
	want := 0.25
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("derivedThreshold() = %v, want %v", got, want)
	}
}
