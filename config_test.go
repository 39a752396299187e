package passage

import (
	"errors"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }, "chunk_size"},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }, "chunk_overlap"},
		{"overlap equals size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }, "chunk_overlap"},
		{"negative min chunk", func(c *Config) { c.MinChunkSize = -1 }, "min_chunk_size"},
		{"zero retrieval k", func(c *Config) { c.RetrievalK = 0 }, "retrieval_k"},
		{"threshold above one", func(c *Config) { c.SimilarityThreshold = 1.1 }, "similarity_threshold"},
		{"negative threshold", func(c *Config) { c.SimilarityThreshold = -0.1 }, "similarity_threshold"},
		{"fusion weight above one", func(c *Config) { c.FusionWeight = 1.01 }, "fusion_weight"},
		{"zero overfetch", func(c *Config) { c.Overfetch = 0 }, "overfetch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want ConfigError", err)
			}
			if ce.Field != tt.wantField {
				t.Errorf("field = %s, want %s", ce.Field, tt.wantField)
			}
		})
	}
}

func TestRetrievalTextPrefersRawText(t *testing.T) {
	c := Chunk{Content: "Summary.\n\nBody text.", Meta: &ChunkMeta{RawText: "Body text."}}
	if got := c.RetrievalText(); got != "Body text." {
		t.Errorf("RetrievalText = %q", got)
	}
	plain := Chunk{Content: "Body text."}
	if got := plain.RetrievalText(); got != "Body text." {
		t.Errorf("RetrievalText = %q", got)
	}
}
