// Package config loads passage CLI configuration from TOML and env vars.
package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"

	passage "github.com/passagedev/passage"
)

type Config struct {
	Embedding EmbeddingConfig `toml:"embedding"`
	Index     IndexConfig     `toml:"index"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Observer  ObserverConfig  `toml:"observer"`
}

type EmbeddingConfig struct {
	BaseURL    string `toml:"base_url"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
	APIKey     string `toml:"api_key"`
}

type IndexConfig struct {
	// Backend selects "sqlite", "postgres" or "memory".
	Backend     string `toml:"backend"`
	Path        string `toml:"path"`
	PostgresURL string `toml:"postgres_url"`
}

type ChunkingConfig struct {
	Strategy     string `toml:"strategy"`
	ChunkSize    int    `toml:"chunk_size"`
	ChunkOverlap int    `toml:"chunk_overlap"`
	MinChunkSize int    `toml:"min_chunk_size"`
}

type RetrievalConfig struct {
	Strategy            string  `toml:"strategy"`
	TopK                int     `toml:"top_k"`
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	FusionWeight        float64 `toml:"fusion_weight"`
	Overfetch           int     `toml:"overfetch"`
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	core := passage.DefaultConfig()
	return Config{
		Embedding: EmbeddingConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
		},
		Index: IndexConfig{Backend: "sqlite", Path: "passage.db"},
		Chunking: ChunkingConfig{
			Strategy:     "hybrid",
			ChunkSize:    core.ChunkSize,
			ChunkOverlap: core.ChunkOverlap,
			MinChunkSize: core.MinChunkSize,
		},
		Retrieval: RetrievalConfig{
			Strategy:            "hybrid",
			TopK:                core.RetrievalK,
			SimilarityThreshold: core.SimilarityThreshold,
			FusionWeight:        core.FusionWeight,
			Overfetch:           core.Overfetch,
		},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "passage.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("PASSAGE_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("PASSAGE_EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("PASSAGE_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("PASSAGE_EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Embedding.Dimensions = n
		}
	}
	if v := os.Getenv("PASSAGE_INDEX_BACKEND"); v != "" {
		cfg.Index.Backend = v
	}
	if v := os.Getenv("PASSAGE_INDEX_PATH"); v != "" {
		cfg.Index.Path = v
	}
	if v := os.Getenv("PASSAGE_POSTGRES_URL"); v != "" {
		cfg.Index.PostgresURL = v
	}
	if os.Getenv("PASSAGE_OBSERVER_ENABLED") == "true" || os.Getenv("PASSAGE_OBSERVER_ENABLED") == "1" {
		cfg.Observer.Enabled = true
	}

	return cfg
}

// Core maps the chunking and retrieval sections onto a passage.Config.
// Validation happens at engine construction, not here.
func (c Config) Core() passage.Config {
	return passage.Config{
		ChunkSize:           c.Chunking.ChunkSize,
		ChunkOverlap:        c.Chunking.ChunkOverlap,
		MinChunkSize:        c.Chunking.MinChunkSize,
		RetrievalK:          c.Retrieval.TopK,
		SimilarityThreshold: c.Retrieval.SimilarityThreshold,
		FusionWeight:        c.Retrieval.FusionWeight,
		Overfetch:           c.Retrieval.Overfetch,
	}
}
