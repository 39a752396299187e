package passage

// Config carries the tuning knobs shared by the chunking and retrieval
// engines. It is supplied once at engine construction and read-only after
// that; contradictory values are rejected by Validate, never clamped.
type Config struct {
	// ChunkSize is the target chunk length in bytes of document text.
	ChunkSize int
	// ChunkOverlap is the exact number of bytes duplicated between adjacent
	// recursive chunks. Must be smaller than ChunkSize.
	ChunkOverlap int
	// MinChunkSize is the floor below which the semantic strategy refuses to
	// open a new boundary, avoiding pathologically small chunks.
	MinChunkSize int
	// RetrievalK is the maximum number of candidates a retrieval returns.
	RetrievalK int
	// SimilarityThreshold filters vector hits during retrieval. In [0, 1].
	SimilarityThreshold float64
	// FusionWeight is the share of the fused score taken from the similarity
	// signal; the keyword signal gets 1 - FusionWeight. In [0, 1].
	FusionWeight float64
	// Overfetch multiplies RetrievalK to size the per-signal candidate pool
	// before fusion.
	Overfetch int
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:           1000,
		ChunkOverlap:        200,
		MinChunkSize:        200,
		RetrievalK:          5,
		SimilarityThreshold: 0.7,
		FusionWeight:        0.7,
		Overfetch:           3,
	}
}

// Validate reports the first contradictory setting as a *ConfigError.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return &ConfigError{Field: "chunk_size", Msg: "must be positive"}
	}
	if c.ChunkOverlap < 0 {
		return &ConfigError{Field: "chunk_overlap", Msg: "must not be negative"}
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return &ConfigError{Field: "chunk_overlap", Msg: "must be smaller than chunk_size"}
	}
	if c.MinChunkSize < 0 {
		return &ConfigError{Field: "min_chunk_size", Msg: "must not be negative"}
	}
	if c.RetrievalK <= 0 {
		return &ConfigError{Field: "retrieval_k", Msg: "must be positive"}
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return &ConfigError{Field: "similarity_threshold", Msg: "must be in [0, 1]"}
	}
	if c.FusionWeight < 0 || c.FusionWeight > 1 {
		return &ConfigError{Field: "fusion_weight", Msg: "must be in [0, 1]"}
	}
	if c.Overfetch <= 0 {
		return &ConfigError{Field: "overfetch", Msg: "must be positive"}
	}
	return nil
}
