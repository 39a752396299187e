package ingest

import (
	"log/slog"

	"github.com/passagedev/passage/chunk"
	"github.com/passagedev/passage/extract"
)

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithStrategy sets the chunking strategy (default hybrid).
func WithStrategy(s chunk.Strategy) Option {
	return func(ing *Ingestor) { ing.strategy = s }
}

// WithBatchSize sets the number of chunks per Embed call (default 64).
func WithBatchSize(n int) Option {
	return func(ing *Ingestor) {
		if n > 0 {
			ing.batchSize = n
		}
	}
}

// WithExtractor registers an extractor for a content type, replacing the
// default one.
func WithExtractor(ct extract.ContentType, e extract.Extractor) Option {
	return func(ing *Ingestor) { ing.extractors[ct] = e }
}

// WithLogger sets the logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(ing *Ingestor) {
		if l != nil {
			ing.logger = l
		}
	}
}
