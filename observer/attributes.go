package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for passage spans and metrics.
var (
	AttrDocumentID = attribute.Key("passage.document_id")
	AttrStrategy   = attribute.Key("passage.strategy")
	AttrChunkCount = attribute.Key("passage.chunk_count")

	AttrQueryLength    = attribute.Key("passage.query_length")
	AttrCandidateCount = attribute.Key("passage.candidate_count")
	AttrDegraded       = attribute.Key("passage.degraded")

	AttrEmbedProvider   = attribute.Key("embedding.provider")
	AttrEmbedTextCount  = attribute.Key("embedding.text_count")
	AttrEmbedDimensions = attribute.Key("embedding.dimensions")
)
