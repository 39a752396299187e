package observer

import (
	"context"
	"time"

	passage "github.com/passagedev/passage"
	"github.com/passagedev/passage/chunk"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedEngine wraps a chunk.Engine with OTEL instrumentation.
type ObservedEngine struct {
	inner *chunk.Engine
	inst  *Instruments
}

// WrapEngine returns an instrumented chunking engine.
func WrapEngine(inner *chunk.Engine, inst *Instruments) *ObservedEngine {
	return &ObservedEngine{inner: inner, inst: inst}
}

// Chunk instruments Engine.Chunk.
func (o *ObservedEngine) Chunk(ctx context.Context, doc passage.Document, strategy chunk.Strategy) ([]passage.Chunk, error) {
	return o.ChunkGeneration(ctx, doc, strategy, 1)
}

// ChunkGeneration instruments Engine.ChunkGeneration.
func (o *ObservedEngine) ChunkGeneration(ctx context.Context, doc passage.Document, strategy chunk.Strategy, generation int) ([]passage.Chunk, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "chunk.document", trace.WithAttributes(
		AttrDocumentID.String(doc.ID),
		AttrStrategy.String(string(strategy)),
	))
	defer span.End()
	start := time.Now()

	chunks, err := o.inner.ChunkGeneration(ctx, doc, strategy, generation)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(AttrChunkCount.Int(len(chunks)))
	}

	attrs := metric.WithAttributes(
		AttrStrategy.String(string(strategy)),
		attribute.String("status", status),
	)
	o.inst.ChunkRequests.Add(ctx, 1, attrs)
	o.inst.ChunksProduced.Add(ctx, int64(len(chunks)), attrs)
	o.inst.ChunkDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrStrategy.String(string(strategy)),
	))

	return chunks, err
}
