package observer

import (
	"context"
	"time"

	passage "github.com/passagedev/passage"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedRetriever wraps a passage.Retriever with OTEL instrumentation.
type ObservedRetriever struct {
	inner *passage.Retriever
	inst  *Instruments
}

// WrapRetriever returns an instrumented retriever.
func WrapRetriever(inner *passage.Retriever, inst *Instruments) *ObservedRetriever {
	return &ObservedRetriever{inner: inner, inst: inst}
}

// Retrieve instruments Retriever.Retrieve.
func (o *ObservedRetriever) Retrieve(ctx context.Context, query string, opts ...passage.QueryOption) (passage.Result, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "retrieval.query", trace.WithAttributes(
		AttrQueryLength.Int(len(query)),
	))
	defer span.End()
	start := time.Now()

	result, err := o.inner.Retrieve(ctx, query, opts...)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			AttrStrategy.String(string(result.Strategy)),
			AttrCandidateCount.Int(len(result.Candidates)),
			AttrDegraded.Bool(result.Degraded),
		)
	}

	o.inst.RetrievalRequests.Add(ctx, 1, metric.WithAttributes(
		AttrStrategy.String(string(result.Strategy)),
		attribute.String("status", status),
		AttrDegraded.Bool(result.Degraded),
	))
	o.inst.RetrievalDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrStrategy.String(string(result.Strategy)),
	))
	if err == nil {
		o.inst.CandidateCount.Record(ctx, int64(len(result.Candidates)), metric.WithAttributes(
			AttrStrategy.String(string(result.Strategy)),
		))
	}

	return result, err
}
