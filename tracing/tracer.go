package tracing

import (
	"context"
)

// Processor receives span lifecycle notifications. Implementations must be
// safe for concurrent use; tracers may emit spans from multiple goroutines.
type Processor interface {
	// OnSpanStart is invoked when a span is created.
	OnSpanStart(span *Span)

	// OnSpanEnd is invoked exactly once per span, when it closes.
	OnSpanEnd(span *Span)
}

// Tracer creates spans and fans lifecycle events out to its processors. A
// tracer with no processors is effectively a no-op and is the default used
// by the runner, so tracing never has to be stubbed out by callers.
type Tracer struct {
	processors []Processor
}

// NewTracer constructs a tracer emitting to the given processors.
func NewTracer(processors ...Processor) *Tracer {
	return &Tracer{processors: processors}
}

// NoopTracer returns a tracer that records nothing.
func NoopTracer() *Tracer { return &Tracer{} }

type spanContextKey struct{}

// ContextWithSpan returns a context carrying span as the current parent.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, spanContextKey{}, span)
}

// SpanFromContext returns the current span, or nil when none is set.
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(spanContextKey{}).(*Span)
	return span
}

// StartSpan opens a new span. The parent is taken from ctx when present so
// nested operations form a tree under one trace id. The returned context
// carries the new span for further nesting.
func (t *Tracer) StartSpan(ctx context.Context, name string, kind Kind) (context.Context, *Span) {
	var traceID, parentID string
	if parent := SpanFromContext(ctx); parent != nil {
		traceID = parent.TraceID
		parentID = parent.ID
	}
	span := newSpan(t, traceID, parentID, name, kind)
	for _, p := range t.processors {
		p.OnSpanStart(span)
	}
	return ContextWithSpan(ctx, span), span
}

func (t *Tracer) spanEnded(span *Span) {
	for _, p := range t.processors {
		p.OnSpanEnd(span)
	}
}
