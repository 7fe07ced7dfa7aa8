package tracing

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	providerOnce sync.Once
	providerMu   sync.RWMutex
	provider     *sdktrace.TracerProvider
	providerErr  error
)

// InitOTel initializes a process-wide OpenTelemetry tracer provider with the
// given service name. It is safe to call multiple times; only the first call
// takes effect.
func InitOTel(serviceName string) error {
	providerOnce.Do(func() {
		res, err := resource.New(
			context.Background(),
			resource.WithAttributes(semconv.ServiceName(serviceName)),
		)
		if err != nil {
			providerErr = err
			return
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(1))),
			sdktrace.WithResource(res),
		)

		providerMu.Lock()
		provider = tp
		providerMu.Unlock()

		otel.SetTracerProvider(tp)
	})
	return providerErr
}

// ShutdownOTel flushes and shuts down the global tracer provider.
func ShutdownOTel(ctx context.Context) error {
	providerMu.RLock()
	tp := provider
	providerMu.RUnlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// OTelProcessor mirrors spans into OpenTelemetry so any configured exporter
// (OTLP, stdout, vendor backends) receives them. Parent/child relationships
// are preserved by threading the OTel context from parent to child span.
type OTelProcessor struct {
	tracer trace.Tracer

	mu     sync.Mutex
	active map[string]otelEntry
}

type otelEntry struct {
	ctx  context.Context
	span trace.Span
}

// NewOTelProcessor constructs a processor using the named tracer from the
// global provider.
func NewOTelProcessor(tracerName string) *OTelProcessor {
	return &OTelProcessor{
		tracer: otel.Tracer(tracerName),
		active: make(map[string]otelEntry),
	}
}

// OnSpanStart opens a mirrored OTel span under the parent's OTel context.
func (p *OTelProcessor) OnSpanStart(span *Span) {
	p.mu.Lock()
	parentCtx := context.Background()
	if span.ParentID != "" {
		if entry, ok := p.active[span.ParentID]; ok {
			parentCtx = entry.ctx
		}
	}
	p.mu.Unlock()

	ctx, otelSpan := p.tracer.Start(parentCtx, span.Name,
		trace.WithTimestamp(span.Start),
		trace.WithAttributes(attribute.String("span.kind", string(span.Kind))),
	)

	p.mu.Lock()
	p.active[span.ID] = otelEntry{ctx: ctx, span: otelSpan}
	p.mu.Unlock()
}

// OnSpanEnd closes the mirrored OTel span with the recorded attributes and
// outcome.
func (p *OTelProcessor) OnSpanEnd(span *Span) {
	p.mu.Lock()
	entry, ok := p.active[span.ID]
	delete(p.active, span.ID)
	p.mu.Unlock()
	if !ok {
		return
	}

	for k, v := range span.Attributes() {
		entry.span.SetAttributes(toAttribute(k, v))
	}
	if err := span.Err(); err != nil {
		entry.span.RecordError(err)
		entry.span.SetStatus(codes.Error, err.Error())
	} else {
		entry.span.SetStatus(codes.Ok, "")
	}
	entry.span.End(trace.WithTimestamp(span.EndTime()))
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

var _ Processor = (*OTelProcessor)(nil)
