package tracing

import (
	"github.com/hupe1980/agentrun/logging"
)

// ConsoleProcessor logs span lifecycle events through a logging.Logger.
// Intended for local development; production exporters should use the
// OpenTelemetry bridge instead.
type ConsoleProcessor struct {
	logger logging.Logger
}

// NewConsoleProcessor constructs a processor writing to the given logger.
func NewConsoleProcessor(logger logging.Logger) *ConsoleProcessor {
	if logger == nil {
		logger = logging.NewDefaultSlogLogger()
	}
	return &ConsoleProcessor{logger: logger}
}

// OnSpanStart logs span creation at debug level.
func (p *ConsoleProcessor) OnSpanStart(span *Span) {
	p.logger.Debug("span started",
		"trace_id", span.TraceID,
		"span_id", span.ID,
		"kind", string(span.Kind),
		"name", span.Name,
	)
}

// OnSpanEnd logs span completion with duration and outcome.
func (p *ConsoleProcessor) OnSpanEnd(span *Span) {
	args := []any{
		"trace_id", span.TraceID,
		"span_id", span.ID,
		"kind", string(span.Kind),
		"name", span.Name,
		"duration", span.Duration().String(),
	}
	if err := span.Err(); err != nil {
		args = append(args, "error", err.Error())
		p.logger.Warn("span ended", args...)
		return
	}
	p.logger.Info("span ended", args...)
}

var _ Processor = (*ConsoleProcessor)(nil)
