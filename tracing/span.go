package tracing

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/agentrun/core"
)

// Kind classifies what a span measures within a run.
type Kind string

const (
	KindRun        Kind = "run"        // Whole runner invocation
	KindAgent      Kind = "agent"      // One agent's turns within a run
	KindGeneration Kind = "generation" // Single model call
	KindTool       Kind = "tool"       // Single tool execution
	KindHandoff    Kind = "handoff"    // Control transfer between agents
)

// Span records one timed operation. Spans form a tree via ParentID under a
// shared TraceID. End is idempotent: the first call closes the span and
// notifies processors, later calls are no-ops, so deferred and explicit
// closes on error paths cannot double-report.
type Span struct {
	ID       string
	TraceID  string
	ParentID string
	Name     string
	Kind     Kind
	Start    time.Time

	tracer *Tracer
	ended  atomic.Bool

	mu    sync.Mutex
	end   time.Time
	attrs map[string]any
	err   error
}

// SetAttribute records a key/value pair on the span. Calls after End are
// ignored.
func (s *Span) SetAttribute(key string, value any) {
	if s == nil || s.ended.Load() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attrs == nil {
		s.attrs = make(map[string]any)
	}
	s.attrs[key] = value
}

// RecordError marks the span as failed. Only the first error is kept.
func (s *Span) RecordError(err error) {
	if s == nil || err == nil || s.ended.Load() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// End closes the span exactly once and forwards it to the tracer's
// processors. Safe to call from defer alongside explicit error-path closes.
func (s *Span) End() {
	if s == nil || !s.ended.CompareAndSwap(false, true) {
		return
	}
	s.mu.Lock()
	s.end = time.Now()
	s.mu.Unlock()
	if s.tracer != nil {
		s.tracer.spanEnded(s)
	}
}

// Ended reports whether End has been called.
func (s *Span) Ended() bool { return s != nil && s.ended.Load() }

// EndTime returns the close timestamp (zero while the span is open).
func (s *Span) EndTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.end
}

// Duration returns the elapsed time between Start and End, or zero while the
// span is still open.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.end.IsZero() {
		return 0
	}
	return s.end.Sub(s.Start)
}

// Err returns the recorded error, if any.
func (s *Span) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Attributes returns a copy of the span attributes.
func (s *Span) Attributes() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.attrs))
	for k, v := range s.attrs {
		out[k] = v
	}
	return out
}

func newSpan(tracer *Tracer, traceID, parentID, name string, kind Kind) *Span {
	if traceID == "" {
		traceID = core.NewID()
	}
	return &Span{
		ID:       core.NewID(),
		TraceID:  traceID,
		ParentID: parentID,
		Name:     name,
		Kind:     kind,
		Start:    time.Now(),
		tracer:   tracer,
	}
}
