package tracing

import "sync"

// Recorder is a Processor capturing spans in memory, primarily for tests and
// assertions about span balance (every started span must end).
type Recorder struct {
	mu      sync.Mutex
	started []*Span
	ended   []*Span
}

// NewRecorder constructs an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// OnSpanStart records the span as started.
func (r *Recorder) OnSpanStart(span *Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, span)
}

// OnSpanEnd records the span as ended.
func (r *Recorder) OnSpanEnd(span *Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = append(r.ended, span)
}

// Started returns a copy of all spans seen starting, in order.
func (r *Recorder) Started() []*Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Span, len(r.started))
	copy(out, r.started)
	return out
}

// Ended returns a copy of all spans seen ending, in order.
func (r *Recorder) Ended() []*Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Span, len(r.ended))
	copy(out, r.ended)
	return out
}

// Open returns spans that started but have not ended.
func (r *Recorder) Open() []*Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	endedIDs := make(map[string]bool, len(r.ended))
	for _, s := range r.ended {
		endedIDs[s.ID] = true
	}
	var open []*Span
	for _, s := range r.started {
		if !endedIDs[s.ID] {
			open = append(open, s)
		}
	}
	return open
}

// ByKind returns all ended spans of the given kind.
func (r *Recorder) ByKind(kind Kind) []*Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Span
	for _, s := range r.ended {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

var _ Processor = (*Recorder)(nil)
