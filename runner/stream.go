package runner

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/logging"
)

// StreamEventType tags an entry on the full event stream.
type StreamEventType string

const (
	// StreamEventDelta carries an incremental text fragment.
	StreamEventDelta StreamEventType = "delta"
	// StreamEventToolResult carries a completed tool call result.
	StreamEventToolResult StreamEventType = "tool_result"
	// StreamEventStep carries a fully assembled step record.
	StreamEventStep StreamEventType = "step"
	// StreamEventHandoff signals a control transfer between agents.
	StreamEventHandoff StreamEventType = "handoff"
)

// StreamEvent is one entry of the full event stream. Exactly the fields
// matching Type are populated.
type StreamEvent struct {
	Type       StreamEventType        `json:"type"`
	Delta      string                 `json:"delta,omitempty"`
	ToolResult *core.FunctionResponse `json:"tool_result,omitempty"`
	Step       *core.Step             `json:"step,omitempty"`
	FromAgent  string                 `json:"from_agent,omitempty"`
	ToAgent    string                 `json:"to_agent,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
}

// StreamResult exposes a running stream: live text deltas, the full event
// stream, and a Wait that resolves once the run completes. The run never
// blocks on either channel, so Wait resolves whether or not Text() or
// Events() are consumed; the final result always carries the full text.
//
// Cancellation is cooperative: after Cancel no further deltas are forwarded
// and Wait resolves with the partial text produced so far as a normal
// result, not an error, distinguishing intentional cancellation from
// provider failure.
type StreamResult struct {
	textCh   chan string
	eventCh  chan StreamEvent
	done     chan struct{}
	cancelCh chan struct{}

	cancelOnce sync.Once
	flag       atomic.Bool
	dropped    atomic.Int64

	result *RunResult
	err    error
}

// Text returns the live delta channel. It is closed when the run completes
// or is cancelled. Consumption is optional; an unread channel never stalls
// the run, but a consumer that stops reading before the run completes may
// miss trailing deltas.
func (s *StreamResult) Text() <-chan string { return s.textCh }

// Events returns the full event stream (deltas, tool results, steps,
// handoffs). It is closed when the run completes. Delivery is best effort:
// events beyond the buffer are dropped rather than stalling the run; see
// DroppedEvents.
func (s *StreamResult) Events() <-chan StreamEvent { return s.eventCh }

// DroppedEvents reports how many events were discarded because the Events
// buffer was full. A non-zero count means the event stream is lossy for
// this run; the final result is unaffected.
func (s *StreamResult) DroppedEvents() int64 { return s.dropped.Load() }

// Cancel sets the cooperative cancellation flag. The in-flight model call
// runs to completion, but no further deltas are delivered.
func (s *StreamResult) Cancel() {
	s.cancelOnce.Do(func() {
		s.flag.Store(true)
		close(s.cancelCh)
	})
}

// Wait blocks until the run finishes (or ctx expires) and returns the final
// result. It does not require Text() or Events() to be drained. A cancelled
// stream resolves with the partial text, not an error.
func (s *StreamResult) Wait(ctx context.Context) (*RunResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return s.result, s.err
	}
}

// streamSink is the runner-facing side of a StreamResult. Deltas land in a
// growable pending buffer consumed by a pump goroutine, so the run loop
// never blocks on a slow or absent Text() consumer.
type streamSink struct {
	stream *StreamResult
	logger logging.Logger

	mu      sync.Mutex
	pending []string
	partial []byte
	closed  bool

	wake    chan struct{}
	closeCh chan struct{}
}

func newStreamSink(stream *StreamResult, logger logging.Logger) *streamSink {
	return &streamSink{
		stream:  stream,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		closeCh: make(chan struct{}),
	}
}

func (s *streamSink) cancelled() bool { return s.stream.flag.Load() }

// delta enqueues one text fragment for delivery. The cancellation flag is
// checked between deliveries; once set nothing further is accepted.
func (s *streamSink) delta(text string) {
	if text == "" || s.cancelled() {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, text)
	s.partial = append(s.partial, text...)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	s.event(StreamEvent{Type: StreamEventDelta, Delta: text})
}

// partialText returns the text accepted before cancellation took effect.
func (s *streamSink) partialText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.partial)
}

// close marks the sink finished and wakes the pump so it can flush and exit.
func (s *streamSink) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	close(s.closeCh)
}

// pump moves pending deltas into the text channel. While the run is live
// delivery blocks (lossless for a reading consumer) without ever stalling
// the run loop; once the run has finished the remainder is flushed best
// effort so completion never waits on an absent consumer.
func (s *streamSink) pump() {
	for {
		s.mu.Lock()
		if len(s.pending) > 0 {
			text := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Unlock()

			select {
			case s.stream.textCh <- text:
			case <-s.stream.cancelCh:
				return
			case <-s.closeCh:
				s.flush(text)
				return
			}
			continue
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}

		select {
		case <-s.wake:
		case <-s.stream.cancelCh:
			return
		case <-s.closeCh:
		}
	}
}

// flush delivers the remaining deltas without blocking. An actively reading
// consumer picks them up; otherwise the buffer absorbs what it can and the
// rest is dropped in favor of the final result.
func (s *streamSink) flush(head string) {
	s.mu.Lock()
	rest := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, text := range append([]string{head}, rest...) {
		select {
		case s.stream.textCh <- text:
		default:
			return
		}
	}
}

func (s *streamSink) toolResult(fr *core.FunctionResponse) {
	s.event(StreamEvent{Type: StreamEventToolResult, ToolResult: fr})
}

func (s *streamSink) step(step *core.Step) {
	s.event(StreamEvent{Type: StreamEventStep, Step: step})
}

func (s *streamSink) handoff(from, to, reason string) {
	s.event(StreamEvent{Type: StreamEventHandoff, FromAgent: from, ToAgent: to, Reason: reason})
}

// event enqueues without blocking; a slow event consumer never stalls the
// run. Overflow is counted and surfaced via DroppedEvents, with a warning
// on the first drop.
func (s *streamSink) event(ev StreamEvent) {
	select {
	case s.stream.eventCh <- ev:
	default:
		if s.stream.dropped.Add(1) == 1 {
			s.logger.Warn("stream event buffer full, dropping events", "type", string(ev.Type))
		}
	}
}

// RunStream executes the agent like Run but exposes live output. The
// returned StreamResult's channels are closed when the run ends; use Wait
// for the final result. Neither channel needs to be consumed for the run to
// make progress.
func (r *Runner) RunStream(ctx context.Context, input []core.Message) *StreamResult {
	stream := &StreamResult{
		textCh:   make(chan string, r.streamBufferSize),
		eventCh:  make(chan StreamEvent, r.streamBufferSize*4),
		done:     make(chan struct{}),
		cancelCh: make(chan struct{}),
	}
	sink := newStreamSink(stream, r.logger)

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		sink.pump()
	}()

	go func() {
		stream.result, stream.err = r.run(ctx, input, sink)
		sink.close()
		<-pumpDone
		close(stream.textCh)
		close(stream.eventCh)
		close(stream.done)
	}()

	return stream
}
