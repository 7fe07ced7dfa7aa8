package core

import (
	"context"

	"github.com/hupe1980/agentrun/logging"
)

// RunContext carries execution state & helpers for one agent run. It
// aggregates:
//
//   - The ambient cancellation Context
//   - Identifiers (RunID, SessionID) and the currently active agent name
//   - The original input messages
//   - An opaque caller-supplied Value threaded into dynamic instructions,
//     finish predicates and tool executions
//   - The live Usage accumulator for the run
//
// Turns never overlap within a run, so RunContext is mutated only by the
// runner goroutine driving the loop; tools observe it through ToolContext.
type RunContext struct {
	Context   context.Context
	RunID     string
	SessionID string
	Agent     string    // Name of the currently active agent
	Input     []Message // Original caller input (before session merge)
	Turn      int       // 1-based turn counter
	Value     any       // Caller-supplied context value
	Usage     *Usage

	logger logging.Logger
}

// NewRunContext constructs a RunContext bound to ctx with a fresh Usage
// accumulator. A nil logger degrades to a no-op.
func NewRunContext(ctx context.Context, runID, sessionID string, input []Message, value any, logger logging.Logger) *RunContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &RunContext{
		Context:   ctx,
		RunID:     runID,
		SessionID: sessionID,
		Input:     input,
		Value:     value,
		Usage:     &Usage{},
		logger:    logger,
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// Logger returns the run-scoped logger.
func (rc *RunContext) Logger() logging.Logger { return rc.logger }

// InputText returns the concatenated text of the original input messages.
func (rc *RunContext) InputText() string {
	var out string
	for _, m := range rc.Input {
		out += m.Text()
	}
	return out
}
