package core

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentrun/logging"
)

// ToolContext provides a constrained, auditable surface for tool / function
// implementations invoked by an agent. Tool authors never thread run state
// manually: the runner wraps every executor so it receives the live context
// for the current turn.
type ToolContext struct {
	runCtx         *RunContext
	functionCallID string
}

// NewToolContext constructs a tool context bound to a parent RunContext and
// unique functionCallID.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{runCtx: runCtx, functionCallID: functionCallID}
}

// Context returns the cancellation context associated with the invocation.
func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }

// RunID returns the run ID associated with the tool invocation.
func (tc *ToolContext) RunID() string { return tc.runCtx.RunID }

// SessionID returns the session ID associated with the tool invocation.
func (tc *ToolContext) SessionID() string { return tc.runCtx.SessionID }

// AgentName returns the name of the agent that requested the call.
func (tc *ToolContext) AgentName() string { return tc.runCtx.Agent }

// FunctionCallID returns the model-assigned call id for this invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// Turn returns the turn number the call was issued on.
func (tc *ToolContext) Turn() int { return tc.runCtx.Turn }

// Value returns the opaque caller-supplied run value.
func (tc *ToolContext) Value() any { return tc.runCtx.Value }

// Logger returns the run-scoped logger.
func (tc *ToolContext) Logger() logging.Logger { return tc.runCtx.Logger() }

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.runCtx == nil || tc.functionCallID == "" {
		return fmt.Errorf("invalid ToolContext")
	}
	return nil
}
