package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/hupe1980/agentrun/agent"
	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/model"
	"github.com/hupe1980/agentrun/tool"
)

// ApprovalRequest is handed to the configured ApprovalHandler when an
// approval-gated tool is about to execute.
type ApprovalRequest struct {
	RunID          string
	SessionID      string
	Agent          string
	Tool           string
	FunctionCallID string
	Arguments      map[string]any
}

// toolSet is the immutable, per-agent cache entry: tool lookup map plus the
// model-facing definitions, computed once per agent name. Only the run
// context binding varies per turn, so nothing here is reallocated on the hot
// path and the cache stays safe under concurrent runs.
type toolSet struct {
	tools map[string]tool.Tool
	defs  []model.ToolDefinition
}

func newToolSet(a *agent.Agent) *toolSet {
	tools := a.Tools()
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, name := range names {
		t := tools[name]
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return &toolSet{tools: tools, defs: defs}
}

// bind attaches the live run context for the current turn.
func (ts *toolSet) bind(runCtx *core.RunContext) *boundToolSet {
	return &boundToolSet{set: ts, runCtx: runCtx}
}

// boundToolSet is a per-turn view over the cached toolSet carrying the
// refreshed run context reference.
type boundToolSet struct {
	set    *toolSet
	runCtx *core.RunContext
}

func (b *boundToolSet) definitions() []model.ToolDefinition { return b.set.defs }

// call executes one model-issued function call. Errors at this layer are
// fatal to the run; retry is the tool author's responsibility.
func (b *boundToolSet) call(r *Runner, fc core.FunctionCall) (any, error) {
	t, ok := b.set.tools[fc.Name]
	if !ok {
		return nil, tool.NewToolError(fc.Name, "unknown tool", "EXECUTION_ERROR")
	}

	args := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			return nil, tool.NewToolError(fc.Name, fmt.Sprintf("invalid arguments: %v", err), "VALIDATION_ERROR")
		}
	}

	if aware, ok := t.(tool.ApprovalAware); ok && aware.RequiresApproval() {
		if err := r.approve(b.runCtx, fc, args); err != nil {
			return nil, err
		}
	}

	toolCtx := core.NewToolContext(b.runCtx, fc.ID)
	result, err := t.Call(toolCtx, args)
	if err != nil {
		var te *tool.ToolError
		if errors.As(err, &te) {
			return nil, te
		}
		return nil, tool.NewToolError(fc.Name, err.Error(), "EXECUTION_ERROR")
	}
	return result, nil
}

// approve consults the ApprovalHandler under the configured timeout. A
// missing handler or an explicit denial is an execution error; an elapsed
// window is an ApprovalTimeoutError.
func (r *Runner) approve(runCtx *core.RunContext, fc core.FunctionCall, args map[string]any) error {
	if r.approvalHandler == nil {
		return tool.NewToolError(fc.Name, "tool requires approval but no approval handler is configured", "EXECUTION_ERROR")
	}

	ctx := runCtx.Context
	if r.approvalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.approvalTimeout)
		defer cancel()
	}

	approved, err := r.approvalHandler(ctx, ApprovalRequest{
		RunID:          runCtx.RunID,
		SessionID:      runCtx.SessionID,
		Agent:          runCtx.Agent,
		Tool:           fc.Name,
		FunctionCallID: fc.ID,
		Arguments:      args,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && runCtx.Err() == nil {
			return &ApprovalTimeoutError{Tool: fc.Name, Timeout: r.approvalTimeout}
		}
		return tool.NewToolError(fc.Name, fmt.Sprintf("approval failed: %v", err), "EXECUTION_ERROR")
	}
	if !approved {
		return tool.NewToolError(fc.Name, "execution denied by approval handler", "EXECUTION_ERROR")
	}
	return nil
}
