// Package tool implements the function / tool calling subsystem that lets
// agents invoke structured capabilities (APIs, computations, side-effects)
// with schema validated arguments, consistent error handling and rich
// metadata for LLM guidance. It also defines the reserved Handoff marker used
// by auto-generated delegate tools to transfer control between agents.
package tool

import (
	"fmt"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/internal/util"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tools can be registered with agents to enable function calling, allowing
// agents to perform actions beyond text generation such as API calls,
// calculations, database queries, or any other programmatic operations.
//
// All tools receive a *core.ToolContext carrying the live run state (run id,
// session id, caller value, turn) injected by the runner, so tool authors
// never thread it manually.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe if used concurrently
type Tool interface {
	// Name returns the unique identifier for this tool.
	// Names should be descriptive and follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the LLM to help it understand when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	// This schema is used for parameter validation and LLM function calling.
	Parameters() map[string]any

	// Call executes the tool with structured arguments and ToolContext.
	// Arguments are parsed from JSON and validated against the tool's schema.
	// Results must be JSON-serializable; returning a *Handoff (or the reserved
	// {"handoff":true,...} shape) is interpreted by the runner as a request to
	// transfer control and must not be used for ordinary results.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ApprovalAware is implemented by tools whose execution requires explicit
// (human-in-the-loop) approval before the runner invokes them.
type ApprovalAware interface {
	RequiresApproval() bool
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution. It is the
// fatal error shape surfaced by the runner when a tool executor fails; the
// engine performs no automatic retry.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
