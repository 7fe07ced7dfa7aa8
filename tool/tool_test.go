package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentrun/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newToolContext(t *testing.T) *core.ToolContext {
	t.Helper()
	rc := core.NewRunContext(context.Background(), "run-1", "sess-1", nil, nil, nil)
	rc.Agent = "tester"
	return core.NewToolContext(rc, "fc-1")
}

func sumSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
}

func TestFunctionToolSuccess(t *testing.T) {
	sum := NewFunctionTool("calculate_sum", "Calculate the sum of two numbers", sumSchema(),
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return args["a"].(float64) + args["b"].(float64), nil
		},
	)

	assert.Equal(t, "calculate_sum", sum.Name())
	assert.False(t, sum.RequiresApproval())

	result, err := sum.Call(newToolContext(t), map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionToolValidationError(t *testing.T) {
	sum := NewFunctionTool("calculate_sum", "Calculate the sum of two numbers", sumSchema(),
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			t.Fatal("fn must not run on invalid args")
			return nil, nil
		},
	)

	_, err := sum.Call(newToolContext(t), map[string]any{"a": 2.0})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
	assert.Equal(t, "calculate_sum", toolErr.Tool)
}

func TestFunctionToolExecutionErrorWrapped(t *testing.T) {
	failing := NewFunctionTool("flaky", "Always fails", map[string]any{"type": "object"},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return nil, errors.New("backend unavailable")
		},
	)

	_, err := failing.Call(newToolContext(t), map[string]any{})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Equal(t, "backend unavailable", toolErr.Message)
}

func TestFunctionToolErrorPassthrough(t *testing.T) {
	custom := NewToolError("custom", "rate limited", "RATE_LIMITED")
	failing := NewFunctionTool("custom", "Returns a typed error", map[string]any{"type": "object"},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return nil, custom
		},
	)

	_, err := failing.Call(newToolContext(t), map[string]any{})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Same(t, custom, toolErr)
	assert.Equal(t, "RATE_LIMITED", toolErr.Code)
}

func TestFunctionToolRequiresApprovalOption(t *testing.T) {
	gated := NewFunctionTool("dangerous", "Needs sign-off", map[string]any{"type": "object"},
		func(tc *core.ToolContext, args map[string]any) (any, error) { return "ok", nil },
		func(o *FunctionToolOptions) { o.RequiresApproval = true },
	)

	var aware ApprovalAware = gated
	assert.True(t, aware.RequiresApproval())
}

type echoArgs struct {
	Text  string `json:"text" description:"Text to echo"`
	Times *int   `json:"times" description:"Optional repeat count"`
}

func TestFunctionToolFromStruct(t *testing.T) {
	echo := NewFunctionToolFromStruct("echo", "Echo text back", echoArgs{},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return args["text"], nil
		},
	)

	props, ok := echo.Parameters()["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "text")
	assert.Contains(t, props, "times")

	result, err := echo.Call(newToolContext(t), map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", result)

	// Missing required "text" fails validation before the fn runs.
	_, err = echo.Call(newToolContext(t), map[string]any{})
	require.Error(t, err)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestToolErrorString(t *testing.T) {
	withCode := NewToolError("fetch", "timeout", "EXECUTION_ERROR")
	assert.Contains(t, withCode.Error(), "EXECUTION_ERROR")
	assert.Contains(t, withCode.Error(), "fetch")

	noCode := &ToolError{Tool: "fetch", Message: "timeout"}
	assert.Equal(t, "tool error in fetch: timeout", noCode.Error())
}
