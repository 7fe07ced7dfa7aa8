package agent

import (
	"context"
	"testing"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/model"
	"github.com/hupe1980/agentrun/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name string) tool.Tool {
	return tool.NewFunctionTool(name, "Echo input", map[string]any{"type": "object"},
		func(tc *core.ToolContext, args map[string]any) (any, error) { return args, nil },
	)
}

func TestNewDefaults(t *testing.T) {
	m := model.NewMockModel()
	a := New("Helper", m)

	assert.Equal(t, "Helper", a.Name())
	assert.Same(t, m, a.Model())
	assert.Empty(t, a.Tools())
	assert.False(t, a.IsRouter())

	text, err := a.Instructions(core.NewRunContext(context.Background(), "r", "", nil, nil, nil))
	require.NoError(t, err)
	assert.Contains(t, text, "Helper")
}

func TestHandoffsGenerateDelegateTools(t *testing.T) {
	m := model.NewMockModel()
	math := New("Math", m, func(o *Options) { o.Description = "Solves arithmetic." })
	poet := New("Poet", m)

	triage := New("Triage", m, func(o *Options) { o.Handoffs = []*Agent{math, poet} })

	tools := triage.Tools()
	require.Len(t, tools, 2)
	assert.Contains(t, tools, "transfer_to_math")
	assert.Contains(t, tools, "transfer_to_poet")

	dt, ok := tools["transfer_to_math"].(tool.Delegate)
	require.True(t, ok)
	assert.Equal(t, "Math", dt.Target())
	assert.Contains(t, tools["transfer_to_math"].Description(), "Solves arithmetic.")
}

func TestResolveHandoffScopedToOwnTargets(t *testing.T) {
	m := model.NewMockModel()
	math := New("Math", m)
	triage := New("Triage", m, func(o *Options) { o.Handoffs = []*Agent{math} })

	assert.Same(t, math, triage.ResolveHandoff("Math"))
	assert.Nil(t, triage.ResolveHandoff("Other"))
	assert.Nil(t, triage.ResolveHandoff(""))
}

func TestIsRouter(t *testing.T) {
	m := model.NewMockModel()
	math := New("Math", m)

	pureRouter := New("Router", m, func(o *Options) { o.Handoffs = []*Agent{math} })
	assert.True(t, pureRouter.IsRouter())

	// A regular tool alongside delegates makes the agent a hybrid, not a router.
	hybrid := New("Hybrid", m, func(o *Options) {
		o.Handoffs = []*Agent{math}
		o.Tools = map[string]tool.Tool{"echo": echoTool("echo")}
	})
	assert.False(t, hybrid.IsRouter())

	toolless := New("Plain", m)
	assert.False(t, toolless.IsRouter())
}

func TestCloneIsIndependent(t *testing.T) {
	m := model.NewMockModel()
	math := New("Math", m)
	original := New("Helper", m, func(o *Options) {
		o.Description = "original"
		o.MaxSteps = 5
		o.Tools = map[string]tool.Tool{"echo": echoTool("echo")}
		o.Handoffs = []*Agent{math}
	})

	clone := original.Clone()
	assert.Equal(t, original.Name(), clone.Name())
	assert.Equal(t, original.Description(), clone.Description())
	assert.Equal(t, original.MaxSteps(), clone.MaxSteps())
	require.Len(t, clone.Tools(), 2) // echo plus regenerated transfer_to_math
	assert.Contains(t, clone.Tools(), "transfer_to_math")

	override := original.Clone(func(o *Options) {
		o.Description = "overridden"
		o.Handoffs = nil
	})
	assert.Equal(t, "overridden", override.Description())
	assert.NotContains(t, override.Tools(), "transfer_to_math")

	// Originals are untouched by clone overrides.
	assert.Equal(t, "original", original.Description())
	assert.Contains(t, original.Tools(), "transfer_to_math")
}

func TestToolsReturnsCopy(t *testing.T) {
	m := model.NewMockModel()
	a := New("Helper", m, func(o *Options) {
		o.Tools = map[string]tool.Tool{"echo": echoTool("echo")}
	})

	tools := a.Tools()
	delete(tools, "echo")

	_, ok := a.Tool("echo")
	assert.True(t, ok)
}
