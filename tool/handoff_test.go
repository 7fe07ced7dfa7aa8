package tool

import (
	"context"
	"testing"

	"github.com/hupe1980/agentrun/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelegateToolName(t *testing.T) {
	assert.Equal(t, "transfer_to_billing", DelegateToolName("Billing"))
	assert.Equal(t, "transfer_to_math_agent", DelegateToolName("Math Agent"))
	assert.Equal(t, "transfer_to_tier_2_support", DelegateToolName("  Tier-2 Support  "))
	assert.Equal(t, "transfer_to_faq", DelegateToolName("FAQ!!"))
}

func TestAsHandoffTypedValues(t *testing.T) {
	h := &Handoff{AgentName: "math", Reason: "arithmetic"}

	got, ok := AsHandoff(h)
	require.True(t, ok)
	assert.Equal(t, "math", got.AgentName)

	got, ok = AsHandoff(Handoff{AgentName: "poet"})
	require.True(t, ok)
	assert.Equal(t, "poet", got.AgentName)

	var nilHandoff *Handoff
	_, ok = AsHandoff(nilHandoff)
	assert.False(t, ok)
}

func TestAsHandoffWireShape(t *testing.T) {
	// The shape a handoff result takes after a JSON round trip.
	wire := map[string]any{
		"handoff":   true,
		"agentName": "billing",
		"reason":    "invoice question",
		"context":   map[string]any{"ticket": "T-42"},
	}

	got, ok := AsHandoff(wire)
	require.True(t, ok)
	assert.Equal(t, "billing", got.AgentName)
	assert.Equal(t, "invoice question", got.Reason)
	assert.Equal(t, "T-42", got.Context["ticket"])
}

func TestAsHandoffRejectsOrdinaryResults(t *testing.T) {
	cases := []any{
		nil,
		"plain string",
		42,
		map[string]any{"handoff": false, "agentName": "x"},
		map[string]any{"handoff": true}, // no target name
		map[string]any{"agentName": "x"},
	}
	for _, c := range cases {
		_, ok := AsHandoff(c)
		assert.False(t, ok, "%#v must not be a handoff", c)
	}
}

func TestHandoffWire(t *testing.T) {
	h := &Handoff{AgentName: "math", Reason: "arithmetic", Context: map[string]any{"k": "v"}}
	wire := h.Wire()
	assert.Equal(t, true, wire["handoff"])
	assert.Equal(t, "math", wire["agentName"])
	assert.Equal(t, "arithmetic", wire["reason"])

	// Round trip through the untyped shape.
	got, ok := AsHandoff(wire)
	require.True(t, ok)
	assert.Equal(t, h.AgentName, got.AgentName)
	assert.Equal(t, h.Reason, got.Reason)

	minimal := (&Handoff{AgentName: "poet"}).Wire()
	assert.NotContains(t, minimal, "reason")
	assert.NotContains(t, minimal, "context")
}

func TestDelegateToolProducesHandoff(t *testing.T) {
	dt := NewDelegateTool("Math Agent", "Solves arithmetic problems.")

	assert.Equal(t, "transfer_to_math_agent", dt.Name())
	assert.Contains(t, dt.Description(), "Math Agent")
	assert.Contains(t, dt.Description(), "Solves arithmetic problems.")

	delegate, ok := dt.(Delegate)
	require.True(t, ok)
	assert.Equal(t, "Math Agent", delegate.Target())

	rc := core.NewRunContext(context.Background(), "run-1", "", nil, nil, nil)
	rc.Agent = "triage"
	result, err := dt.Call(core.NewToolContext(rc, "fc-1"), map[string]any{"reason": "needs math"})
	require.NoError(t, err)

	h, ok := AsHandoff(result)
	require.True(t, ok)
	assert.Equal(t, "Math Agent", h.AgentName)
	assert.Equal(t, "needs math", h.Reason)
}
