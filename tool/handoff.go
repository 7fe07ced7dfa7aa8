package tool

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentrun/core"
)

// Handoff is the reserved tool-result shape requesting transfer of control to
// another agent. Delegate tools return it instead of an ordinary result; the
// runner detects it after every turn and switches the active agent.
//
// A Handoff names its target, never a live agent reference, so
// cyclic delegation graphs (A→B→A) carry no ownership cycles. Resolution
// happens strictly against the current agent's own handoff list.
type Handoff struct {
	AgentName string         `json:"agentName"`
	Reason    string         `json:"reason,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// Wire returns the JSON-serializable wire shape {"handoff":true, ...} so
// results crossing a session or model boundary stay recognizable.
func (h *Handoff) Wire() map[string]any {
	out := map[string]any{"handoff": true, "agentName": h.AgentName}
	if h.Reason != "" {
		out["reason"] = h.Reason
	}
	if len(h.Context) > 0 {
		out["context"] = h.Context
	}
	return out
}

// AsHandoff reports whether a tool result is a handoff marker. It accepts the
// typed *Handoff / Handoff values produced in-process as well as the reserved
// untyped wire shape {"handoff":true,"agentName":...} a tool result may take
// after a JSON round trip.
func AsHandoff(result any) (*Handoff, bool) {
	switch v := result.(type) {
	case *Handoff:
		return v, v != nil
	case Handoff:
		return &v, true
	case map[string]any:
		flag, _ := v["handoff"].(bool)
		name, _ := v["agentName"].(string)
		if !flag || name == "" {
			return nil, false
		}
		h := &Handoff{AgentName: name}
		h.Reason, _ = v["reason"].(string)
		if c, ok := v["context"].(map[string]any); ok {
			h.Context = c
		}
		return h, true
	default:
		return nil, false
	}
}

// DelegateToolName returns the deterministic tool name generated for a
// handoff target: "transfer_to_" plus the snake_cased target name.
func DelegateToolName(target string) string {
	s := strings.ToLower(strings.TrimSpace(target))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return "transfer_to_" + strings.Trim(s, "_")
}

// Delegate is implemented by the synthetic delegate tools generated for
// handoff targets. Target returns the agent name the tool transfers to. An
// agent whose tools are all Delegates is a pure router.
type Delegate interface {
	Target() string
}

// delegateTool is the synthetic tool generated per handoff target at agent
// construction time. Its executor produces the Handoff marker.
type delegateTool struct {
	name        string
	target      string
	description string
}

// NewDelegateTool constructs the synthetic delegate tool for a handoff
// target. targetDescription (the target agent's description, may be empty)
// helps the model choose the right specialist.
func NewDelegateTool(target, targetDescription string) Tool {
	desc := fmt.Sprintf("Transfer the conversation to the %q agent.", target)
	if targetDescription != "" {
		desc += " " + targetDescription
	}
	desc += " Use when that agent is better suited to handle the request."

	return &delegateTool{
		name:        DelegateToolName(target),
		target:      target,
		description: desc,
	}
}

func (t *delegateTool) Name() string { return t.name }

// Target implements Delegate.
func (t *delegateTool) Target() string { return t.target }

func (t *delegateTool) Description() string { return t.description }

func (t *delegateTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reason": map[string]any{
				"type":        "string",
				"description": "Short explanation of why control is being transferred",
			},
		},
		"required": []string{"reason"},
	}
}

func (t *delegateTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	reason, _ := args["reason"].(string)

	tc.Logger().Info("tool.handoff.request",
		"from_agent", tc.AgentName(),
		"to_agent", t.target,
		"fc_id", tc.FunctionCallID(),
	)

	return &Handoff{AgentName: t.target, Reason: reason}, nil
}
