package runner

import (
	"github.com/hupe1980/agentrun/core"
)

// AgentMetrics accumulates per-agent counters within one run. Token usage of
// the whole run always equals the sum over all agent buckets.
type AgentMetrics struct {
	Turns     int        `json:"turns"`
	Steps     int        `json:"steps"`
	ToolCalls int        `json:"tool_calls"`
	Handoffs  int        `json:"handoffs"`
	Usage     core.Usage `json:"usage"`
}

// Metadata summarizes a finished (or aborted) run.
type Metadata struct {
	TotalTokens      int                      `json:"total_tokens"`
	PromptTokens     int                      `json:"prompt_tokens"`
	CompletionTokens int                      `json:"completion_tokens"`
	FinishReason     string                   `json:"finish_reason,omitempty"`
	TotalToolCalls   int                      `json:"total_tool_calls"`
	HandoffChain     []string                 `json:"handoff_chain,omitempty"`
	AgentMetrics     map[string]*AgentMetrics `json:"agent_metrics,omitempty"`
}

// RunState is the mutable heart of one run: the active agent, counters, the
// working transcript and the item log. It is created at run start, mutated
// every turn by the single goroutine driving the loop and attached to the
// result so callers can inspect or resume partial runs after a failure.
type RunState struct {
	RunID     string         `json:"run_id"`
	SessionID string         `json:"session_id,omitempty"`
	Agent     string         `json:"agent"` // Currently active agent
	Turn      int            `json:"turn"`
	MaxTurns  int            `json:"max_turns"`
	Input     []core.Message `json:"input"`

	// Messages is the full working transcript: merged session history,
	// caller input and everything generated during the run.
	Messages []core.Message `json:"messages"`

	// Generated holds only the messages produced during this run (the
	// suffix of Messages after history and input); this is what gets
	// persisted to the session on finish.
	Generated []core.Message `json:"generated,omitempty"`

	Steps        []core.Step              `json:"steps,omitempty"`
	Usage        core.Usage               `json:"usage"`
	HandoffChain []string                 `json:"handoff_chain,omitempty"`
	AgentMetrics map[string]*AgentMetrics `json:"agent_metrics,omitempty"`
	FinishReason string                   `json:"finish_reason,omitempty"`
}

// metrics returns the bucket for the named agent, creating it lazily.
func (s *RunState) metrics(agent string) *AgentMetrics {
	if s.AgentMetrics == nil {
		s.AgentMetrics = make(map[string]*AgentMetrics)
	}
	m, ok := s.AgentMetrics[agent]
	if !ok {
		m = &AgentMetrics{}
		s.AgentMetrics[agent] = m
	}
	return m
}

// recordHandoff appends target to the handoff chain, deduplicating
// consecutive repeats.
func (s *RunState) recordHandoff(target string) {
	if n := len(s.HandoffChain); n > 0 && s.HandoffChain[n-1] == target {
		return
	}
	s.HandoffChain = append(s.HandoffChain, target)
}

// appendMessages adds messages to both the working transcript and the
// generated suffix.
func (s *RunState) appendMessages(msgs ...core.Message) {
	s.Messages = append(s.Messages, msgs...)
	s.Generated = append(s.Generated, msgs...)
}

// RunResult is the caller-facing outcome of a run. On failure Run returns it
// alongside the error with whatever partial state exists, so transcript and
// metrics survive for inspection or resumption.
type RunResult struct {
	// FinalOutput is the final answer text of the run.
	FinalOutput string `json:"final_output"`

	// Output holds the schema-parsed final answer when the finishing agent
	// declares an output schema; nil otherwise.
	Output any `json:"output,omitempty"`

	// Messages is the full transcript including merged history.
	Messages []core.Message `json:"messages"`

	// Steps is the ordered item log of recorded steps (handoff turns are
	// not steps).
	Steps []core.Step `json:"steps,omitempty"`

	Metadata Metadata  `json:"metadata"`
	State    *RunState `json:"state,omitempty"`
}

func resultFromState(state *RunState, finalOutput string, output any) *RunResult {
	toolCalls := 0
	for _, step := range state.Steps {
		toolCalls += len(step.Calls)
	}
	return &RunResult{
		FinalOutput: finalOutput,
		Output:      output,
		Messages:    state.Messages,
		Steps:       state.Steps,
		Metadata: Metadata{
			TotalTokens:      state.Usage.TotalTokens,
			PromptTokens:     state.Usage.InputTokens,
			CompletionTokens: state.Usage.OutputTokens,
			FinishReason:     state.FinishReason,
			TotalToolCalls:   toolCalls,
			HandoffChain:     state.HandoffChain,
			AgentMetrics:     state.AgentMetrics,
		},
		State: state,
	}
}
