package agent

import (
	"maps"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/guardrail"
	"github.com/hupe1980/agentrun/model"
	"github.com/hupe1980/agentrun/tool"
)

// FinishPredicate decides whether a just-completed step ends the run. When
// nil the runner uses its default: a natural stop signal with no further tool
// calls requested.
type FinishPredicate func(runCtx *core.RunContext, step *core.Step) bool

// StepCallback is invoked after every recorded step (handoff turns are not
// steps and do not trigger it).
type StepCallback func(step *core.Step)

// Options configures an Agent instance. Use functional options with New to
// override defaults; all fields are also applicable as Clone overrides.
type Options struct {
	// Description is surfaced to sibling agents in generated delegate tools.
	Description string
	// Instruction is the static or dynamic system prompt source.
	Instruction Instruction
	// Settings carries per-agent sampling parameters.
	Settings model.Settings
	// Tools the agent may call, keyed by tool name.
	Tools map[string]tool.Tool
	// Guardrails validate input and candidate output; order is significant.
	Guardrails []guardrail.Guardrail
	// OutputSchema, when non-nil, is the JSON schema the final answer must
	// parse and validate against.
	OutputSchema map[string]any
	// MaxSteps caps the recorded steps for this agent within one run
	// (0 = unlimited). Router turns use an implicit cap of one.
	MaxSteps int
	// Handoffs lists the agents this one may delegate to. One synthetic
	// delegate tool is generated per target at construction time.
	Handoffs []*Agent
	// OnStepFinish is called after each recorded step.
	OnStepFinish StepCallback
	// FinishWhen overrides the runner's default finish check.
	FinishWhen FinishPredicate
	// Model overrides the constructor's model handle; used by Clone.
	Model model.Model
}

// Agent is a named, immutable configuration binding instructions, a model
// handle, tools and optional delegation targets. Build one with New; the only
// construction-time mutation is the auto-generated delegate tool added per
// handoff target. Clone returns an independent copy.
//
// There is no ambient default model: every Agent carries its handle
// explicitly, injected by the composition root.
type Agent struct {
	name         string
	description  string
	model        model.Model
	instruction  Instruction
	settings     model.Settings
	tools        map[string]tool.Tool
	guardrails   []guardrail.Guardrail
	outputSchema map[string]any
	maxSteps     int
	handoffs     []*Agent
	onStepFinish StepCallback
	finishWhen   FinishPredicate
}

// New creates an Agent. A delegate tool named transfer_to_<target> is
// generated for every handoff target; its result carries only the target's
// name, never a live reference, keeping cyclic delegation graphs safe.
func New(name string, m model.Model, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Instruction: NewInstructionFromText("You are " + name + ", a helpful AI assistant."),
		Tools:       map[string]tool.Tool{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Model != nil {
		m = opts.Model
	}

	tools := make(map[string]tool.Tool, len(opts.Tools)+len(opts.Handoffs))
	maps.Copy(tools, opts.Tools)

	handoffs := make([]*Agent, len(opts.Handoffs))
	copy(handoffs, opts.Handoffs)

	for _, target := range handoffs {
		dt := tool.NewDelegateTool(target.Name(), target.Description())
		tools[dt.Name()] = dt
	}

	guardrails := make([]guardrail.Guardrail, len(opts.Guardrails))
	copy(guardrails, opts.Guardrails)

	return &Agent{
		name:         name,
		description:  opts.Description,
		model:        m,
		instruction:  opts.Instruction,
		settings:     opts.Settings,
		tools:        tools,
		guardrails:   guardrails,
		outputSchema: opts.OutputSchema,
		maxSteps:     opts.MaxSteps,
		handoffs:     handoffs,
		onStepFinish: opts.OnStepFinish,
		finishWhen:   opts.FinishWhen,
	}
}

// Name returns the agent's unique name within its run graph.
func (a *Agent) Name() string { return a.name }

// Description returns the short description surfaced to delegating agents.
func (a *Agent) Description() string { return a.description }

// Model returns the agent's model handle.
func (a *Agent) Model() model.Model { return a.model }

// Settings returns the per-agent sampling parameters.
func (a *Agent) Settings() model.Settings { return a.settings }

// Instructions produces the final system prompt by resolving static or
// dynamic instruction sources against the live run context.
func (a *Agent) Instructions(runCtx *core.RunContext) (string, error) {
	return a.instruction.Resolve(runCtx)
}

// Tools returns a copy of the agent's tool map (including generated delegate
// tools).
func (a *Agent) Tools() map[string]tool.Tool {
	out := make(map[string]tool.Tool, len(a.tools))
	maps.Copy(out, a.tools)
	return out
}

// Tool retrieves a specific tool by name.
func (a *Agent) Tool(name string) (tool.Tool, bool) {
	t, ok := a.tools[name]
	return t, ok
}

// Guardrails returns a copy of the agent's ordered guardrail list.
func (a *Agent) Guardrails() []guardrail.Guardrail {
	out := make([]guardrail.Guardrail, len(a.guardrails))
	copy(out, a.guardrails)
	return out
}

// OutputSchema returns the declared JSON schema for the final answer, or nil.
func (a *Agent) OutputSchema() map[string]any { return a.outputSchema }

// MaxSteps returns the per-run step cap for this agent (0 = unlimited).
func (a *Agent) MaxSteps() int { return a.maxSteps }

// Handoffs returns a copy of the agent's delegation target list.
func (a *Agent) Handoffs() []*Agent {
	out := make([]*Agent, len(a.handoffs))
	copy(out, a.handoffs)
	return out
}

// ResolveHandoff resolves a handoff target name strictly within this agent's
// own target list; delegation is scoped, never ambient. It returns nil when
// the name is not a declared target.
func (a *Agent) ResolveHandoff(name string) *Agent {
	for _, h := range a.handoffs {
		if h.name == name {
			return h
		}
	}
	return nil
}

// OnStepFinish returns the step-finish callback, or nil.
func (a *Agent) OnStepFinish() StepCallback { return a.onStepFinish }

// FinishWhen returns the custom finish predicate, or nil.
func (a *Agent) FinishWhen() FinishPredicate { return a.finishWhen }

// IsRouter reports whether every tool of the agent is a generated delegate
// tool (and there is at least one). The runner forces tool use and caps such
// turns at one step: a pure router is never expected to answer directly.
func (a *Agent) IsRouter() bool {
	if len(a.tools) == 0 {
		return false
	}
	for _, t := range a.tools {
		if _, ok := t.(tool.Delegate); !ok {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the agent with the given overrides
// merged over the current configuration. The clone shares no mutable state
// with its source; with no overrides it is behaviorally identical.
func (a *Agent) Clone(optFns ...func(o *Options)) *Agent {
	base := func(o *Options) {
		o.Description = a.description
		o.Instruction = a.instruction
		o.Settings = a.settings
		o.Tools = a.userTools()
		o.Guardrails = a.Guardrails()
		o.OutputSchema = maps.Clone(a.outputSchema)
		o.MaxSteps = a.maxSteps
		o.Handoffs = a.Handoffs()
		o.OnStepFinish = a.onStepFinish
		o.FinishWhen = a.finishWhen
	}

	return New(a.name, a.model, append([]func(o *Options){base}, optFns...)...)
}

// userTools returns the tool map minus generated delegate tools, which New
// regenerates from the handoff list.
func (a *Agent) userTools() map[string]tool.Tool {
	out := make(map[string]tool.Tool, len(a.tools))
	for name, t := range a.tools {
		if _, ok := t.(tool.Delegate); ok {
			continue
		}
		out[name] = t
	}
	return out
}
