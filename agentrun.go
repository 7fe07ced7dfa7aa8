// Package agentrun provides a high-level façade over the runner engine and
// its service abstractions (sessions, guardrails, tools, tracing) enabling
// rapid construction of multi-agent systems. Most applications interact with
// this package by:
//  1. Building one or more agents via agent.New (model handle, tools,
//     guardrails, handoff targets)
//  2. Executing them with Run, RunStream or RaceAgents
//
// The façade delegates orchestration to runner.Runner while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply a durable session
// store, a structured logger and a tracing processor.
package agentrun

import (
	"context"

	"github.com/hupe1980/agentrun/agent"
	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/runner"
)

// Run executes the agent on a single text input until it finishes and
// returns the final result. It is shorthand for constructing a runner.Runner
// and calling Run with one user message.
func Run(ctx context.Context, a *agent.Agent, input string, optFns ...func(o *runner.Options)) (*runner.RunResult, error) {
	return runner.New(a, optFns...).Run(ctx, []core.Message{core.NewUserMessage(input)})
}

// RunMessages executes the agent on a prepared message slice, for callers
// that need multi-part or multi-message input.
func RunMessages(ctx context.Context, a *agent.Agent, input []core.Message, optFns ...func(o *runner.Options)) (*runner.RunResult, error) {
	return runner.New(a, optFns...).Run(ctx, input)
}

// RunStream executes the agent like Run but returns a live stream of text
// deltas and events. Use the stream's Wait for the final result and Cancel
// for cooperative cancellation.
func RunStream(ctx context.Context, a *agent.Agent, input string, optFns ...func(o *runner.Options)) *runner.StreamResult {
	return runner.New(a, optFns...).RunStream(ctx, []core.Message{core.NewUserMessage(input)})
}

// RaceAgents runs every agent concurrently on the same input and returns the
// first successful result; see runner.RaceAgents.
func RaceAgents(ctx context.Context, agents []*agent.Agent, input string, optFns ...func(o *runner.Options)) (*runner.RaceResult, error) {
	return runner.RaceAgents(ctx, agents, []core.Message{core.NewUserMessage(input)}, optFns...)
}
