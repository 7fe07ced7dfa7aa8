// Package runner contains the turn-loop engine that drives agent execution:
// it merges session history with new input, enforces guardrails, calls the
// model, executes tools, resolves handoffs between agents, evaluates finish
// conditions and assembles the final result with usage metadata.
//
// Run executes buffered, RunStream exposes live deltas with cooperative
// cancellation, and RaceAgents runs several agents concurrently keeping the
// first success. Every opened trace span closes exactly once on every exit
// path, including failures.
package runner
