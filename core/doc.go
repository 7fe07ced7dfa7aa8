// Package core provides the foundational domain types and execution contexts
// used by AgentRun. It defines the core abstractions for:
//
//   - Messages (role-based content made of ordered parts)
//   - Usage (additive token / request accounting)
//   - Steps (one model turn's record: text, tool calls, results)
//   - RunContext / ToolContext (scoped execution & tool sandboxing)
//
// The package intentionally keeps implementation concerns (session
// persistence, the turn loop, model adapters, tracing) out of scope, exposing
// small leaf types so higher packages can depend on it without cycles.
package core
