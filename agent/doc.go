// Package agent defines the Agent descriptor: a named, immutable binding of
// instructions, a model handle, tools, guardrails and optional delegation
// targets. The package focuses on three concerns:
//
//  1. Construction (New) including auto-generation of delegate tools for
//     handoff targets
//  2. Instruction resolution (static text, dynamic providers, templates)
//  3. Independent copies via Clone with override merging
//
// Design principles:
//   - No hidden global state: the model handle is injected explicitly
//   - Handoff markers carry target names, never live references, so cyclic
//     delegation graphs (A→B→A) create no ownership cycles
//   - Execution concerns (the turn loop, spans, sessions) live in the runner
//     package to avoid cyclic deps
package agent
