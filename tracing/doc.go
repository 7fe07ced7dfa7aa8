// Package tracing provides lightweight run instrumentation. The runner
// opens spans for runs, agents, generations, tool calls and handoffs; a
// Tracer fans span lifecycle events out to Processors. Shipped processors
// cover console logging, in-memory recording for tests and an OpenTelemetry
// bridge. The zero-processor tracer is a no-op, so instrumentation is always
// on structurally and free when unused.
package tracing
