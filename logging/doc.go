// Package logging defines the minimal Logger contract consumed across
// AgentRun plus ready-made adapters (slog, zerolog, no-op). Components accept
// a Logger via options and default to NoOpLogger so instrumentation is never
// load-bearing.
package logging
