package runner

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// MaxTurnsError reports that the turn counter reached the configured ceiling
// before the run produced a result.
type MaxTurnsError struct {
	Limit int
}

func (e *MaxTurnsError) Error() string {
	return fmt.Sprintf("max turns exceeded: run did not finish within %d turns", e.Limit)
}

// OutputSchemaError reports that the final answer failed validation against
// the agent's declared output schema. Parse failure is a reported error,
// never a silent pass-through.
type OutputSchemaError struct {
	Agent  string
	Issues []string
}

func (e *OutputSchemaError) Error() string {
	return fmt.Sprintf("output of agent %q does not match its declared schema: %s",
		e.Agent, strings.Join(e.Issues, "; "))
}

// ApprovalTimeoutError reports that the human-in-the-loop approval window
// for a tool call elapsed without a decision.
type ApprovalTimeoutError struct {
	Tool    string
	Timeout time.Duration
}

func (e *ApprovalTimeoutError) Error() string {
	return fmt.Sprintf("approval for tool %q timed out after %s", e.Tool, e.Timeout)
}

// RaceError aggregates the individual failures of every branch when all
// racing agents fail.
type RaceError struct {
	Failures map[string]error
}

func (e *RaceError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for name := range e.Failures {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("all %d racing agents failed:", len(e.Failures)))
	for _, name := range names {
		sb.WriteString(fmt.Sprintf(" [%s: %v]", name, e.Failures[name]))
	}
	return sb.String()
}
