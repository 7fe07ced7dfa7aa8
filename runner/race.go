package runner

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentrun/agent"
	"github.com/hupe1980/agentrun/core"
)

// RaceResult is the outcome of racing multiple agents on the same input. It
// embeds the winner's RunResult, so reported usage is the winner's only.
type RaceResult struct {
	*RunResult

	// WinningAgent names the first agent to succeed.
	WinningAgent string `json:"winning_agent"`

	// Participants lists every raced agent name in submission order.
	Participants []string `json:"participants"`

	// Winners lists the agents that produced the accepted result (the
	// winning agent; losing branches are not awaited once a winner exists).
	Winners []string `json:"winners"`
}

// RaceAgents runs every agent concurrently and independently on the same
// input and returns the first successful result. A single agent bypasses the
// goroutine machinery but is still reported as the winner. When every branch
// fails, a *RaceError enumerates the individual failures.
//
// Losing branches are not cancelled, merely ignored: side effects of tool
// calls they already issued are not suppressed.
func RaceAgents(ctx context.Context, agents []*agent.Agent, input []core.Message, optFns ...func(o *Options)) (*RaceResult, error) {
	if len(agents) == 0 {
		return nil, fmt.Errorf("race requires at least one agent")
	}

	participants := make([]string, len(agents))
	for i, a := range agents {
		participants[i] = a.Name()
	}

	if len(agents) == 1 {
		result, err := New(agents[0], optFns...).Run(ctx, input)
		if err != nil {
			return nil, &RaceError{Failures: map[string]error{agents[0].Name(): err}}
		}
		return &RaceResult{
			RunResult:    result,
			WinningAgent: agents[0].Name(),
			Participants: participants,
			Winners:      []string{agents[0].Name()},
		}, nil
	}

	type branch struct {
		name   string
		result *RunResult
		err    error
	}

	// Buffered to branch count so losers finishing late never block.
	outcomes := make(chan branch, len(agents))
	for _, a := range agents {
		go func(a *agent.Agent) {
			result, err := New(a, optFns...).Run(ctx, input)
			outcomes <- branch{name: a.Name(), result: result, err: err}
		}(a)
	}

	failures := make(map[string]error, len(agents))
	for range agents {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case b := <-outcomes:
			if b.err != nil {
				failures[b.name] = b.err
				continue
			}
			return &RaceResult{
				RunResult:    b.result,
				WinningAgent: b.name,
				Participants: participants,
				Winners:      []string{b.name},
			}, nil
		}
	}

	return nil, &RaceError{Failures: failures}
}
