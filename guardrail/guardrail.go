// Package guardrail implements ordered input/output content validators that
// can abort a run. Guardrails are pure checks: they never mutate the
// transcript, and a failure is fatal to the run: the engine performs no
// internal retry.
package guardrail

import (
	"context"
	"fmt"
)

// Direction tags a guardrail as validating run input or candidate output.
type Direction string

const (
	// DirectionInput guardrails validate the latest user message before the
	// first model call of a run.
	DirectionInput Direction = "input"
	// DirectionOutput guardrails validate the candidate final answer before
	// it is returned to the caller.
	DirectionOutput Direction = "output"
)

// Result is the outcome of one guardrail check. Message explains a rejection
// to the caller; it is ignored when Allowed is true.
type Result struct {
	Allowed bool
	Message string
}

// Allow is a convenience Result for passing checks.
func Allow() Result { return Result{Allowed: true} }

// Deny is a convenience Result for failing checks.
func Deny(message string) Result { return Result{Allowed: false, Message: message} }

// CheckFunc validates content and reports pass/fail. Returning an error (as
// opposed to a Deny result) signals the check itself broke; both are fatal to
// the run.
type CheckFunc func(ctx context.Context, content string) (Result, error)

// Guardrail is a named, direction-tagged content validator.
type Guardrail struct {
	Name      string
	Direction Direction
	Check     CheckFunc
}

// NewInput constructs an input guardrail.
func NewInput(name string, check CheckFunc) Guardrail {
	return Guardrail{Name: name, Direction: DirectionInput, Check: check}
}

// NewOutput constructs an output guardrail.
func NewOutput(name string, check CheckFunc) Guardrail {
	return Guardrail{Name: name, Direction: DirectionOutput, Check: check}
}

// Error reports a guardrail rejection. It carries the guardrail name so
// callers can tell which validator tripped.
type Error struct {
	Guardrail string
	Direction Direction
	Message   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("guardrail %q (%s) rejected content: %s", e.Guardrail, e.Direction, e.Message)
}

// RunInput runs the input-tagged guardrails from gs against content in
// declared order. The first failure returns a *Error and short-circuits the
// remaining checks.
func RunInput(ctx context.Context, gs []Guardrail, content string) error {
	return run(ctx, gs, DirectionInput, content)
}

// RunOutput runs the output-tagged guardrails from gs against the candidate
// final answer in declared order, first failure wins.
func RunOutput(ctx context.Context, gs []Guardrail, content string) error {
	return run(ctx, gs, DirectionOutput, content)
}

func run(ctx context.Context, gs []Guardrail, dir Direction, content string) error {
	for _, g := range gs {
		if g.Direction != dir || g.Check == nil {
			continue
		}

		res, err := g.Check(ctx, content)
		if err != nil {
			return fmt.Errorf("guardrail %q check failed: %w", g.Name, err)
		}

		if !res.Allowed {
			return &Error{Guardrail: g.Name, Direction: dir, Message: res.Message}
		}
	}

	return nil
}
