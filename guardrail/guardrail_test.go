package guardrail

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInputOrderAndShortCircuit(t *testing.T) {
	var order []string

	gs := []Guardrail{
		NewInput("first", func(ctx context.Context, content string) (Result, error) {
			order = append(order, "first")
			return Allow(), nil
		}),
		NewInput("second", func(ctx context.Context, content string) (Result, error) {
			order = append(order, "second")
			return Deny("blocked"), nil
		}),
		NewInput("third", func(ctx context.Context, content string) (Result, error) {
			order = append(order, "third")
			return Allow(), nil
		}),
	}

	err := RunInput(context.Background(), gs, "hello")
	require.Error(t, err)
	assert.Equal(t, []string{"first", "second"}, order)

	var gErr *Error
	require.ErrorAs(t, err, &gErr)
	assert.Equal(t, "second", gErr.Guardrail)
	assert.Equal(t, DirectionInput, gErr.Direction)
	assert.Equal(t, "blocked", gErr.Message)
}

func TestRunFiltersByDirection(t *testing.T) {
	inputRan, outputRan := false, false

	gs := []Guardrail{
		NewInput("in", func(ctx context.Context, content string) (Result, error) {
			inputRan = true
			return Allow(), nil
		}),
		NewOutput("out", func(ctx context.Context, content string) (Result, error) {
			outputRan = true
			return Allow(), nil
		}),
	}

	require.NoError(t, RunInput(context.Background(), gs, "x"))
	assert.True(t, inputRan)
	assert.False(t, outputRan)

	require.NoError(t, RunOutput(context.Background(), gs, "x"))
	assert.True(t, outputRan)
}

func TestCheckErrorIsFatal(t *testing.T) {
	broken := errors.New("lookup service down")
	gs := []Guardrail{
		NewOutput("pii", func(ctx context.Context, content string) (Result, error) {
			return Result{}, broken
		}),
	}

	err := RunOutput(context.Background(), gs, "answer")
	require.Error(t, err)
	assert.ErrorIs(t, err, broken)

	// A broken check is not a rejection.
	var gErr *Error
	assert.False(t, errors.As(err, &gErr))
}

func TestNilCheckSkipped(t *testing.T) {
	gs := []Guardrail{{Name: "noop", Direction: DirectionInput}}
	assert.NoError(t, RunInput(context.Background(), gs, "x"))
}

func TestErrorString(t *testing.T) {
	err := &Error{Guardrail: "profanity", Direction: DirectionOutput, Message: "contains banned term"}
	assert.Contains(t, err.Error(), `"profanity"`)
	assert.Contains(t, err.Error(), "output")
	assert.Contains(t, err.Error(), "contains banned term")
}
