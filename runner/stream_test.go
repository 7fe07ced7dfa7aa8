package runner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrun/agent"
	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/model"
	"github.com/hupe1980/agentrun/tool"
	"github.com/hupe1980/agentrun/tracing"
)

func TestRunStream_DeltasArriveAndResultMatches(t *testing.T) {
	m := model.NewMockModel(model.MockTurn{Text: "streamed answer"})
	a := agent.New("Assistant", m)

	stream := New(a).RunStream(context.Background(), []core.Message{core.NewUserMessage("hi")})

	var sb strings.Builder
	for delta := range stream.Text() {
		sb.WriteString(delta)
	}

	result, err := stream.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "streamed answer", result.FinalOutput)
	assert.Equal(t, "streamed answer", sb.String(), "concatenated deltas equal the final text")
}

func TestRunStream_EventsIncludeToolAndStep(t *testing.T) {
	m := model.NewMockModel(
		model.MockTurn{ToolCalls: []core.FunctionCall{{ID: "c1", Name: "echo", Arguments: `{"text":"ping"}`}}},
		model.MockTurn{Text: "done"},
	)
	a := agent.New("Assistant", m, func(o *agent.Options) {
		o.Tools = map[string]tool.Tool{"echo": echoTool(t)}
	})

	stream := New(a).RunStream(context.Background(), []core.Message{core.NewUserMessage("go")})

	var toolResults, steps int
	for ev := range stream.Events() {
		switch ev.Type {
		case StreamEventToolResult:
			toolResults++
			assert.Equal(t, "c1", ev.ToolResult.ID)
		case StreamEventStep:
			steps++
		}
	}

	_, err := stream.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, toolResults)
	assert.Equal(t, 2, steps)
}

// gatedModel streams its text like a real provider, then holds the terminal
// chunk until release is closed so a test can act while the turn is in
// flight.
type gatedModel struct {
	text    string
	release chan struct{}
}

func (g *gatedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if req.Stream {
			for _, r := range g.text {
				respCh <- model.Response{Partial: true, Delta: string(r)}
			}
		}
		<-g.release
		respCh <- model.Response{
			Message:      core.NewAssistantMessage(g.text),
			FinishReason: "stop",
		}
	}()

	return respCh, errCh
}

func (g *gatedModel) Info() model.Info {
	return model.Info{Name: "gated", Provider: "mock", SupportsTools: true}
}

func TestRunStream_CancelYieldsPartialResultNotError(t *testing.T) {
	const fullText = "a very long answer that keeps going"
	gate := make(chan struct{})
	a := agent.New("Assistant", &gatedModel{text: fullText, release: gate})

	stream := New(a, func(o *Options) { o.StreamBufferSize = 1 }).
		RunStream(context.Background(), []core.Message{core.NewUserMessage("hi")})

	// Read a few deltas, cancel cooperatively, then let the turn finish.
	var received strings.Builder
	for i := 0; i < 3; i++ {
		delta, ok := <-stream.Text()
		if !ok {
			break
		}
		received.WriteString(delta)
	}
	stream.Cancel()
	close(gate)
	for range stream.Text() {
		// Drain whatever was already buffered before the cancel took hold.
	}

	result, err := stream.Wait(context.Background())
	require.NoError(t, err, "cancellation is not a provider failure")
	require.NotNil(t, result)
	assert.True(t, strings.HasPrefix(fullText, result.FinalOutput))
	assert.NotEmpty(t, result.FinalOutput)
	assert.True(t, strings.HasPrefix(result.FinalOutput, received.String()),
		"delivered deltas are a prefix of the partial result")
	assert.Equal(t, "cancelled", result.Metadata.FinishReason)
}

func TestRunStream_WaitResolvesWithoutTextReader(t *testing.T) {
	long := strings.Repeat("streaming output well past the delta buffer ", 16)
	m := model.NewMockModel(model.MockTurn{Text: long})
	a := agent.New("Assistant", m)

	stream := New(a, func(o *Options) { o.StreamBufferSize = 4 }).
		RunStream(context.Background(), []core.Message{core.NewUserMessage("hi")})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := stream.Wait(ctx)
	require.NoError(t, err, "an unread Text channel must not stall the run")
	require.NotNil(t, result)
	assert.Equal(t, long, result.FinalOutput)
}

func TestRunStream_DroppedEventsCounted(t *testing.T) {
	m := model.NewMockModel(model.MockTurn{Text: "a response long enough to overflow the event buffer"})
	a := agent.New("Assistant", m)

	stream := New(a, func(o *Options) { o.StreamBufferSize = 1 }).
		RunStream(context.Background(), []core.Message{core.NewUserMessage("hi")})

	result, err := stream.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a response long enough to overflow the event buffer", result.FinalOutput)
	assert.Greater(t, stream.DroppedEvents(), int64(0), "an unread event stream reports its losses")
}

func TestRunStream_HandoffEventEmitted(t *testing.T) {
	math := agent.New("Math", model.NewMockModel(model.MockTurn{Text: "4"}))
	triage := agent.New("Triage", model.NewMockModel(model.MockTurn{
		ToolCalls: []core.FunctionCall{{ID: "h1", Name: "transfer_to_math", Arguments: `{"reason":"math"}`}},
	}), func(o *agent.Options) {
		o.Handoffs = []*agent.Agent{math}
	})

	stream := New(triage).RunStream(context.Background(), []core.Message{core.NewUserMessage("2+2")})

	var sawHandoff bool
	for ev := range stream.Events() {
		if ev.Type == StreamEventHandoff {
			sawHandoff = true
			assert.Equal(t, "Triage", ev.FromAgent)
			assert.Equal(t, "Math", ev.ToAgent)
		}
	}

	result, err := stream.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, sawHandoff)
	assert.Equal(t, "4", result.FinalOutput)
}

func TestRunStream_SpansBalanceWhenCancelled(t *testing.T) {
	rec := tracing.NewRecorder()
	m := model.NewMockModel(model.MockTurn{Text: "some streaming text to cancel midway"})
	a := agent.New("Assistant", m)

	stream := New(a, func(o *Options) {
		o.Tracer = tracing.NewTracer(rec)
		o.StreamBufferSize = 1
	}).RunStream(context.Background(), []core.Message{core.NewUserMessage("hi")})

	<-stream.Text()
	stream.Cancel()
	for range stream.Text() {
	}

	_, err := stream.Wait(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rec.Open())
}

func TestRunStream_WaitHonorsContext(t *testing.T) {
	m := model.NewMockModel(model.MockTurn{Text: "answer"})
	a := agent.New("Assistant", m)

	stream := New(a).RunStream(context.Background(), []core.Message{core.NewUserMessage("hi")})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result, err := stream.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "answer", result.FinalOutput)
}
