package model

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentrun/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, respCh <-chan Response, errCh <-chan error) ([]Response, error) {
	t.Helper()
	var responses []Response
	for r := range respCh {
		responses = append(responses, r)
	}
	return responses, <-errCh
}

func TestMockModelReplaysTurnsInOrder(t *testing.T) {
	m := NewMockModel(
		MockTurn{Text: "first", Usage: TokenUsage{PromptTokens: 3, CompletionTokens: 1, TotalTokens: 4}},
		MockTurn{ToolCalls: []core.FunctionCall{{ID: "c1", Name: "lookup"}}},
	)

	respCh, errCh := m.Generate(context.Background(), Request{})
	responses, err := collect(t, respCh, errCh)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "first", responses[0].Message.Text())
	assert.Equal(t, "stop", responses[0].FinishReason)
	assert.Equal(t, 4, responses[0].Usage.TotalTokens)

	respCh, errCh = m.Generate(context.Background(), Request{})
	responses, err = collect(t, respCh, errCh)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	calls := responses[0].Message.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "lookup", calls[0].Name)
	// Tool call turns default to the tool_calls finish reason.
	assert.Equal(t, "tool_calls", responses[0].FinishReason)

	assert.Equal(t, 2, m.CallCount())
}

func TestMockModelFallbackEcho(t *testing.T) {
	m := NewMockModel() // no script

	req := Request{Messages: []core.Message{core.NewUserMessage("ping")}}
	respCh, errCh := m.Generate(context.Background(), req)
	responses, err := collect(t, respCh, errCh)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Message.Text(), "ping")
	assert.Equal(t, "stop", responses[0].FinishReason)
}

func TestMockModelStreamingDeltas(t *testing.T) {
	m := NewMockModel(MockTurn{Text: "abc"})

	respCh, errCh := m.Generate(context.Background(), Request{Stream: true})
	responses, err := collect(t, respCh, errCh)
	require.NoError(t, err)
	require.Len(t, responses, 4) // 3 rune deltas plus the terminal chunk

	var text string
	for _, r := range responses[:3] {
		assert.True(t, r.Partial)
		text += r.Delta
	}
	assert.Equal(t, "abc", text)

	final := responses[3]
	assert.False(t, final.Partial)
	assert.Equal(t, "abc", final.Message.Text())
}

func TestMockModelScriptedError(t *testing.T) {
	scripted := errors.New("provider down")
	m := NewMockModel(MockTurn{Err: scripted})

	respCh, errCh := m.Generate(context.Background(), Request{})
	responses, err := collect(t, respCh, errCh)
	assert.Empty(t, responses)
	assert.ErrorIs(t, err, scripted)
}

func TestMockModelRecordsRequests(t *testing.T) {
	m := NewMockModel(MockTurn{Text: "ok"})

	req := Request{
		Instructions: "be terse",
		ForceToolUse: true,
		Tools:        []ToolDefinition{{Type: "function", Function: FunctionDefinition{Name: "f"}}},
	}
	respCh, errCh := m.Generate(context.Background(), req)
	_, _ = collect(t, respCh, errCh)

	recorded := m.Requests()
	require.Len(t, recorded, 1)
	assert.Equal(t, "be terse", recorded[0].Instructions)
	assert.True(t, recorded[0].ForceToolUse)
	require.Len(t, recorded[0].Tools, 1)
	assert.Equal(t, "f", recorded[0].Tools[0].Function.Name)
}
