package model

import (
	"context"
	"sync"

	"github.com/hupe1980/agentrun/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Settings carries per-agent sampling parameters. Nil pointer fields mean
// "provider default".
type Settings struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	MaxTokens   int64    `json:"max_tokens,omitempty"`
}

// Request captures the normalized model input produced by the runner for one
// turn: resolved instructions, the transcript so far, tool definitions and
// sampling settings. ForceToolUse requires the model to call a tool this turn
// (used for pure router agents).
type Request struct {
	Instructions string           `json:"instructions"`
	Messages     []core.Message   `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Settings     Settings         `json:"settings"`
	ForceToolUse bool             `json:"force_tool_use,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model. Partial chunks
// carry the incremental Delta text; the terminal chunk carries the assembled
// assistant Message (text and/or tool call parts), the finish reason and
// usage counters.
type Response struct {
	Partial      bool         `json:"partial"`
	Delta        string       `json:"delta,omitempty"`
	Message      core.Message `json:"message"`
	FinishReason string       `json:"finish_reason,omitempty"` // "stop", "length", "tool_calls", ...
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", ...
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface the runner requires to drive generation.
// Any provider satisfying this shape is interchangeable. The response channel
// is closed once the terminal chunk has been delivered; the error channel
// carries at most one error.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockTurn scripts one Generate call of a MockModel.
type MockTurn struct {
	Text         string
	ToolCalls    []core.FunctionCall
	FinishReason string
	Usage        TokenUsage
	Err          error
}

// MockModel is a lightweight in-memory Model useful for tests & examples. It
// replays scripted turns in order and records every request it receives.
type MockModel struct {
	mu       sync.Mutex
	info     Info
	turns    []MockTurn
	requests []Request
}

// NewMockModel constructs a MockModel replaying the given turns. Once the
// script is exhausted it answers with a plain "stop" echo of the last user
// message, so open-ended tests don't need exhaustive scripts.
func NewMockModel(turns ...MockTurn) *MockModel {
	return &MockModel{
		info:  Info{Name: "mock", Provider: "mock", SupportsTools: true},
		turns: turns,
	}
}

// AddTurn appends a scripted turn.
func (m *MockModel) AddTurn(turn MockTurn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn)
}

// Requests returns a copy of every Request passed to Generate, in call order.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount reports how many times Generate has been invoked.
func (m *MockModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Generate implements Model; replays the next scripted turn, emitting rune
// deltas first when streaming is requested.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var turn MockTurn
	if len(m.turns) > 0 {
		turn = m.turns[0]
		m.turns = m.turns[1:]
	} else {
		turn = MockTurn{Text: "Mock response to: " + lastUserText(req.Messages), FinishReason: "stop"}
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if turn.Err != nil {
			errCh <- turn.Err
			return
		}

		if req.Stream {
			for _, r := range turn.Text {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Delta: string(r)}:
				}
			}
		}

		parts := make([]core.Part, 0, len(turn.ToolCalls)+1)
		if turn.Text != "" {
			parts = append(parts, core.TextPart{Text: turn.Text})
		}
		for _, call := range turn.ToolCalls {
			parts = append(parts, core.FunctionCallPart{FunctionCall: call})
		}

		finish := turn.FinishReason
		if finish == "" {
			finish = "stop"
			if len(turn.ToolCalls) > 0 {
				finish = "tool_calls"
			}
		}

		usage := turn.Usage
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{
			Message:      core.Message{Role: "assistant", Parts: parts},
			FinishReason: finish,
			Usage:        &usage,
		}:
		}
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

func lastUserText(messages []core.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Text()
		}
	}
	return ""
}
