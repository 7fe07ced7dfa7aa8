package core

import (
	"strings"

	"github.com/google/uuid"
)

// Message is the primary unit of conversation state. It holds a role plus an
// ordered sequence of heterogeneous parts and is treated as immutable after
// construction; transcripts are append-only sequences of Messages.
//
// Summary marks synthetic messages produced by session summarization so the
// store can exclude them when counting "real" history.
type Message struct {
	Role    string `json:"role"`              // user, assistant, tool, system
	Parts   []Part `json:"parts"`             // Ordered heterogeneous parts
	Summary bool   `json:"summary,omitempty"` // Set on condensed history messages
}

// NewUserMessage creates a user-authored text message.
func NewUserMessage(text string) Message {
	return Message{Role: "user", Parts: []Part{TextPart{Text: text}}}
}

// NewAssistantMessage creates an assistant text message.
func NewAssistantMessage(text string) Message {
	return Message{Role: "assistant", Parts: []Part{TextPart{Text: text}}}
}

// NewSystemMessage creates a system text message.
func NewSystemMessage(text string) Message {
	return Message{Role: "system", Parts: []Part{TextPart{Text: text}}}
}

// NewSummaryMessage creates the synthetic system message a summarizing session
// store writes in place of condensed history.
func NewSummaryMessage(text string) Message {
	return Message{Role: "system", Parts: []Part{TextPart{Text: text}}, Summary: true}
}

// NewToolCallMessage creates an assistant message carrying tool invocation requests.
func NewToolCallMessage(calls ...FunctionCall) Message {
	parts := make([]Part, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, FunctionCallPart{FunctionCall: c})
	}
	return Message{Role: "assistant", Parts: parts}
}

// NewToolResultMessage records the completion result (or error) of a tool
// invocation. If err is non-nil its message is copied into the Error field.
func NewToolResultMessage(id, name string, result any, err error) Message {
	fr := FunctionResponse{ID: id, Name: name, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	return Message{Role: "tool", Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}
}

// Text concatenates all text parts preserving order.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// FunctionCalls returns any FunctionCall parts contained within the message
// preserving their original order.
func (m Message) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range m.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// FunctionResponses returns any FunctionResponse parts contained within the
// message preserving their original order.
func (m Message) FunctionResponses() []FunctionResponse {
	var responses []FunctionResponse
	for _, p := range m.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// NewID generates a new unique identifier for runs, spans and tool calls.
func NewID() string { return uuid.NewString() }
