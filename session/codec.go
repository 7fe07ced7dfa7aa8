package session

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentrun/core"
)

// wireMessage is the storage representation of a core.Message. Parts carry a
// type discriminator so the heterogeneous slice survives a JSON round trip.
type wireMessage struct {
	Role    string     `json:"role"`
	Summary bool       `json:"summary,omitempty"`
	Parts   []wirePart `json:"parts"`
}

type wirePart struct {
	Type     string                 `json:"type"`
	Text     string                 `json:"text,omitempty"`
	Call     *core.FunctionCall     `json:"call,omitempty"`
	Response *core.FunctionResponse `json:"response,omitempty"`
}

const (
	wirePartText     = "text"
	wirePartCall     = "function_call"
	wirePartResponse = "function_response"
)

func encodeMessage(msg core.Message) ([]byte, error) {
	wm := wireMessage{Role: msg.Role, Summary: msg.Summary}
	for _, p := range msg.Parts {
		switch part := p.(type) {
		case core.TextPart:
			wm.Parts = append(wm.Parts, wirePart{Type: wirePartText, Text: part.Text})
		case core.FunctionCallPart:
			call := part.FunctionCall
			wm.Parts = append(wm.Parts, wirePart{Type: wirePartCall, Call: &call})
		case core.FunctionResponsePart:
			resp := part.FunctionResponse
			wm.Parts = append(wm.Parts, wirePart{Type: wirePartResponse, Response: &resp})
		default:
			return nil, fmt.Errorf("session: cannot encode part of type %T", p)
		}
	}
	return json.Marshal(wm)
}

func decodeMessage(data []byte) (core.Message, error) {
	var wm wireMessage
	if err := json.Unmarshal(data, &wm); err != nil {
		return core.Message{}, fmt.Errorf("session: decode message: %w", err)
	}
	msg := core.Message{Role: wm.Role, Summary: wm.Summary}
	for _, p := range wm.Parts {
		switch p.Type {
		case wirePartText:
			msg.Parts = append(msg.Parts, core.TextPart{Text: p.Text})
		case wirePartCall:
			if p.Call == nil {
				return core.Message{}, fmt.Errorf("session: %s part missing payload", p.Type)
			}
			msg.Parts = append(msg.Parts, core.FunctionCallPart{FunctionCall: *p.Call})
		case wirePartResponse:
			if p.Response == nil {
				return core.Message{}, fmt.Errorf("session: %s part missing payload", p.Type)
			}
			msg.Parts = append(msg.Parts, core.FunctionResponsePart{FunctionResponse: *p.Response})
		default:
			return core.Message{}, fmt.Errorf("session: unknown part type %q", p.Type)
		}
	}
	return msg, nil
}
