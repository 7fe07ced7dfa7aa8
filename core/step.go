package core

// Step records one completed model turn: the producing agent, any tool calls
// with their paired results, the assistant text and the provider finish
// reason. Steps are appended to the run's item log in turn order; a turn that
// only performed a handoff is not recorded as a step.
type Step struct {
	Turn         int                `json:"turn"`
	Agent        string             `json:"agent"`
	Text         string             `json:"text,omitempty"`
	Calls        []FunctionCall     `json:"calls,omitempty"`
	Results      []FunctionResponse `json:"results,omitempty"`
	FinishReason string             `json:"finish_reason,omitempty"`
}

// Result returns the response paired with the given call id, or nil when the
// call has no recorded result. Pairing is by id, never by position.
func (s *Step) Result(callID string) *FunctionResponse {
	for i := range s.Results {
		if s.Results[i].ID == callID {
			return &s.Results[i]
		}
	}
	return nil
}
