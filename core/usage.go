package core

// Usage captures additive request / token counters for a run or a per-agent
// bucket. Counters only ever grow; Add merges another Usage into the receiver.
type Usage struct {
	Requests     int `json:"requests"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add merges the counters of other into u.
func (u *Usage) Add(other Usage) {
	u.Requests += other.Requests
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// AddTokens records one model request's token counts.
func (u *Usage) AddTokens(input, output int) {
	u.Requests++
	u.InputTokens += input
	u.OutputTokens += output
	u.TotalTokens += input + output
}
