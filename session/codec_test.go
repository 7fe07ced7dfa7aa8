package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrun/core"
)

func TestCodec_MixedPartsSurviveStorage(t *testing.T) {
	msg := core.Message{
		Role: "assistant",
		Parts: []core.Part{
			core.TextPart{Text: "checking the weather"},
			core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID: "call-1", Name: "get_weather", Arguments: `{"city":"Berlin"}`,
			}},
		},
	}

	data, err := encodeMessage(msg)
	require.NoError(t, err)

	decoded, err := decodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, "assistant", decoded.Role)
	assert.Equal(t, "checking the weather", decoded.Text())
	calls := decoded.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call-1", calls[0].ID)
	assert.Equal(t, "get_weather", calls[0].Name)
}

func TestCodec_SummaryFlagPreserved(t *testing.T) {
	data, err := encodeMessage(core.NewSummaryMessage("earlier: user asked about refunds"))
	require.NoError(t, err)

	decoded, err := decodeMessage(data)
	require.NoError(t, err)
	assert.True(t, decoded.Summary)
	assert.Equal(t, "system", decoded.Role)
}

func TestCodec_RejectsUnknownPartType(t *testing.T) {
	_, err := decodeMessage([]byte(`{"role":"user","parts":[{"type":"audio"}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown part type")
}
