package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleArgs struct {
	A string  `json:"a" description:"Field A"`
	B *int    `json:"b" description:"Optional pointer field"`
	C int     `json:"c,omitempty" description:"Omit empty field"`
	D float64 `json:"-"`
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(sampleArgs{})
	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	assert.NotContains(t, props, "-")
	assert.NotContains(t, props, "D")

	a, _ := props["a"].(map[string]any)
	assert.Equal(t, "string", a["type"])
	assert.Equal(t, "Field A", a["description"])

	// Pointer and omitempty fields are optional.
	req, _ := schema["required"].([]string)
	assert.ElementsMatch(t, []string{"a"}, req)
}

func TestCreateSchemaNonStruct(t *testing.T) {
	schema := CreateSchema("not a struct")
	assert.Equal(t, "object", schema["type"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Empty(t, props)
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		"required": []string{"x"},
	}

	assert.NoError(t, ValidateParameters(map[string]any{"x": 5}, schema))

	err := ValidateParameters(map[string]any{}, schema)
	require.Error(t, err)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "x", vErr.Field)

	err = ValidateParameters(map[string]any{"x": "not-int"}, schema)
	require.Error(t, err)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "x", vErr.Field)
	assert.Equal(t, "not-int", vErr.Value)
}

func TestValidateParametersAdditionalConstraints(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mode": map[string]any{"type": "string", "enum": []string{"fast", "slow"}},
		},
	}

	assert.NoError(t, ValidateParameters(map[string]any{"mode": "fast"}, schema))
	assert.Error(t, ValidateParameters(map[string]any{"mode": "warp"}, schema))
}
