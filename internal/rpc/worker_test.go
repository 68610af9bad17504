package rpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructConversionKeepsShape(t *testing.T) {
	in := map[string]any{
		"requestId": "r1",
		"job": map[string]any{
			"type":    "generateImage",
			"payload": map[string]any{"prompt": "fox", "steps": 30, "tags": []any{"a", nil, true}},
		},
	}

	s, err := ToStruct(in)
	require.NoError(t, err)
	assert.Equal(t, "r1", s.Fields["requestId"].GetStringValue())

	var out map[string]any
	require.NoError(t, FromStruct(s, &out))

	job := out["job"].(map[string]any)
	payload := job["payload"].(map[string]any)
	assert.Equal(t, "fox", payload["prompt"])
	assert.Equal(t, json.Number("30"), payload["steps"])
	assert.Equal(t, []any{"a", nil, true}, payload["tags"])
}

func TestToStructRejectsNonObjects(t *testing.T) {
	_, err := ToStruct([]string{"not", "an", "object"})
	assert.Error(t, err)
}
