package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON_FullReply(t *testing.T) {
	raw, err := ExtractJSON(`{"shapes": []}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"shapes": []}`, string(raw))
}

func TestExtractJSON_FencedCodeBlock(t *testing.T) {
	reply := "Here is the plan:\n```json\n{\"shapes\": [1,2]}\n```\nDone."
	raw, err := ExtractJSON(reply)
	require.NoError(t, err)
	assert.JSONEq(t, `{"shapes": [1,2]}`, string(raw))
}

func TestExtractJSON_PlainFence(t *testing.T) {
	reply := "```\n{\"a\": 1}\n```"
	raw, err := ExtractJSON(reply)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1}`, string(raw))
}

func TestExtractJSON_BalancedBraceSubstring(t *testing.T) {
	reply := `Sure, the plan is {"materials": [{"name": "mat1"}]} and nothing else.`
	raw, err := ExtractJSON(reply)
	require.NoError(t, err)
	assert.JSONEq(t, `{"materials": [{"name": "mat1"}]}`, string(raw))
}

func TestExtractJSON_BraceInsideStringDoesNotBreakDepthTracking(t *testing.T) {
	reply := `{"name": "a { b } c", "value": 1}`
	raw, err := ExtractJSON(reply)
	require.NoError(t, err)
	assert.JSONEq(t, reply, string(raw))
}

func TestExtractJSON_NoJSONReturnsError(t *testing.T) {
	_, err := ExtractJSON("sorry, I can't help with that")
	assert.Error(t, err)
}

func TestExtractJSON_EmptyReturnsError(t *testing.T) {
	_, err := ExtractJSON("   ")
	assert.Error(t, err)
}
