package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON_FencedBlock(t *testing.T) {
	raw := "Here is my answer:\n```json\n{\"action\": \"buy\", \"confidence\": 80}\n```\nHope that helps."
	got, ok := extractJSON(raw)
	require.True(t, ok)
	assert.JSONEq(t, `{"action": "buy", "confidence": 80}`, got)
}

func TestExtractJSON_BraceCounterFallback(t *testing.T) {
	raw := `I think {"action": "sell", "note": "watch for {support} levels"} is right.`
	got, ok := extractJSON(raw)
	require.True(t, ok)
	assert.JSONEq(t, `{"action": "sell", "note": "watch for {support} levels"}`, got)
}

func TestExtractJSON_RespectsEscapedQuotesInsideStrings(t *testing.T) {
	raw := `{"reasoning": "the model said \"buy\" with {nested} braces"}`
	got, ok := extractJSON(raw)
	require.True(t, ok)
	assert.Equal(t, raw, got)
}

func TestExtractJSON_NoJSONFails(t *testing.T) {
	_, ok := extractJSON("I recommend holding for now, no structured output here.")
	assert.False(t, ok)
}
