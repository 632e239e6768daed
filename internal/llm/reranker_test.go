package llm

import (
	"context"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRerankerParsesBareScore(t *testing.T) {
	mock := &MockLLM{Response: "0.83"}
	r := NewSimpleLLMReranker(mock)

	score, err := r.Score(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.InDelta(t, 0.83, score, 1e-9)
}

func TestRerankerNormalizesPercentScale(t *testing.T) {
	mock := &MockLLM{Response: "Similarity: 85"}
	r := NewSimpleLLMReranker(mock)

	score, err := r.Score(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.InDelta(t, 0.85, score, 1e-9)
}

func TestRerankerRejectsScorelessResponse(t *testing.T) {
	mock := &MockLLM{Response: "these entries look similar to me"}
	r := NewSimpleLLMReranker(mock)

	_, err := r.Score(context.Background(), "a", "b")
	assert.Error(t, err)
}

func TestParseScoreClamps(t *testing.T) {
	v, ok := parseScore("250")
	require.True(t, ok)
	assert.Equal(t, 1.0, v) // 250 -> /100 -> 2.5 -> clamp
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	s := "功能很强大" // three bytes per rune
	// Byte 4 lands inside the second rune.
	out := truncate(s, 4)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "功...", out)

	assert.Equal(t, s, truncate(s, len(s)), "strings within the limit pass through")
}
