package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Decision string `json:"decision"`
	Count    int    `json:"count"`
}

func TestParseJSONPlain(t *testing.T) {
	got, err := ParseJSON[payload](`{"decision": "merge_all", "count": 3}`)
	require.NoError(t, err)
	assert.Equal(t, "merge_all", got.Decision)
	assert.Equal(t, 3, got.Count)
}

func TestParseJSONFencedWithProse(t *testing.T) {
	response := "Sure, here is the result:\n```json\n{\"decision\": \"keep_separate\"}\n```\nLet me know if you need anything else."
	got, err := ParseJSON[payload](response)
	require.NoError(t, err)
	assert.Equal(t, "keep_separate", got.Decision)
}

func TestParseJSONSurroundingText(t *testing.T) {
	got, err := ParseJSON[payload](`The answer is {"decision": "manual_review"} as requested.`)
	require.NoError(t, err)
	assert.Equal(t, "manual_review", got.Decision)
}

func TestParseJSONNoObject(t *testing.T) {
	_, err := ParseJSON[payload]("I could not decide.")
	assert.Error(t, err)
}

func TestParseJSONMalformed(t *testing.T) {
	_, err := ParseJSON[payload](`{"decision": }`)
	assert.Error(t, err)
}
