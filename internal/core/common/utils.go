package common

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseJSON cleans and unmarshals a JSON object from an LLM response into
// type T. It tolerates surrounding prose and markdown fences.
func ParseJSON[T any](response string) (T, error) {
	var zero T

	jsonStr := response
	if i := strings.Index(jsonStr, "```"); i != -1 {
		// Strip a fenced block if the model wrapped its answer in one.
		rest := jsonStr[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j != -1 {
			jsonStr = rest[:j]
		}
	}

	start := strings.Index(jsonStr, "{")
	end := strings.LastIndex(jsonStr, "}")
	if start == -1 || end == -1 || end < start {
		return zero, fmt.Errorf("no JSON object found in response")
	}
	jsonStr = jsonStr[start : end+1]

	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return zero, fmt.Errorf("failed to unmarshal JSON: %w\nData: %s", err, jsonStr)
	}
	return result, nil
}
