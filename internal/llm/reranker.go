package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf8"
)

// SimpleLLMReranker scores entry pairs through the completion model when no
// dedicated cross-encoder endpoint is available. Scores feed the graph
// builder's blend; a failed call is reported to the caller, which treats a
// missing rerank signal as embed-only rather than an error.
type SimpleLLMReranker struct {
	LLM LLMClient
}

func NewSimpleLLMReranker(client LLMClient) *SimpleLLMReranker {
	return &SimpleLLMReranker{LLM: client}
}

func (r *SimpleLLMReranker) Score(ctx context.Context, a, b string) (float64, error) {
	prompt := fmt.Sprintf(`You are a semantic similarity judge.
Rate how interchangeable the following two knowledge entries are, where 1.0
means they express the same fact and 0.0 means they are unrelated.

Entry A:
%s

Entry B:
%s

Output ONLY a decimal number between 0.0 and 1.0. No other text.`,
		truncate(a, 400), truncate(b, 400))

	resp, err := r.LLM.Generate(ctx, prompt)
	if err != nil {
		return 0, err
	}

	score, ok := parseScore(resp)
	if !ok {
		return 0, fmt.Errorf("no score in rerank response: %q", truncate(resp, 80))
	}
	return score, nil
}

var scoreRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

func parseScore(s string) (float64, bool) {
	m := scoreRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	if v > 1 {
		// Some models answer on a 0-100 scale despite instructions.
		v = v / 100
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back off to a rune boundary so the prompt never carries a torn rune.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
