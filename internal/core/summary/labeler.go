// Package summary names surviving communities so the end-of-run report
// reads as topics rather than member-id lists.
package summary

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/curatorhq/curator/internal/core/common"
	"github.com/curatorhq/curator/internal/core/model"
	"github.com/curatorhq/curator/internal/llm"
)

// chunkSize bounds how many member titles go into a single labeling call.
const chunkSize = 20

type Labeler struct {
	LLM    llm.LLMClient
	Prompt string // optional template override
	Log    *zap.SugaredLogger
}

const defaultLabelPrompt = `The entries below form one cluster of closely related %s knowledge.
Give the cluster a short descriptive name (at most 8 words).

<ENTRIES>
%s</ENTRIES>

Respond with a single JSON object: {"name": "..."}. Output only JSON.`

type labelResponse struct {
	Name string `json:"name"`
}

// Label produces a short name for one community. Communities larger than
// the chunk size are labeled hierarchically: each chunk is named first,
// then the chunk names are combined in a final call.
func (l *Labeler) Label(ctx context.Context, c *model.Community, entries map[string]*model.Entry) (string, error) {
	lines := make([]string, 0, len(c.Members))
	for _, id := range c.Members {
		e, ok := entries[id]
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s", e.Title))
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("community %s has no loadable members", c.ID)
	}

	if len(lines) <= chunkSize {
		return l.generate(ctx, c.Category, lines)
	}

	var chunkNames []string
	for start := 0; start < len(lines); start += chunkSize {
		end := start + chunkSize
		if end > len(lines) {
			end = len(lines)
		}
		name, err := l.generate(ctx, c.Category, lines[start:end])
		if err != nil {
			return "", err
		}
		chunkNames = append(chunkNames, "- "+name)
	}
	return l.generate(ctx, c.Category, chunkNames)
}

func (l *Labeler) generate(ctx context.Context, category string, lines []string) (string, error) {
	template := l.Prompt
	if template == "" {
		template = defaultLabelPrompt
	}
	prompt := fmt.Sprintf(template, category, strings.Join(lines, "\n")+"\n")

	response, err := l.LLM.Generate(ctx, prompt)
	if err != nil {
		return "", &model.TransportError{Op: "community label", Err: err}
	}
	parsed, err := common.ParseJSON[labelResponse](response)
	if err != nil {
		return "", fmt.Errorf("parse label response: %w", err)
	}
	name := strings.TrimSpace(parsed.Name)
	if name == "" {
		return "", fmt.Errorf("empty label")
	}
	return name, nil
}
