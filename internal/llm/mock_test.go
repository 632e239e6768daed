package llm

import (
	"context"
)

type MockLLM struct {
	Response      string
	ResponseQueue []string
	ErrQueue      []error
	Calls         int
	LastPrompt    string
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.Calls++
	m.LastPrompt = prompt
	if len(m.ErrQueue) > 0 {
		err := m.ErrQueue[0]
		m.ErrQueue = m.ErrQueue[1:]
		if err != nil {
			return "", err
		}
	}
	if len(m.ResponseQueue) > 0 {
		resp := m.ResponseQueue[0]
		m.ResponseQueue = m.ResponseQueue[1:]
		return resp, nil
	}
	return m.Response, nil
}
