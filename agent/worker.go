package agent

import (
	"context"
	"strings"

	"maestro-go-agents/client"
)

const workerHistoryHeader = "Previous worker tasks:\n"

// WorkerAgent executes one sub-task prompt. Its running history goes into the
// system message, never into the user turn.
type WorkerAgent struct {
	*BaseAgent
}

func NewWorkerAgent(gateway client.Gateway, model string, maxOutputTokens int, tracker *UsageTracker) *WorkerAgent {
	config := Config{
		Name:            WorkerRole,
		Model:           model,
		MaxOutputTokens: maxOutputTokens,
	}
	return &WorkerAgent{BaseAgent: NewBaseAgent(config, gateway, tracker)}
}

// Execute runs prompt with the given worker history as context.
func (w *WorkerAgent) Execute(ctx context.Context, prompt string, workerHistory []string) (string, error) {
	resp, err := w.call(ctx, client.Request{
		System: workerHistoryHeader + strings.Join(workerHistory, "\n"),
		Messages: []client.Message{{
			Role:    client.RoleUser,
			Content: []client.ContentPart{client.TextPart(prompt)},
		}},
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
