package agent

import (
	"context"
	"strings"

	"maestro-go-agents/attachment"
	"maestro-go-agents/client"
)

const refineInstructions = "\n\nPlease review and refine the sub-task results into a cohesive final output. add any missing information or details as needed. When working on code projects make sure to include the code implementation by file."

// RefinerAgent synthesizes the final output once the loop has ended.
type RefinerAgent struct {
	*BaseAgent
}

func NewRefinerAgent(gateway client.Gateway, model string, maxOutputTokens int, tracker *UsageTracker) *RefinerAgent {
	config := Config{
		Name:            RefinerRole,
		Model:           model,
		MaxOutputTokens: maxOutputTokens,
	}
	return &RefinerAgent{BaseAgent: NewBaseAgent(config, gateway, tracker)}
}

// Refine merges results into one answer. results may be empty.
func (r *RefinerAgent) Refine(ctx context.Context, objective string, bundle attachment.Bundle, results []string) (string, error) {
	text := "Objective: " + objective + "\n\nSub-task results:\n" + strings.Join(results, "\n") + refineInstructions
	resp, err := r.call(ctx, client.Request{
		Messages: []client.Message{userTurn(text, bundle)},
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
