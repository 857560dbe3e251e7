package agent

import (
	"context"
	"strings"

	"maestro-go-agents/attachment"
	"maestro-go-agents/client"
)

const (
	controllerPreamble = "Based on the following objective and the previous sub-task results (if any), please break down the objective into the next sub-task, and create a concise and detailed prompt for a subagent so it can execute that task, please assess if the objective has been fully achieved. "
	controllerNextTask = " If the objective is not yet fully achieved, break it down into the next sub-task and create a concise and detailed prompt for a subagent to execute that task.:"
	noPriorResults     = "None"
)

// ControllerAgent decides the next sub-task or declares the objective done.
// It always runs on the high tier.
type ControllerAgent struct {
	*BaseAgent
	parser DecisionParser
}

// NewControllerAgent creates a controller. A nil parser means MarkerParser.
func NewControllerAgent(gateway client.Gateway, model string, maxOutputTokens int, parser DecisionParser, tracker *UsageTracker) *ControllerAgent {
	if parser == nil {
		parser = MarkerParser{}
	}
	config := Config{
		Name:            ControllerRole,
		Model:           model,
		MaxOutputTokens: maxOutputTokens,
	}
	return &ControllerAgent{
		BaseAgent: NewBaseAgent(config, gateway, tracker),
		parser:    parser,
	}
}

// Decide makes one controller call over the objective and every prior result.
// A response the parser rejects is reported as a GatewayError.
func (c *ControllerAgent) Decide(ctx context.Context, objective string, bundle attachment.Bundle, priorResults []string) (Decision, error) {
	resp, err := c.call(ctx, client.Request{
		Messages:       []client.Message{userTurn(c.prompt(objective, priorResults), bundle)},
		ResponseSchema: c.parser.ResponseSchema(),
	})
	if err != nil {
		return Decision{}, err
	}

	decision, err := c.parser.Parse(resp.Text)
	if err != nil {
		return Decision{}, &client.GatewayError{Role: c.Config.Name, Model: c.Config.Model, Err: err}
	}
	return decision, nil
}

func (c *ControllerAgent) prompt(objective string, priorResults []string) string {
	previous := noPriorResults
	if len(priorResults) > 0 {
		previous = strings.Join(priorResults, "\n")
	}

	var b strings.Builder
	b.WriteString(controllerPreamble)
	b.WriteString(c.parser.CompletionClause())
	b.WriteString(controllerNextTask)
	b.WriteString("\n\nObjective: ")
	b.WriteString(objective)
	b.WriteString("\n\nPrevious sub-task results:\n")
	b.WriteString(previous)
	return b.String()
}
