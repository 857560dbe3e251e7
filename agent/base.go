package agent

import (
	"context"

	"maestro-go-agents/attachment"
	"maestro-go-agents/client"
)

// BaseAgent provides the gateway call shared by every role.
type BaseAgent struct {
	Config  Config
	gateway client.Gateway
	tracker *UsageTracker
	counter *client.TokenCounter
}

// NewBaseAgent creates a BaseAgent. tracker may be nil.
func NewBaseAgent(config Config, gateway client.Gateway, tracker *UsageTracker) *BaseAgent {
	if config.MaxOutputTokens <= 0 {
		config.MaxOutputTokens = DefaultMaxOutputTokens
	}
	return &BaseAgent{
		Config:  config,
		gateway: gateway,
		tracker: tracker,
		counter: client.DefaultTokenCounter(),
	}
}

// call sends one request on behalf of the agent. Any failure comes back as a
// *client.GatewayError naming the agent's role.
func (a *BaseAgent) call(ctx context.Context, req client.Request) (*client.Response, error) {
	req.Model = a.Config.Model
	req.MaxOutputTokens = a.Config.MaxOutputTokens

	resp, err := a.gateway.Send(ctx, req)
	if err != nil {
		return nil, &client.GatewayError{Role: a.Config.Name, Model: a.Config.Model, Err: err}
	}

	if a.tracker != nil {
		output := resp.OutputTokens
		if output == 0 {
			output = a.counter.CountTokens(resp.Text)
		}
		a.tracker.RecordUsage(a.Config.Name, a.Config.Model, resp.InputTokens, output)
	}
	return resp, nil
}

// userTurn builds a single user message from text followed by the bundle's
// image, if any.
func userTurn(text string, bundle attachment.Bundle) client.Message {
	parts := []client.ContentPart{client.TextPart(text)}
	if bundle.HasImage() {
		parts = append(parts, client.ImagePart(bundle.Image.MediaType, bundle.Image.Data))
	}
	return client.Message{Role: client.RoleUser, Content: parts}
}
