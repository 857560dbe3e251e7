package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"maestro-go-agents/ratelimiter"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultRequestsPerMinute = 60
	DefaultTokensPerMinute   = 90000
)

// APIClient is the openai-go backed Gateway. It paces requests and prompt
// tokens with two token buckets and logs every call.
type APIClient struct {
	client         openai.Client
	logger         *log.Logger
	counter        *TokenCounter
	requestLimiter *ratelimiter.TokenBucket
	tokenLimiter   *ratelimiter.TokenBucket
}

type APIClientConfig struct {
	APIKey            string
	BaseURL           string
	RequestsPerMinute int
	TokensPerMinute   int
	// Timeout bounds a single call; zero leaves it to the caller's context.
	Timeout time.Duration
	Logger  *log.Logger
}

func NewAPIClient(config APIClientConfig) *APIClient {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if config.TokensPerMinute <= 0 {
		config.TokensPerMinute = DefaultTokensPerMinute
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.Timeout))
	}

	return &APIClient{
		client:         openai.NewClient(opts...),
		logger:         config.Logger,
		counter:        DefaultTokenCounter(),
		requestLimiter: ratelimiter.PerMinute(config.RequestsPerMinute),
		tokenLimiter:   ratelimiter.PerMinute(config.TokensPerMinute),
	}
}

// Send performs one chat completion. Failures are returned as-is; the caller
// decides what a failure means for its phase.
func (c *APIClient) Send(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		return nil, ErrNoModel
	}
	if len(req.Messages) == 0 {
		return nil, ErrNoMessages
	}

	startTime := time.Now()
	params := buildParams(req)
	inputTokens := countRequestTokens(c.counter, req)

	if err := c.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("request rate limit exceeded: %w", err)
	}
	if err := c.tokenLimiter.WaitN(ctx, inputTokens); err != nil {
		return nil, fmt.Errorf("token rate limit exceeded: %w", err)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("Model request failed",
			"error", err,
			"model", req.Model,
			"status", StatusCode(err),
			"input_tokens", inputTokens,
			"duration", duration,
		)
		return nil, err
	}

	if len(resp.Choices) == 0 {
		c.logger.Error("Model response had no choices", "model", req.Model, "request_id", resp.ID)
		return nil, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	if strings.TrimSpace(choice.Message.Content) == "" {
		c.logger.Error("Model response had no text", "model", req.Model, "request_id", resp.ID, "finish_reason", choice.FinishReason)
		return nil, fmt.Errorf("%w (finish reason %q)", ErrEmptyResponse, choice.FinishReason)
	}

	out := &Response{
		Text:         choice.Message.Content,
		Model:        resp.Model,
		RequestID:    resp.ID,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}
	if out.Model == "" {
		out.Model = req.Model
	}
	if out.InputTokens == 0 {
		out.InputTokens = inputTokens
	}

	c.logger.Info("Model request completed",
		"model", out.Model,
		"input_tokens", out.InputTokens,
		"output_tokens", out.OutputTokens,
		"expected_cost_usd", EstimateCost(req.Model, out.InputTokens, out.OutputTokens),
		"duration", duration,
		"request_id", out.RequestID,
	)

	return out, nil
}

func buildParams(req Request) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		messages = append(messages, convertMessage(msg))
	}

	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: messages,
	}
	if req.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxOutputTokens))
	}
	if req.ResponseSchema != nil {
		schema := openai.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:   req.ResponseSchema.Name,
			Schema: req.ResponseSchema.Schema,
			Strict: openai.Bool(true),
		}
		if req.ResponseSchema.Description != "" {
			schema.Description = openai.String(req.ResponseSchema.Description)
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schema},
		}
	}
	return params
}

func convertMessage(msg Message) openai.ChatCompletionMessageParamUnion {
	if msg.Role == RoleAssistant {
		return openai.AssistantMessage(joinText(msg.Content))
	}

	if len(msg.Content) == 1 && msg.Content[0].Type == ContentText {
		return openai.UserMessage(msg.Content[0].Text)
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(msg.Content))
	for _, part := range msg.Content {
		switch part.Type {
		case ContentImage:
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: "data:" + part.MediaType + ";base64," + part.Data,
			}))
		default:
			parts = append(parts, openai.TextContentPart(part.Text))
		}
	}
	return openai.UserMessage(parts)
}

func joinText(parts []ContentPart) string {
	var text string
	for _, part := range parts {
		if part.Type == ContentText {
			text += part.Text
		}
	}
	return text
}

// Close stops the rate limiter goroutines.
func (c *APIClient) Close() {
	if c.requestLimiter != nil {
		c.requestLimiter.Stop()
	}
	if c.tokenLimiter != nil {
		c.tokenLimiter.Stop()
	}
}

func (c *APIClient) GetAvailableRequestTokens() int {
	return c.requestLimiter.AvailableTokens()
}

func (c *APIClient) GetAvailableTokens() int {
	return c.tokenLimiter.AvailableTokens()
}
