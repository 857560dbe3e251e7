package client

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

const (
	contextWindowTokens = 128000
	contextThreshold    = 0.7
)

// TokenCounter estimates prompt sizes before they are sent.
type TokenCounter struct {
	encoder tokenizer.Codec
}

// NewTokenCounter loads the o200k encoding used by the gpt-4o family.
func NewTokenCounter() (*TokenCounter, error) {
	encoder, err := tokenizer.ForModel(tokenizer.GPT4o)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer: %w", err)
	}
	return &TokenCounter{encoder: encoder}, nil
}

var sharedCounter = sync.OnceValues(NewTokenCounter)

// DefaultTokenCounter returns a process-wide counter, loading the encoding on
// first use. The result may be nil; CountTokens then falls back to an estimate.
func DefaultTokenCounter() *TokenCounter {
	tc, err := sharedCounter()
	if err != nil {
		return nil
	}
	return tc
}

// CountTokens counts the tokens in text. A nil counter estimates four bytes
// per token.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.encoder == nil {
		return (len(text) + 3) / 4
	}
	ids, _, err := tc.encoder.Encode(text)
	if err != nil {
		return (len(text) + 3) / 4
	}
	return len(ids)
}

// IsAtThreshold reports whether text fills 70% of a 128k context window.
func (tc *TokenCounter) IsAtThreshold(text string) bool {
	return float64(tc.CountTokens(text)) >= contextWindowTokens*contextThreshold
}

// countRequestTokens approximates the prompt tokens of a request using the
// chat framing overhead of four tokens per message plus two for the reply.
func countRequestTokens(tc *TokenCounter, req Request) int {
	total := 2
	if req.System != "" {
		total += tc.CountTokens(req.System) + 4
	}
	for _, msg := range req.Messages {
		for _, part := range msg.Content {
			if part.Type == ContentText {
				total += tc.CountTokens(part.Text)
			}
		}
		total += 4
	}
	return total
}
