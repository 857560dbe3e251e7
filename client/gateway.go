package client

import (
	"context"
	"errors"
)

// ContentType tags one piece of message content.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ContentPart is one typed content item of a message. Image data is base64
// with MediaType naming its encoding, e.g. "image/png".
type ContentPart struct {
	Type      ContentType
	Text      string
	MediaType string
	Data      string
}

// TextPart returns a text content item.
func TextPart(text string) ContentPart {
	return ContentPart{Type: ContentText, Text: text}
}

// ImagePart returns an image content item from base64 data.
func ImagePart(mediaType, data string) ContentPart {
	return ContentPart{Type: ContentImage, MediaType: mediaType, Data: data}
}

// Message is one conversation turn.
type Message struct {
	Role    string
	Content []ContentPart
}

// ResponseSchema asks the service for a JSON document matching Schema
// instead of free text.
type ResponseSchema struct {
	Name        string
	Description string
	Schema      any
}

// Request is a single synchronous call to the model service.
type Request struct {
	Model           string
	Messages        []Message
	System          string
	MaxOutputTokens int
	ResponseSchema  *ResponseSchema
}

// Response is the text the model returned plus accounting data.
type Response struct {
	Text         string
	Model        string
	RequestID    string
	InputTokens  int
	OutputTokens int
}

// Gateway sends one request to a language model and waits for the answer.
// Implementations never retry on their own.
type Gateway interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

var (
	ErrNoModel       = errors.New("client: request has no model")
	ErrNoMessages    = errors.New("client: request has no messages")
	ErrEmptyResponse = errors.New("client: model returned an empty response")
)
