package llm

import (
	"context"
	"encoding/json"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseSchema asks a provider for structured output. Providers that cannot
// enforce a schema fall back to plain JSON mode or ignore it.
type ResponseSchema struct {
	Name   string
	Schema json.Marshaler
}

type CompletionRequest struct {
	Messages       []Message
	Model          string
	Temperature    float32
	ResponseSchema *ResponseSchema
}

type AIProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (Message, error)
}

// Prompt sends a single user prompt and returns the text of the reply.
func Prompt(ctx context.Context, p AIProvider, req CompletionRequest, prompt string) (string, error) {
	req.Messages = []Message{{Role: RoleUser, Content: prompt}}
	msg, err := p.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}
