package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

type GeminiProvider struct {
	client *genai.Client
}

func NewGeminiAIProvider(client *genai.Client) *GeminiProvider {
	return &GeminiProvider{client: client}
}

// Complete sends the conversation as a single turn. Gemini has no system
// role in this API, so every message becomes a text part in order.
func (p *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (Message, error) {
	model := p.client.GenerativeModel(req.Model)
	model.SetTemperature(req.Temperature)
	if req.ResponseSchema != nil {
		model.ResponseMIMEType = "application/json"
	}

	res, err := model.GenerateContent(ctx, p.extractParts(req.Messages)...)
	if err != nil {
		return Message{}, err
	}
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return Message{}, errors.New("no candidates found")
	}

	return Message{
		Role:    RoleAssistant,
		Content: joinParts(res.Candidates[0].Content.Parts),
	}, nil
}

// -----------------Private Helper Functions-----------------
func (p *GeminiProvider) extractParts(messages []Message) []genai.Part {
	var parts []genai.Part
	for _, msg := range messages {
		parts = append(parts, genai.Text(msg.Content))
	}
	return parts
}

func joinParts(parts []genai.Part) string {
	var b strings.Builder
	for _, part := range parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
			continue
		}
		fmt.Fprintf(&b, "%v", part)
	}
	return b.String()
}
