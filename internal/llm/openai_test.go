package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIProvider(NewOpenAIClient("test-key", srv.URL+"/v1"))
}

func writeCompletion(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
		ID:    "chatcmpl-test",
		Model: "gpt-4-turbo",
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: RoleAssistant, Content: content},
		}},
	}))
}

func TestOpenAICompleteSendsModelAndSchema(t *testing.T) {
	var got map[string]any
	p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		writeCompletion(t, w, `{"response_type":"GREETING","content":"Hi!"}`)
	})

	type reply struct {
		ResponseType string `json:"response_type"`
		Content      string `json:"content"`
	}
	schema := (&jsonschema.Reflector{DoNotReference: true}).Reflect(&reply{})

	msg, err := p.Complete(context.Background(), CompletionRequest{
		Messages:       []Message{{Role: RoleUser, Content: "hello"}},
		Model:          "gpt-4-turbo",
		ResponseSchema: &ResponseSchema{Name: "classification", Schema: schema},
	})
	require.NoError(t, err)
	assert.Equal(t, RoleAssistant, msg.Role)
	assert.Equal(t, `{"response_type":"GREETING","content":"Hi!"}`, msg.Content)

	assert.Equal(t, "gpt-4-turbo", got["model"])
	format, ok := got["response_format"].(map[string]any)
	require.True(t, ok, "response_format should be sent")
	assert.Equal(t, "json_schema", format["type"])
	js, ok := format["json_schema"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "classification", js["name"])
	assert.NotNil(t, js["schema"])
}

func TestOpenAICompleteWithoutSchemaOmitsResponseFormat(t *testing.T) {
	var got map[string]any
	p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeCompletion(t, w, "Surgeon Workload")
	})

	text, err := Prompt(context.Background(), p, CompletionRequest{Model: "gpt-4-turbo"}, "title please")
	require.NoError(t, err)
	assert.Equal(t, "Surgeon Workload", text)
	assert.NotContains(t, got, "response_format")

	messages, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	assert.Equal(t, "title please", messages[0].(map[string]any)["content"])
}

func TestOpenAICompleteErrors(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
		})
		_, err := p.Complete(context.Background(), CompletionRequest{Model: "gpt-4-turbo"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate limited")
	})

	t.Run("no choices", func(t *testing.T) {
		p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
		})
		_, err := p.Complete(context.Background(), CompletionRequest{Model: "gpt-4-turbo"})
		assert.EqualError(t, err, "no choices found")
	})
}

func TestToOpenAIMessagesKeepsOrder(t *testing.T) {
	got := toOpenAIMessages([]Message{
		{Role: RoleSystem, Content: "a"},
		{Role: RoleUser, Content: "b"},
		{Role: RoleAssistant, Content: "c"},
	})
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, got[1].Role)
	assert.Equal(t, "c", got[2].Content)
}

func TestGeminiExtractParts(t *testing.T) {
	p := &GeminiProvider{}
	parts := p.extractParts([]Message{{Role: RoleUser, Content: "x"}, {Role: RoleAssistant, Content: "y"}})
	require.Len(t, parts, 2)
	assert.Equal(t, "xy", joinParts(parts))
}

func TestOpenAICompleteSendsZeroTemperature(t *testing.T) {
	var got map[string]any
	p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeCompletion(t, w, "ok")
	})

	_, err := Prompt(context.Background(), p, CompletionRequest{Model: "gpt-4-turbo", Temperature: 0}, "x")
	require.NoError(t, err)

	require.Contains(t, got, "temperature")
	assert.InDelta(t, 0, got["temperature"], 1e-6)
}

func TestOpenAICompleteKeepsConfiguredTemperature(t *testing.T) {
	var got map[string]any
	p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeCompletion(t, w, "ok")
	})

	_, err := Prompt(context.Background(), p, CompletionRequest{Model: "gpt-4-turbo", Temperature: 0.7}, "x")
	require.NoError(t, err)
	assert.InDelta(t, 0.7, got["temperature"], 1e-6)
}
