package chatbot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/invopop/jsonschema"

	"askdb/internal/llm"
	"askdb/internal/observability"
)

type OutcomeKind string

const (
	OutcomeGreeting      OutcomeKind = "greeting"
	OutcomeRefusal       OutcomeKind = "refusal"
	OutcomeClarification OutcomeKind = "clarification"
	OutcomeSQL           OutcomeKind = "sql"
)

// Outcome is the classified intent of one user turn. For OutcomeSQL, Content
// is the statement to run; otherwise it is the reply shown to the user.
type Outcome struct {
	Kind    OutcomeKind
	Content string
}

// responseTypes maps the wire values the model is told to emit.
var responseTypes = map[string]OutcomeKind{
	"GREETING": OutcomeGreeting,
	"REFUSE":   OutcomeRefusal,
	"CLARIFY":  OutcomeClarification,
	"SQL":      OutcomeSQL,
}

type classifierReply struct {
	ResponseType string `json:"response_type" jsonschema:"enum=GREETING,enum=REFUSE,enum=CLARIFY,enum=SQL"`
	Content      string `json:"content" jsonschema:"description=Reply text or the PostgreSQL statement when response_type is SQL"`
}

var replySchema = newReplySchema()

func newReplySchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		Anonymous:                 true,
		AllowAdditionalProperties: false,
	}
	schema := r.Reflect(&classifierReply{})
	schema.Version = ""
	return schema
}

type ModelConfig struct {
	Model       string
	Temperature float32
	Timeout     time.Duration
	// StructuredOutput attaches the reply schema to classification calls.
	StructuredOutput bool
}

type Classifier struct {
	provider llm.AIProvider
	cfg      ModelConfig
}

func NewClassifier(provider llm.AIProvider, cfg ModelConfig) *Classifier {
	return &Classifier{provider: provider, cfg: cfg}
}

// Classify asks the model for the intent of question given the schema and the
// prior turns. Failures are *Error values of kind ModelUnavailable or
// MalformedModelOutput; there are no retries.
func (c *Classifier) Classify(ctx context.Context, schema, question string, history []Turn) (Outcome, error) {
	prompt, err := renderClassificationPrompt(schema, question, history)
	if err != nil {
		return Outcome{}, newError(ModelUnavailable, "render classification prompt", err)
	}

	req := llm.CompletionRequest{Model: c.cfg.Model, Temperature: c.cfg.Temperature}
	if c.cfg.StructuredOutput {
		req.ResponseSchema = &llm.ResponseSchema{Name: "classification", Schema: replySchema}
	}

	ctx, cancel := withTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	reply, err := llm.Prompt(ctx, c.provider, req, prompt)
	observability.ObserveModelCall("classify", time.Since(start), err)
	if err != nil {
		return Outcome{}, newError(ModelUnavailable, "classification call failed", err)
	}
	return ParseOutcome(reply)
}

// ParseOutcome decodes the JSON object between the first '{' and the last '}'
// of reply. Anything that does not decode to a known response type is
// MalformedModelOutput.
func ParseOutcome(reply string) (Outcome, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return Outcome{}, newError(MalformedModelOutput, "no JSON object in reply", nil)
	}

	var decoded classifierReply
	if err := json.Unmarshal([]byte(reply[start:end+1]), &decoded); err != nil {
		return Outcome{}, newError(MalformedModelOutput, "decode reply", err)
	}

	responseType := strings.ToUpper(strings.TrimSpace(decoded.ResponseType))
	kind, ok := responseTypes[responseType]
	if !ok {
		return Outcome{}, newError(MalformedModelOutput, fmt.Sprintf("unknown response_type %q", decoded.ResponseType), nil)
	}

	content := strings.TrimSpace(decoded.Content)
	if kind == OutcomeSQL && content == "" {
		return Outcome{}, newError(MalformedModelOutput, "empty SQL statement", nil)
	}
	return Outcome{Kind: kind, Content: content}, nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
