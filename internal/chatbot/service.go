package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"askdb/internal/db"
	"askdb/internal/llm"
	"askdb/internal/observability"
)

// User-facing messages. Clients match on some of these, keep them stable.
const (
	summaryDBNotConfigured = "Database connection not configured."
	errorDBConnection      = "DB connection error."
	summaryAIUnavailable   = "Could not get a response from the AI."
	errorAIResponse        = "AI response error."
	summaryMalformed       = "There was an issue interpreting the AI's response."
	errorMalformed         = "Invalid AI response type."
	summaryQueryFailed     = "Query execution failed."
	errorQueryFailedPrefix = "Query failed: "
	summaryFallback        = "Here are the results from your query."
)

const defaultPreviewRows = 50

type ServiceConfig struct {
	ModelConfig
	// PreviewRows caps the rows shown to the model when summarizing.
	PreviewRows int
}

type ChatService struct {
	classifier *Classifier
	provider   llm.AIProvider
	executor   QueryExecutor
	schema     string
	cfg        ServiceConfig
	logger     *slog.Logger
}

// NewChatService wires the orchestrator. schema is the combined schema
// context; an empty schema or nil executor makes every query answer with the
// "not configured" response instead of calling the model.
func NewChatService(provider llm.AIProvider, executor QueryExecutor, schema string, cfg ServiceConfig, logger *slog.Logger) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = defaultPreviewRows
	}
	return &ChatService{
		classifier: NewClassifier(provider, cfg.ModelConfig),
		provider:   provider,
		executor:   executor,
		schema:     schema,
		cfg:        cfg,
		logger:     logger,
	}
}

func (cs *ChatService) Query(ctx context.Context, req QueryRequest) QueryResponse {
	logger := cs.logger.With(slog.String("request_id", observability.RequestIDFromContext(ctx)))

	if strings.TrimSpace(cs.schema) == "" || cs.executor == nil {
		return cs.failure(ctx, logger, newError(ConfigurationError, "schema or database missing", nil), "")
	}

	outcome, err := cs.classifier.Classify(ctx, cs.schema, req.Question, req.History)
	if err != nil {
		return cs.failure(ctx, logger, err, "")
	}
	logger.DebugContext(ctx, "classified question", slog.String("outcome", string(outcome.Kind)))
	return cs.respond(ctx, logger, req.Question, outcome)
}

func (cs *ChatService) respond(ctx context.Context, logger *slog.Logger, question string, outcome Outcome) QueryResponse {
	switch outcome.Kind {
	case OutcomeGreeting:
		observability.ObserveOutcome(string(outcome.Kind))
		return QueryResponse{Summary: outcome.Content, IsGreeting: true}
	case OutcomeRefusal:
		observability.ObserveOutcome(string(outcome.Kind))
		return QueryResponse{Summary: outcome.Content, IsRefusal: true}
	case OutcomeClarification:
		observability.ObserveOutcome(string(outcome.Kind))
		return QueryResponse{Summary: outcome.Content, IsClarification: true}
	case OutcomeSQL:
		return cs.answer(ctx, logger, question, outcome.Content)
	default:
		return cs.failure(ctx, logger, newError(MalformedModelOutput, fmt.Sprintf("unhandled outcome %q", outcome.Kind), nil), "")
	}
}

// answer runs the statement and summarizes the rows.
func (cs *ChatService) answer(ctx context.Context, logger *slog.Logger, question, statement string) QueryResponse {
	start := time.Now()
	result, err := cs.executor.ExecuteQuery(ctx, statement)
	observability.ObserveQuery(time.Since(start), err)
	if err != nil {
		return cs.failure(ctx, logger, newError(ExecutionError, "execute generated statement", err), statement)
	}

	resultsJSON, err := result.JSON()
	if err != nil {
		return cs.failure(ctx, logger, newError(ExecutionError, "encode rows", err), statement)
	}
	logger.InfoContext(ctx, "query executed",
		slog.String("sql", statement),
		slog.Int("rows", len(result.Rows)),
		slog.String("duration", time.Since(start).String()),
	)

	summary, err := cs.summarize(ctx, question, result)
	if err != nil {
		logger.WarnContext(ctx, "summary failed, using fallback", slog.Any("error", err))
		summary = summaryFallback
	}

	observability.ObserveOutcome(string(OutcomeSQL))
	return QueryResponse{Summary: summary, SQLQuery: statement, ResultsJSON: resultsJSON}
}

func (cs *ChatService) summarize(ctx context.Context, question string, result *db.QueryResult) (string, error) {
	prompt, err := renderSummaryPrompt(question, result.Preview(cs.cfg.PreviewRows))
	if err != nil {
		return "", err
	}

	ctx, cancel := withTimeout(ctx, cs.cfg.Timeout)
	defer cancel()

	start := time.Now()
	summary, err := llm.Prompt(ctx, cs.provider, cs.completionRequest(), prompt)
	observability.ObserveModelCall("summarize", time.Since(start), err)
	if err != nil {
		return "", err
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", errors.New("empty summary")
	}
	return summary, nil
}

// failure maps a typed error to its response. Errors without a kind are
// treated as the model being unavailable.
func (cs *ChatService) failure(ctx context.Context, logger *slog.Logger, err error, statement string) QueryResponse {
	kind, ok := KindOf(err)
	if !ok {
		kind = ModelUnavailable
	}
	observability.ObserveOutcome(string(kind))
	logger.ErrorContext(ctx, "query request failed",
		slog.String("kind", string(kind)),
		slog.String("sql", statement),
		slog.Any("error", err),
	)

	switch kind {
	case ConfigurationError:
		return QueryResponse{Summary: summaryDBNotConfigured, Error: errorDBConnection}
	case MalformedModelOutput:
		return QueryResponse{Summary: summaryMalformed, Error: errorMalformed}
	case ExecutionError:
		return QueryResponse{
			Summary:  summaryQueryFailed,
			SQLQuery: statement,
			Error:    errorQueryFailedPrefix + cause(err).Error(),
		}
	default:
		return QueryResponse{Summary: summaryAIUnavailable, Error: errorAIResponse}
	}
}

func (cs *ChatService) completionRequest() llm.CompletionRequest {
	return llm.CompletionRequest{Model: cs.cfg.Model, Temperature: cs.cfg.Temperature}
}

// cause strips the *Error wrapper so the caller sees the driver's message.
func cause(err error) error {
	var chatErr *Error
	if errors.As(err, &chatErr) && chatErr.Err != nil {
		return chatErr.Err
	}
	return err
}
