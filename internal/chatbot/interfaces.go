package chatbot

import (
	"context"

	"askdb/internal/db"
)

type Service interface {
	Query(ctx context.Context, req QueryRequest) QueryResponse
	GenerateTitle(ctx context.Context, history []Turn) string
}

// QueryExecutor runs a generated statement. *db.HDb satisfies it.
type QueryExecutor interface {
	ExecuteQuery(ctx context.Context, statement string) (*db.QueryResult, error)
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Turn struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content"`
}

type QueryRequest struct {
	Question string `json:"question" binding:"required"`
	History  []Turn `json:"history" binding:"omitempty,dive"`
}

// QueryResponse carries at most one of the three flags. When Error is set,
// ResultsJSON is empty.
type QueryResponse struct {
	Summary         string `json:"summary"`
	SQLQuery        string `json:"sql_query"`
	ResultsJSON     string `json:"results_json"`
	Error           string `json:"error,omitempty"`
	IsClarification bool   `json:"is_clarification"`
	IsRefusal       bool   `json:"is_refusal"`
	IsGreeting      bool   `json:"is_greeting"`
}

type TitleRequest struct {
	History []Turn `json:"history" binding:"omitempty,dive"`
}

type TitleResponse struct {
	Title string `json:"title"`
}
