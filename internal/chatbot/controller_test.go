package chatbot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubService struct {
	lastQuery   *QueryRequest
	lastHistory []Turn
	response    QueryResponse
	title       string
}

func (s *stubService) Query(_ context.Context, req QueryRequest) QueryResponse {
	s.lastQuery = &req
	return s.response
}

func (s *stubService) GenerateTitle(_ context.Context, history []Turn) string {
	s.lastHistory = history
	return s.title
}

func newTestRouter(svc Service) *gin.Engine {
	router := gin.New()
	NewChatController(svc).RegisterRoutes(router)
	return router
}

func post(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestQueryHandler(t *testing.T) {
	svc := &stubService{response: QueryResponse{
		Summary:     "Dr. Smith performed the latest surgery.",
		SQLQuery:    `SELECT * FROM "surgery_details" LIMIT 1`,
		ResultsJSON: `[{"surgeon":"Dr. Smith"}]`,
	}}

	rr := post(newTestRouter(svc), "/query",
		`{"question":"only for Dr. Smith","history":[{"role":"user","content":"recent surgeries"},{"role":"assistant","content":"SELECT 1"}]}`)
	require.Equal(t, http.StatusOK, rr.Code)

	require.NotNil(t, svc.lastQuery)
	assert.Equal(t, "only for Dr. Smith", svc.lastQuery.Question)
	assert.Equal(t, []Turn{
		{Role: RoleUser, Content: "recent surgeries"},
		{Role: RoleAssistant, Content: "SELECT 1"},
	}, svc.lastQuery.History)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Dr. Smith performed the latest surgery.", body["summary"])
	assert.Equal(t, `[{"surgeon":"Dr. Smith"}]`, body["results_json"])
	assert.Equal(t, false, body["is_clarification"])
	assert.Equal(t, false, body["is_refusal"])
	assert.Equal(t, false, body["is_greeting"])
	assert.NotContains(t, body, "error", "error is omitted when empty")
}

func TestQueryHandlerErrorBodyIsStillOK(t *testing.T) {
	svc := &stubService{response: QueryResponse{Summary: summaryAIUnavailable, Error: errorAIResponse}}

	rr := post(newTestRouter(svc), "/query", `{"question":"hi"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"summary": "Could not get a response from the AI.",
		"sql_query": "",
		"results_json": "",
		"error": "AI response error.",
		"is_clarification": false,
		"is_refusal": false,
		"is_greeting": false
	}`, rr.Body.String())
}

func TestQueryHandlerRejectsInvalidBody(t *testing.T) {
	for name, body := range map[string]string{
		"not json":         `question=hi`,
		"missing question": `{"history":[]}`,
		"empty question":   `{"question":""}`,
		"unknown role":     `{"question":"hi","history":[{"role":"system","content":"x"}]}`,
		"missing role":     `{"question":"hi","history":[{"content":"x"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			svc := &stubService{}
			rr := post(newTestRouter(svc), "/query", body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), `"error"`)
			assert.Nil(t, svc.lastQuery)
		})
	}
}

func TestGenerateTitleHandler(t *testing.T) {
	svc := &stubService{title: "Recent Surgeries"}

	rr := post(newTestRouter(svc), "/generate-title",
		`{"history":[{"role":"user","content":"Show me the 5 most recent surgeries"}]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"title":"Recent Surgeries"}`, rr.Body.String())
	assert.Len(t, svc.lastHistory, 1)
}

func TestGenerateTitleHandlerRejectsBadRole(t *testing.T) {
	rr := post(newTestRouter(&stubService{}), "/generate-title", `{"history":[{"role":"bot","content":"x"}]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGenerateTitleHandlerEmptyHistory(t *testing.T) {
	provider := newScriptedProvider()
	router := newTestRouter(newTestService(provider, &fakeExecutor{}))

	rr := post(router, "/generate-title", `{"history":[]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"title":"New Chat"}`, rr.Body.String())
	assert.Equal(t, 0, provider.calls())
}
