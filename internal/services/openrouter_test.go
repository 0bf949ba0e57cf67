package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"alfredoptarigan/rubric-evaluator/internal/config"
	"alfredoptarigan/rubric-evaluator/internal/errs"
)

const validAnalysisJSON = `{
  "group_code": "G1",
  "total_score": 7.5,
  "max_score": 10,
  "percentage": 75,
  "status": "PASS",
  "criteria": [
    {"name": "Introducción", "score": 3.75, "max_score": 5, "level": "BUENO", "feedback": "Presenta el problema en la sección 1."},
    {"name": "Metodología", "score": 3.75, "max_score": 5, "level": "BUENO", "feedback": "Describe el método."}
  ],
  "general_feedback": "Buen trabajo general.",
  "strengths": ["Claridad"],
  "improvements": ["Citar fuentes"],
  "recommendations": [
    {"priority": 1, "summary": "Agregar referencias", "detail": "Incluir bibliografía en formato APA."}
  ]
}`

func newOpenRouterTestServer(t *testing.T, handler http.HandlerFunc) LLMProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewOpenRouterService(config.OpenRouterConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "openai/gpt-4o-mini",
		Title:   "test",
	})
}

func chatCompletion(content string) string {
	return `{"choices":[{"message":{"role":"assistant","content":` + jsonString(content) + `}}]}`
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestOpenRouter_GenerateText(t *testing.T) {
	t.Parallel()

	provider := newOpenRouterTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "custom/model", gjson.GetBytes(body, "model").String())
		assert.Equal(t, "hola", gjson.GetBytes(body, "messages.0.content").String())
		assert.False(t, gjson.GetBytes(body, "response_format").Exists())

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatCompletion("respuesta"))
	})

	out, err := provider.GenerateText(context.Background(), "hola", "custom/model")
	require.NoError(t, err)
	assert.Equal(t, "respuesta", out)
}

func TestOpenRouter_GenerateStructuredSendsSchema(t *testing.T) {
	t.Parallel()

	provider := newOpenRouterTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "json_schema", gjson.GetBytes(body, "response_format.type").String())
		assert.Equal(t, "rubric_analysis", gjson.GetBytes(body, "response_format.json_schema.name").String())
		assert.True(t, gjson.GetBytes(body, "response_format.json_schema.strict").Bool())
		assert.Equal(t, "system", gjson.GetBytes(body, "messages.0.role").String())

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatCompletion(validAnalysisJSON))
	})

	invoker := NewModelInvoker(5*time.Second, provider)
	analysis, err := invoker.GenerateRubricAnalysis(context.Background(), ProviderOpenRouter, "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "PASS", analysis.Status)
	assert.Len(t, analysis.Criteria, 2)
	require.Len(t, analysis.Recommendations, 1)
	assert.Equal(t, 1, analysis.Recommendations[0].Priority)
}

func TestOpenRouter_ErrorsBecomeProviderErrors(t *testing.T) {
	t.Parallel()

	provider := newOpenRouterTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"rate limited"}}`)
	})

	invoker := NewModelInvoker(5*time.Second, provider)
	_, err := invoker.Generate(context.Background(), ProviderOpenRouter, "hola", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrProvider)
	assert.Contains(t, err.Error(), "rate limited")
	assert.False(t, errs.IsTimeout(err))
}

func TestOpenRouter_InvalidStructuredPayload(t *testing.T) {
	t.Parallel()

	provider := newOpenRouterTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatCompletion(`{"status":"EXCELLENT","criteria":[]}`))
	})

	invoker := NewModelInvoker(5*time.Second, provider)
	_, err := invoker.GenerateRubricAnalysis(context.Background(), ProviderOpenRouter, "sys", "user")
	assert.ErrorIs(t, err, errs.ErrSchemaParse)
	assert.NotErrorIs(t, err, errs.ErrProvider)
}

func TestOpenRouter_Timeout(t *testing.T) {
	t.Parallel()

	provider := newOpenRouterTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	invoker := NewModelInvoker(50*time.Millisecond, provider)
	_, err := invoker.Generate(context.Background(), ProviderOpenRouter, "hola", "")
	require.Error(t, err)
	assert.True(t, errs.IsTimeout(err))
	assert.ErrorIs(t, err, errs.ErrTimeout)
}
