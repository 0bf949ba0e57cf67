package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/rubric-evaluator/internal/errs"
	"alfredoptarigan/rubric-evaluator/internal/metrics"
)

func TestParseProvider(t *testing.T) {
	t.Parallel()

	p, err := ParseProvider(" Gemini ")
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, p)

	p, err = ParseProvider("openrouter")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenRouter, p)

	_, err = ParseProvider("claude")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestParseRubricAnalysis_AcceptsFencedJSON(t *testing.T) {
	t.Parallel()

	raw := "Aquí está el análisis:\n```json\n" + validAnalysisJSON + "\n```"

	analysis, err := ParseRubricAnalysis(raw)
	require.NoError(t, err)
	assert.Equal(t, "G1", analysis.GroupCode)
	assert.InDelta(t, 7.5, analysis.TotalScore, 1e-9)
}

func TestParseRubricAnalysis_RejectsInvalidRecords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		replace [2]string
	}{
		{"unknown level", [2]string{`"level": "BUENO"`, `"level": "EXCELENTE"`}},
		{"unknown status", [2]string{`"status": "PASS"`, `"status": "OK"`}},
		{"priority out of range", [2]string{`"priority": 1`, `"priority": 4`}},
		{"missing feedback", [2]string{`"general_feedback": "Buen trabajo general."`, `"general_feedback": ""`}},
		{"percentage above 100", [2]string{`"percentage": 75`, `"percentage": 120`}},
		{"not json", [2]string{validAnalysisJSON, "no puedo evaluar esto"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			raw := strings.Replace(validAnalysisJSON, tt.replace[0], tt.replace[1], 1)
			require.NotEqual(t, validAnalysisJSON, raw)

			_, err := ParseRubricAnalysis(raw)
			assert.ErrorIs(t, err, errs.ErrSchemaParse)
		})
	}
}

func TestRubricAnalysis_Feedback(t *testing.T) {
	t.Parallel()

	a := &RubricAnalysis{
		GeneralFeedback: "General.",
		Strengths:       []string{"Orden", "Claridad"},
		Improvements:    []string{"Fuentes"},
	}

	assert.Equal(t, "General.\n\nFortalezas:\n- Orden\n- Claridad\n\nAspectos a mejorar:\n- Fuentes", a.Feedback())
	assert.Equal(t, "Solo esto", (&RubricAnalysis{GeneralFeedback: "Solo esto"}).Feedback())
}

func TestModelInvoker_UnknownProvider(t *testing.T) {
	t.Parallel()

	invoker := NewModelInvoker(time.Second, &fakeProvider{name: ProviderGemini})

	assert.True(t, invoker.Has(ProviderGemini))
	assert.False(t, invoker.Has(ProviderOpenRouter))

	_, err := invoker.Generate(context.Background(), ProviderOpenRouter, "hola", "")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	assert.False(t, errors.Is(err, errs.ErrProvider))
}

func TestModelInvoker_WrapsProviderFailures(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		name: ProviderGemini,
		textReply: func(string) (string, error) {
			return "", errors.New("quota exceeded")
		},
	}
	invoker := NewModelInvoker(time.Second, provider)

	_, err := invoker.Generate(context.Background(), ProviderGemini, "hola", "")
	require.ErrorIs(t, err, errs.ErrProvider)

	var pe *errs.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "gemini", pe.Provider)
	assert.False(t, errs.IsTimeout(err))
}

func TestModelInvoker_StructuredSchemaFailureIsNotProviderError(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		name: ProviderGemini,
		structReply: func(string, int) (string, error) {
			return `{"status": "PASS"}`, nil
		},
	}
	invoker := NewModelInvoker(time.Second, provider)

	_, err := invoker.GenerateRubricAnalysis(context.Background(), ProviderGemini, "sys", "user")
	assert.ErrorIs(t, err, errs.ErrSchemaParse)
	assert.False(t, errors.Is(err, errs.ErrProvider))
}

func TestModelInvoker_CountsStructuredOutcomeOnce(t *testing.T) {
	t.Parallel()

	// Dedicated provider label so parallel tests do not share counters.
	const name Provider = "counting-provider"
	provider := &fakeProvider{
		name: name,
		structReply: func(_ string, call int) (string, error) {
			if call == 1 {
				return `{"status": "PASS"}`, nil
			}
			return validAnalysisJSON, nil
		},
	}
	invoker := NewModelInvoker(time.Second, provider)
	count := func(outcome string) float64 {
		return testutil.ToFloat64(metrics.LLMRequestsTotal.WithLabelValues(string(name), "structured", outcome))
	}

	_, err := invoker.GenerateRubricAnalysis(context.Background(), name, "sys", "user")
	require.ErrorIs(t, err, errs.ErrSchemaParse)
	assert.Equal(t, 1.0, count("schema_error"))
	assert.Equal(t, 0.0, count("success"))

	_, err = invoker.GenerateRubricAnalysis(context.Background(), name, "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, 1.0, count("schema_error"))
	assert.Equal(t, 1.0, count("success"))
}
