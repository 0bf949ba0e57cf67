package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"alfredoptarigan/rubric-evaluator/internal/errs"
	"alfredoptarigan/rubric-evaluator/internal/metrics"
)

type Provider string

const (
	ProviderGemini     Provider = "gemini"
	ProviderOpenRouter Provider = "openrouter"
)

func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderGemini, ProviderOpenRouter:
		return p, nil
	default:
		return "", fmt.Errorf("unknown provider %q: %w", s, errs.ErrInvalidArgument)
	}
}

// LLMProvider is one model backend. Implementations return plain errors; the
// ModelInvoker classifies them.
type LLMProvider interface {
	Name() Provider
	GenerateText(ctx context.Context, prompt, model string) (string, error)
	// GenerateStructured must constrain the output to RubricAnalysisSchema.
	GenerateStructured(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type CriterionScore struct {
	Name     string  `json:"name" validate:"required"`
	Score    float64 `json:"score" validate:"gte=0"`
	MaxScore float64 `json:"max_score" validate:"gte=0"`
	Level    string  `json:"level" validate:"required,oneof=SATISFACTORIO BUENO REGULAR INSATISFACTORIO"`
	Feedback string  `json:"feedback"`
}

type RecommendationItem struct {
	Priority int    `json:"priority" validate:"min=1,max=3"`
	Summary  string `json:"summary" validate:"required"`
	Detail   string `json:"detail"`
}

// RubricAnalysis is the structured record a provider returns for one group.
type RubricAnalysis struct {
	GroupCode       string               `json:"group_code"`
	TotalScore      float64              `json:"total_score" validate:"gte=0"`
	MaxScore        float64              `json:"max_score" validate:"gte=0"`
	Percentage      float64              `json:"percentage" validate:"gte=0,lte=100"`
	Status          string               `json:"status" validate:"required,oneof=PASS FAIL PARTIAL"`
	Criteria        []CriterionScore     `json:"criteria" validate:"required,min=1,dive"`
	GeneralFeedback string               `json:"general_feedback" validate:"required"`
	Strengths       []string             `json:"strengths"`
	Improvements    []string             `json:"improvements"`
	Recommendations []RecommendationItem `json:"recommendations" validate:"dive"`
}

// Feedback flattens the narrative parts of the analysis into one text.
func (a *RubricAnalysis) Feedback() string {
	var sb strings.Builder
	sb.WriteString(a.GeneralFeedback)
	if len(a.Strengths) > 0 {
		sb.WriteString("\n\nFortalezas:\n- ")
		sb.WriteString(strings.Join(a.Strengths, "\n- "))
	}
	if len(a.Improvements) > 0 {
		sb.WriteString("\n\nAspectos a mejorar:\n- ")
		sb.WriteString(strings.Join(a.Improvements, "\n- "))
	}
	return sb.String()
}

// RubricAnalysisSchema is the JSON Schema sent to providers that accept one.
var RubricAnalysisSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"group_code":  map[string]any{"type": "string"},
		"total_score": map[string]any{"type": "number"},
		"max_score":   map[string]any{"type": "number"},
		"percentage":  map[string]any{"type": "number"},
		"status": map[string]any{
			"type": "string",
			"enum": []string{"PASS", "FAIL", "PARTIAL"},
		},
		"criteria": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":      map[string]any{"type": "string"},
					"score":     map[string]any{"type": "number"},
					"max_score": map[string]any{"type": "number"},
					"level": map[string]any{
						"type": "string",
						"enum": []string{"SATISFACTORIO", "BUENO", "REGULAR", "INSATISFACTORIO"},
					},
					"feedback": map[string]any{"type": "string"},
				},
				"required":             []string{"name", "score", "max_score", "level", "feedback"},
				"additionalProperties": false,
			},
		},
		"general_feedback": map[string]any{"type": "string"},
		"strengths":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"improvements":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"recommendations": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"priority": map[string]any{"type": "integer", "enum": []int{1, 2, 3}},
					"summary":  map[string]any{"type": "string"},
					"detail":   map[string]any{"type": "string"},
				},
				"required":             []string{"priority", "summary", "detail"},
				"additionalProperties": false,
			},
		},
	},
	"required": []string{
		"group_code", "total_score", "max_score", "percentage", "status",
		"criteria", "general_feedback", "strengths", "improvements", "recommendations",
	},
	"additionalProperties": false,
}

var analysisValidator = validator.New()

// ParseRubricAnalysis decodes and validates a structured provider response.
func ParseRubricAnalysis(raw string) (*RubricAnalysis, error) {
	var analysis RubricAnalysis
	if err := json.Unmarshal([]byte(extractJSON(raw)), &analysis); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrSchemaParse, err)
	}

	if err := analysisValidator.Struct(&analysis); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrSchemaParse, err)
	}

	return &analysis, nil
}

// extractJSON strips markdown fences and surrounding prose from a model reply.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		return text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// ModelInvoker routes calls to the selected provider under a per-call timeout.
// It never retries.
type ModelInvoker struct {
	providers map[Provider]LLMProvider
	timeout   time.Duration
}

func NewModelInvoker(timeout time.Duration, providers ...LLMProvider) *ModelInvoker {
	m := &ModelInvoker{
		providers: make(map[Provider]LLMProvider, len(providers)),
		timeout:   timeout,
	}
	for _, p := range providers {
		if p != nil {
			m.providers[p.Name()] = p
		}
	}
	return m
}

func (m *ModelInvoker) Has(provider Provider) bool {
	_, ok := m.providers[provider]
	return ok
}

// Generate sends one free-text prompt. modelHint may be empty.
func (m *ModelInvoker) Generate(ctx context.Context, provider Provider, prompt, modelHint string) (string, error) {
	out, err := m.call(ctx, provider, "generate", func(ctx context.Context, p LLMProvider) (string, error) {
		return p.GenerateText(ctx, prompt, modelHint)
	})
	if err != nil {
		return "", err
	}
	countRequest(provider, "generate", "success")
	return out, nil
}

// GenerateRubricAnalysis requests a schema-constrained response and validates it.
func (m *ModelInvoker) GenerateRubricAnalysis(ctx context.Context, provider Provider, systemPrompt, userPrompt string) (*RubricAnalysis, error) {
	raw, err := m.call(ctx, provider, "structured", func(ctx context.Context, p LLMProvider) (string, error) {
		return p.GenerateStructured(ctx, systemPrompt, userPrompt)
	})
	if err != nil {
		return nil, err
	}

	analysis, err := ParseRubricAnalysis(raw)
	if err != nil {
		countRequest(provider, "structured", "schema_error")
		log.Printf("❌ %s returned an invalid rubric analysis: %v", provider, err)
		return nil, err
	}
	countRequest(provider, "structured", "success")
	return analysis, nil
}

func countRequest(provider Provider, op, outcome string) {
	metrics.LLMRequestsTotal.WithLabelValues(string(provider), op, outcome).Inc()
}

// call runs fn under the timeout and counts failed calls. Successful calls
// are counted by the caller once the response is accepted.
func (m *ModelInvoker) call(ctx context.Context, provider Provider, op string, fn func(context.Context, LLMProvider) (string, error)) (string, error) {
	p, ok := m.providers[provider]
	if !ok {
		return "", fmt.Errorf("provider %q is not configured: %w", provider, errs.ErrInvalidArgument)
	}

	callCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := fn(callCtx, p)
	metrics.LLMRequestDuration.WithLabelValues(string(provider), op).Observe(time.Since(start).Seconds())

	if err != nil {
		outcome := "error"
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			outcome = "timeout"
			err = errs.NewProviderError(string(provider), fmt.Errorf("%w after %s: %v", errs.ErrTimeout, m.timeout, err))
		} else {
			var pe *errs.ProviderError
			if !errors.As(err, &pe) {
				err = errs.NewProviderError(string(provider), err)
			}
		}
		countRequest(provider, op, outcome)
		return "", err
	}
	return out, nil
}
