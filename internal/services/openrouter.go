package services

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"alfredoptarigan/rubric-evaluator/internal/config"
)

type openRouterService struct {
	client *resty.Client
	model  string
}

// NewOpenRouterService talks to an OpenAI-compatible chat completions endpoint.
func NewOpenRouterService(cfg config.OpenRouterConfig) LLMProvider {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Title", cfg.Title)

	return &openRouterService{
		client: client,
		model:  cfg.Model,
	}
}

func (s *openRouterService) Name() Provider {
	return ProviderOpenRouter
}

func (s *openRouterService) GenerateText(ctx context.Context, prompt, model string) (string, error) {
	if model == "" {
		model = s.model
	}

	return s.chat(ctx, map[string]any{
		"model":       model,
		"temperature": 0.1,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	})
}

func (s *openRouterService) GenerateStructured(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return s.chat(ctx, map[string]any{
		"model":       s.model,
		"temperature": 0.1,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "rubric_analysis",
				"strict": true,
				"schema": RubricAnalysisSchema,
			},
		},
	})
}

func (s *openRouterService) chat(ctx context.Context, body map[string]any) (string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("openrouter request failed: %w", err)
	}

	if resp.IsError() {
		msg := gjson.Get(resp.String(), "error.message").String()
		if msg == "" {
			msg = resp.Status()
		}
		return "", fmt.Errorf("openrouter status %d: %s", resp.StatusCode(), msg)
	}

	// Some upstream models report failures inside a 200 body.
	if errMsg := gjson.Get(resp.String(), "error.message"); errMsg.Exists() {
		return "", fmt.Errorf("openrouter error: %s", errMsg.String())
	}

	text := gjson.Get(resp.String(), "choices.0.message.content").String()
	if text == "" {
		return "", fmt.Errorf("no response from LLM")
	}

	return text, nil
}
