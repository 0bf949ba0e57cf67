package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"unicode/utf8"

	"google.golang.org/genai"

	"alfredoptarigan/rubric-evaluator/internal/config"
)

const maxEmbeddingChars = 10000

type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type GeminiService interface {
	LLMProvider
	Embedder
}

type geminiService struct {
	client     *genai.Client
	modelName  string
	embedModel string
}

func NewGeminiService(ctx context.Context, cfg config.GeminiConfig) (GeminiService, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &geminiService{
		client:     client,
		modelName:  cfg.Model,
		embedModel: cfg.EmbedModel,
	}, nil
}

func (g *geminiService) Name() Provider {
	return ProviderGemini
}

// GenerateEmbedding implements Embedder.
func (g *geminiService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if utf8.RuneCountInString(text) > maxEmbeddingChars {
		text = string([]rune(text)[:maxEmbeddingChars])
	}

	result, err := g.client.Models.EmbedContent(ctx, g.embedModel, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", describeGenaiError(err))
	}

	if result == nil || len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}

	return result.Embeddings[0].Values, nil
}

// GenerateText implements LLMProvider.
func (g *geminiService) GenerateText(ctx context.Context, prompt, model string) (string, error) {
	if model == "" {
		model = g.modelName
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.1)),
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), genConfig)
	if err != nil {
		log.Printf("❌ Gemini API error: %v", err)
		return "", fmt.Errorf("failed to generate text: %w", describeGenaiError(err))
	}

	return responseText(resp)
}

// GenerateStructured implements LLMProvider with a response schema.
func (g *geminiService) GenerateStructured(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	genConfig := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(0.1)),
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    rubricAnalysisGenaiSchema(),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(userPrompt), genConfig)
	if err != nil {
		log.Printf("❌ Gemini API error: %v", err)
		return "", fmt.Errorf("failed to generate structured analysis: %w", describeGenaiError(err))
	}

	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("no response generated (nil response)")
	}

	text := resp.Text()
	if text == "" {
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
			return "", fmt.Errorf("no text content in response (finish reason %s)", resp.Candidates[0].FinishReason)
		}
		return "", fmt.Errorf("no text content in response")
	}

	return text, nil
}

// describeGenaiError keeps the HTTP status of API errors visible in logs.
func describeGenaiError(err error) error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("gemini status %d (%s): %w", apiErr.Code, apiErr.Status, err)
	}
	return err
}

func rubricAnalysisGenaiSchema() *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	num := &genai.Schema{Type: genai.TypeNumber}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"group_code":  str,
			"total_score": num,
			"max_score":   num,
			"percentage":  num,
			"status": {
				Type: genai.TypeString,
				Enum: []string{"PASS", "FAIL", "PARTIAL"},
			},
			"criteria": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name":      str,
						"score":     num,
						"max_score": num,
						"level": {
							Type: genai.TypeString,
							Enum: []string{"SATISFACTORIO", "BUENO", "REGULAR", "INSATISFACTORIO"},
						},
						"feedback": str,
					},
					Required: []string{"name", "score", "max_score", "level", "feedback"},
				},
			},
			"general_feedback": str,
			"strengths":        {Type: genai.TypeArray, Items: str},
			"improvements":     {Type: genai.TypeArray, Items: str},
			"recommendations": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"priority": {
							Type:    genai.TypeInteger,
							Minimum: genai.Ptr(1.0),
							Maximum: genai.Ptr(3.0),
						},
						"summary": str,
						"detail":  str,
					},
					Required: []string{"priority", "summary", "detail"},
				},
			},
		},
		Required: []string{
			"group_code", "total_score", "max_score", "percentage", "status",
			"criteria", "general_feedback", "strengths", "improvements", "recommendations",
		},
	}
}
