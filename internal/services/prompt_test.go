package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/rubric-evaluator/internal/models"
)

func TestComputeMaxScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		context string
		want    float64
	}{
		{"two items", "1. A (Max score: 5)\n2. B (Max score: 5)", 10},
		{"no scores", "Criterios sin puntaje", DefaultMaxScore},
		{"case insensitive", "MAX SCORE: 4\nmax score: 2.5", 6.5},
		{"maximum spelling", "Maximum score: 3", 3},
		{"only zeros", "Max score: 0", DefaultMaxScore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, ComputeMaxScore(tt.context), 1e-9)
		})
	}
}

func TestBuildRubricContext_OrdersItemsAndIncludesDocument(t *testing.T) {
	t.Parallel()

	ref := "s3://b/evaluations/x/rubrics/r.pdf"
	locator := &fakeLocator{docs: map[string]string{ref: "Contenido   de la rúbrica"}}
	pb := NewPromptBuilder(locator, fakeParser{})

	rubrics := []models.Rubric{{
		ID:        uuid.New(),
		Title:     "Informe final",
		SourceRef: &ref,
		Items: []models.RubricItem{
			{OrderIndex: 2, Title: "Conclusiones", MaxScore: 4},
			{OrderIndex: 1, Title: "Introducción", Conditions: "Plantea el problema", MaxScore: 6},
		},
	}}

	out := pb.BuildRubricContext(context.Background(), rubrics)

	assert.Contains(t, out, "=== RÚBRICA: Informe final ===")
	assert.Contains(t, out, "Rubric content from PDF:\nContenido de la rúbrica")
	assert.Contains(t, out, "1. Introducción (Max score: 6)\n   Condiciones: Plantea el problema")
	assert.Contains(t, out, "2. Conclusiones (Max score: 4)")
	assert.Less(t, strings.Index(out, "Introducción"), strings.Index(out, "Conclusiones"))
	assert.InDelta(t, 10.0, ComputeMaxScore(out), 1e-9)
}

func TestBuildRubricContext_SkipsUnreadableDocument(t *testing.T) {
	t.Parallel()

	missing := "s3://b/missing.pdf"
	pb := NewPromptBuilder(&fakeLocator{docs: map[string]string{}}, fakeParser{})

	out := pb.BuildRubricContext(context.Background(), []models.Rubric{
		{Title: "A", SourceRef: &missing, Items: []models.RubricItem{{OrderIndex: 1, Title: "Uno", MaxScore: 1}}},
		{Title: "B"},
	})

	assert.NotContains(t, out, "Rubric content from PDF")
	assert.Contains(t, out, "=== RÚBRICA: A ===")
	assert.Contains(t, out, "=== RÚBRICA: B ===")
	assert.Contains(t, out, "1. Uno (Max score: 1)")
}

func TestBuildGroupPrompt(t *testing.T) {
	t.Parallel()

	pb := NewPromptBuilder(nil, nil)
	prompt := pb.BuildGroupPrompt("Proyecto", "1. A (Max score: 5)\n2. B (Max score: 5)", "G1", "Los Pumas", "texto del grupo")

	assert.Equal(t, gradingSystemPrompt, prompt.SystemPrompt)
	assert.Contains(t, prompt.UserPrompt, "EVALUACIÓN: Proyecto")
	assert.Contains(t, prompt.UserPrompt, "PUNTAJE MÁXIMO TOTAL: 10")
	assert.Contains(t, prompt.UserPrompt, "GRUPO: G1 (Los Pumas)")
	assert.Contains(t, prompt.UserPrompt, "texto del grupo")
}

func TestBuildChunkPrompt(t *testing.T) {
	t.Parallel()

	pb := NewPromptBuilder(nil, nil)
	out := pb.BuildChunkPrompt("Resume", "contenido", 2, 3)

	require.True(t, strings.HasPrefix(out, "Resume\n"))
	assert.Contains(t, out, "parte 2 de 3")
	assert.Contains(t, out, "--- PARTE 2/3 ---\ncontenido\n--- FIN DE LA PARTE 2/3 ---")
}
