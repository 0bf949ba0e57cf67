package services

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"alfredoptarigan/rubric-evaluator/internal/models"
)

// DefaultMaxScore is used when a rubric context declares no item scores.
const DefaultMaxScore = 20.0

var maxScorePattern = regexp.MustCompile(`(?i)max(?:imum)?\s*score:\s*([0-9]+(?:\.[0-9]+)?)`)

const gradingSystemPrompt = `Eres un evaluador académico experto. Calificas entregas de grupos de estudiantes usando EXCLUSIVAMENTE la rúbrica proporcionada.

Reglas:
1. La calificación se basa estrictamente en los criterios de la rúbrica. No inventes criterios nuevos.
2. Para cada criterio asigna un nivel de logro:
   - SATISFACTORIO: cumple completamente (100% del puntaje máximo del criterio)
   - BUENO: cumple con detalles menores pendientes (75%)
   - REGULAR: cumple parcialmente (50%)
   - INSATISFACTORIO: no cumple o cumple de forma mínima (25%)
   Usa estos porcentajes solo cuando la rúbrica no defina un desglose de puntaje propio.
3. La retroalimentación debe citar evidencia concreta del documento (secciones, afirmaciones, datos).
4. El puntaje total es la suma de los puntajes por criterio y no puede superar el puntaje máximo.
5. El estado es PASS si el porcentaje es al menos 70, PARTIAL si está entre 50 y 70, y FAIL si es menor a 50.
6. Cada recomendación lleva prioridad 1 (alta), 2 (media) o 3 (baja).
7. Responde únicamente con el objeto JSON solicitado, en español.`

type GroupPrompt struct {
	SystemPrompt string
	UserPrompt   string
}

type PromptBuilder struct {
	locator DocumentLocator
	parser  PDFParserService
}

func NewPromptBuilder(locator DocumentLocator, parser PDFParserService) *PromptBuilder {
	return &PromptBuilder{
		locator: locator,
		parser:  parser,
	}
}

// BuildRubricContext renders every rubric with its optional source document
// text and its items in ascending order. A rubric document that cannot be
// read is logged and left out.
func (pb *PromptBuilder) BuildRubricContext(ctx context.Context, rubrics []models.Rubric) string {
	var sb strings.Builder

	for i, rubric := range rubrics {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "=== RÚBRICA: %s ===\n", rubric.Title)

		if rubric.SourceRef != nil && *rubric.SourceRef != "" {
			if text, err := pb.rubricDocumentText(ctx, *rubric.SourceRef); err != nil {
				log.Printf("⚠️  Rubric %s: skipping source document %s: %v", rubric.ID, *rubric.SourceRef, err)
			} else if text != "" {
				sb.WriteString("\nRubric content from PDF:\n")
				sb.WriteString(text)
				sb.WriteString("\n")
			}
		}

		if len(rubric.Items) == 0 {
			continue
		}

		sb.WriteString("\nCriterios:\n")
		for n, item := range sortedItems(rubric.Items) {
			fmt.Fprintf(&sb, "%d. %s (Max score: %s)\n", n+1, item.Title, formatScore(item.MaxScore))
			if conditions := strings.TrimSpace(item.Conditions); conditions != "" {
				fmt.Fprintf(&sb, "   Condiciones: %s\n", conditions)
			}
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

func (pb *PromptBuilder) rubricDocumentText(ctx context.Context, ref string) (string, error) {
	if pb.locator == nil || pb.parser == nil {
		return "", fmt.Errorf("document access is not configured")
	}

	data, err := pb.locator.FetchBytes(ctx, ref)
	if err != nil {
		return "", err
	}

	content, err := pb.parser.Extract(data)
	if err != nil {
		return "", err
	}

	return CleanText(content.Text), nil
}

// ComputeMaxScore sums every "max score: N" in the context, case-insensitively.
func ComputeMaxScore(rubricContext string) float64 {
	matches := maxScorePattern.FindAllStringSubmatch(rubricContext, -1)
	if len(matches) == 0 {
		return DefaultMaxScore
	}

	var total float64
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		total += v
	}

	if total <= 0 {
		return DefaultMaxScore
	}
	return total
}

// BuildGroupPrompt does not truncate; callers pass document text already cut
// to the provider budget.
func (pb *PromptBuilder) BuildGroupPrompt(evaluationTitle, rubricContext, groupCode, groupName, documentText string) GroupPrompt {
	group := groupCode
	if groupName != "" {
		group = fmt.Sprintf("%s (%s)", groupCode, groupName)
	}

	user := fmt.Sprintf(`EVALUACIÓN: %s

RÚBRICA DE EVALUACIÓN:
%s

PUNTAJE MÁXIMO TOTAL: %s

GRUPO: %s

DOCUMENTO ENTREGADO:
%s

Evalúa el documento del grupo contra cada criterio de la rúbrica y devuelve el análisis estructurado.`,
		evaluationTitle, rubricContext, formatScore(ComputeMaxScore(rubricContext)), group, documentText)

	return GroupPrompt{
		SystemPrompt: gradingSystemPrompt,
		UserPrompt:   user,
	}
}

// BuildChunkPrompt frames one part of a document split for sequential analysis.
// index is 1-based.
func (pb *PromptBuilder) BuildChunkPrompt(instruction, chunk string, index, total int) string {
	return fmt.Sprintf(`%s

Estás analizando la parte %d de %d de un documento más extenso. Responde solo sobre el contenido de esta parte; las demás partes se analizan por separado.

--- PARTE %d/%d ---
%s
--- FIN DE LA PARTE %d/%d ---`,
		instruction, index, total, index, total, chunk, index, total)
}

func (pb *PromptBuilder) BuildDocumentPrompt(instruction, documentText string) string {
	return fmt.Sprintf(`%s

--- DOCUMENTO ---
%s
--- FIN DEL DOCUMENTO ---`, instruction, documentText)
}

func sortedItems(items []models.RubricItem) []models.RubricItem {
	sorted := make([]models.RubricItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OrderIndex < sorted[j].OrderIndex
	})
	return sorted
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
