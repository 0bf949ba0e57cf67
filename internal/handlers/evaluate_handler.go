package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"alfredoptarigan/rubric-evaluator/internal/models"
	"alfredoptarigan/rubric-evaluator/internal/services"
)

type AnalysisHandler struct {
	analysis services.AnalysisService
}

func NewAnalysisHandler(analysis services.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{
		analysis: analysis,
	}
}

// HandleAnalyzeEvaluation handles POST /evaluations/:id/analyses
func (h *AnalysisHandler) HandleAnalyzeEvaluation(c *fiber.Ctx) error {
	evalID, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req models.AnalyzeRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	provider, err := services.ParseProvider(req.Provider)
	if err != nil {
		return respondError(c, err)
	}

	outcome, err := h.analysis.AnalyzeEvaluation(c.UserContext(), evalID, provider)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(models.AnalyzeResponse{
		AnalysisID:     outcome.AnalysisID.String(),
		Message:        outcome.Message(),
		GroupsAnalyzed: outcome.GroupsAnalyzed,
		GroupsSkipped:  outcome.GroupsSkipped,
		GroupsFailed:   outcome.GroupsFailed,
	})
}

// HandleAnalyzeGroup handles POST /groups/:id/analyze. The result is not stored.
func (h *AnalysisHandler) HandleAnalyzeGroup(c *fiber.Ctx) error {
	groupID, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req models.AnalyzeRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	provider, err := services.ParseProvider(req.Provider)
	if err != nil {
		return respondError(c, err)
	}

	result, err := h.analysis.AnalyzeGroup(c.UserContext(), groupID, provider)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(result)
}

// HandleAnalyzeChunks handles POST /analyze/chunks
func (h *AnalysisHandler) HandleAnalyzeChunks(c *fiber.Ctx) error {
	var req models.ChunkAnalysisRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	provider, err := services.ParseProvider(req.Provider)
	if err != nil {
		return respondError(c, err)
	}

	in := services.ChunkAnalysisInput{
		DocumentRef: req.DocumentRef,
		Instruction: req.Instruction,
		ChunkSize:   req.ChunkSize,
		Provider:    provider,
		Model:       req.Model,
	}
	if req.SubmissionID != "" {
		id, err := uuid.Parse(req.SubmissionID)
		if err != nil {
			return badRequest(c, "Invalid submission_id format")
		}
		in.SubmissionID = &id
	}

	responses, err := h.analysis.AnalyzeInChunks(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"chunks": responses,
	})
}

// HandleAnalyzeDocument handles POST /analyze/document
func (h *AnalysisHandler) HandleAnalyzeDocument(c *fiber.Ctx) error {
	var req models.DocumentAnalysisRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	provider, err := services.ParseProvider(req.Provider)
	if err != nil {
		return respondError(c, err)
	}

	out, err := h.analysis.AnalyzeDocument(c.UserContext(), services.DocumentAnalysisInput{
		DocumentRef: req.DocumentRef,
		Instruction: req.Instruction,
		MaxTokens:   req.MaxTokens,
		Provider:    provider,
		Model:       req.Model,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"response": out,
	})
}
