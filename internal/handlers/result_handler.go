package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/rubric-evaluator/internal/models"
	"alfredoptarigan/rubric-evaluator/internal/services"
)

type ResultHandler struct {
	analysis services.AnalysisService
	// index is nil when no vector store is configured.
	index services.SubmissionIndex
}

func NewResultHandler(analysis services.AnalysisService, index services.SubmissionIndex) *ResultHandler {
	return &ResultHandler{
		analysis: analysis,
		index:    index,
	}
}

// HandleGetAnalysis handles GET /analyses/:id
func (h *ResultHandler) HandleGetAnalysis(c *fiber.Ctx) error {
	analysisID, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	analysis, err := h.analysis.GetAnalysis(c.UserContext(), analysisID)
	if err != nil {
		return respondError(c, err)
	}

	response := models.AnalysisResponse{
		ID:              analysis.ID.String(),
		EvaluationID:    analysis.EvaluationID.String(),
		Engine:          analysis.Engine,
		State:           string(analysis.State()),
		Notes:           analysis.Notes,
		StartedAt:       analysis.StartedAt.Format(time.RFC3339),
		Results:         analysis.Results,
		Recommendations: analysis.Recommendations,
	}
	if response.Results == nil {
		response.Results = []models.AnalysisResult{}
	}
	if response.Recommendations == nil {
		response.Recommendations = []models.Recommendation{}
	}

	if analysis.EndedAt != nil {
		ended := analysis.EndedAt.Format(time.RFC3339)
		response.EndedAt = &ended
	}

	return c.JSON(response)
}

// HandleSimilarGroups handles GET /evaluations/:id/groups/:groupId/similar
func (h *ResultHandler) HandleSimilarGroups(c *fiber.Ctx) error {
	if h.index == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Similarity index is not configured",
		})
	}

	evalID, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	groupID, err := parseUUIDParam(c, "groupId")
	if err != nil {
		return respondError(c, err)
	}

	limit := c.QueryInt("limit", 5)
	if limit < 1 || limit > 50 {
		return badRequest(c, "limit must be between 1 and 50")
	}

	similar, err := h.index.FindSimilar(c.UserContext(), evalID, groupID, limit)
	if err != nil {
		return respondError(c, err)
	}
	if similar == nil {
		similar = []models.SimilarGroup{}
	}

	return c.JSON(fiber.Map{
		"group_id": groupID.String(),
		"similar":  similar,
	})
}
