package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Evaluations *EvaluationHandler
	Uploads     *UploadHandler
	Analysis    *AnalysisHandler
	Results     *ResultHandler
}

// RegisterRoutes mounts the API under router. analysisLimit guards every
// route that calls a model provider; pass nil to disable it.
func RegisterRoutes(router fiber.Router, h Handlers, analysisLimit fiber.Handler) {
	if analysisLimit == nil {
		analysisLimit = func(c *fiber.Ctx) error { return c.Next() }
	}

	router.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	router.Post("/evaluations", h.Evaluations.HandleCreate)
	router.Get("/evaluations/:id", h.Evaluations.HandleGet)
	router.Patch("/evaluations/:id", h.Evaluations.HandleUpdate)
	router.Delete("/evaluations/:id", h.Evaluations.HandleDelete)
	router.Post("/evaluations/:id/rubrics", h.Evaluations.HandleAddRubric)
	router.Post("/rubrics/:id/items", h.Evaluations.HandleAppendItems)
	router.Post("/evaluations/:id/groups", h.Evaluations.HandleCreateGroup)
	router.Post("/groups/:id/submissions", h.Uploads.HandleUploadSubmission)

	router.Post("/evaluations/:id/analyses", analysisLimit, h.Analysis.HandleAnalyzeEvaluation)
	router.Post("/groups/:id/analyze", analysisLimit, h.Analysis.HandleAnalyzeGroup)
	router.Post("/analyze/chunks", analysisLimit, h.Analysis.HandleAnalyzeChunks)
	router.Post("/analyze/document", analysisLimit, h.Analysis.HandleAnalyzeDocument)

	router.Get("/analyses/:id", h.Results.HandleGetAnalysis)
	router.Get("/evaluations/:id/groups/:groupId/similar", h.Results.HandleSimilarGroups)
}
