package handlers

import (
	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/rubric-evaluator/internal/models"
	"alfredoptarigan/rubric-evaluator/internal/services"
)

type UploadHandler struct {
	evaluations services.EvaluationService
	maxFileSize int64
}

func NewUploadHandler(evaluations services.EvaluationService, maxFileSize int64) *UploadHandler {
	return &UploadHandler{
		evaluations: evaluations,
		maxFileSize: maxFileSize,
	}
}

// HandleUploadSubmission handles POST /groups/:id/submissions with a multipart
// "file" field holding the group's PDF.
func (h *UploadHandler) HandleUploadSubmission(c *fiber.Ctx) error {
	groupID, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if !isMultipart(c) {
		return badRequest(c, "failed to parse multipart form")
	}

	file, err := readFormFile(c, "file", h.maxFileSize)
	if err != nil {
		return respondError(c, err)
	}

	submission, err := h.evaluations.UploadSubmission(c.UserContext(), groupID, file)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "File uploaded successfully",
		"submission": models.UploadResponse{
			ID:           submission.ID.String(),
			OriginalName: submission.OriginalFilename,
			StorageRef:   submission.StorageRef,
			ContentType:  "application/pdf",
			Status:       string(submission.Status),
		},
	})
}
