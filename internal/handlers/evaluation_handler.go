package handlers

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/rubric-evaluator/internal/errs"
	"alfredoptarigan/rubric-evaluator/internal/models"
	"alfredoptarigan/rubric-evaluator/internal/services"
)

type EvaluationHandler struct {
	evaluations services.EvaluationService
	maxFileSize int64
}

func NewEvaluationHandler(evaluations services.EvaluationService, maxFileSize int64) *EvaluationHandler {
	return &EvaluationHandler{
		evaluations: evaluations,
		maxFileSize: maxFileSize,
	}
}

// HandleCreate handles POST /evaluations. The body is either JSON or a
// multipart form whose optional "file" is the rubric PDF and whose "items"
// field carries the rubric items as a JSON array.
func (h *EvaluationHandler) HandleCreate(c *fiber.Ctx) error {
	var (
		req  models.CreateEvaluationRequest
		file *services.UploadedFile
	)

	if isMultipart(c) {
		req = models.CreateEvaluationRequest{
			Title:           c.FormValue("title"),
			Description:     c.FormValue("description"),
			OwnerID:         c.FormValue("owner_id"),
			RubricTitle:     c.FormValue("rubric_title"),
			RubricSourceRef: c.FormValue("rubric_source_ref"),
		}
		if v := c.FormValue("expected_groups"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return badRequest(c, "expected_groups must be an integer")
			}
			req.ExpectedGroups = n
		}
		if err := decodeItemsField(c.FormValue("items"), &req.Items); err != nil {
			return respondError(c, err)
		}
		if err := checkStruct(&req); err != nil {
			return respondError(c, err)
		}

		var err error
		if file, err = h.optionalFile(c); err != nil {
			return respondError(c, err)
		}
	} else if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	evaluation, err := h.evaluations.CreateEvaluation(c.UserContext(), &req, file)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(evaluation)
}

// HandleGet handles GET /evaluations/:id
func (h *EvaluationHandler) HandleGet(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	evaluation, err := h.evaluations.GetEvaluation(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(evaluation)
}

// HandleUpdate handles PATCH /evaluations/:id
func (h *EvaluationHandler) HandleUpdate(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req models.UpdateEvaluationRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	evaluation, err := h.evaluations.UpdateEvaluation(c.UserContext(), id, &req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(evaluation)
}

// HandleDelete handles DELETE /evaluations/:id
func (h *EvaluationHandler) HandleDelete(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.evaluations.DeleteEvaluation(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// HandleAddRubric handles POST /evaluations/:id/rubrics (JSON or multipart).
func (h *EvaluationHandler) HandleAddRubric(c *fiber.Ctx) error {
	evalID, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var (
		req  models.AddRubricRequest
		file *services.UploadedFile
	)

	if isMultipart(c) {
		req = models.AddRubricRequest{
			Title:     c.FormValue("title"),
			SourceRef: c.FormValue("source_ref"),
		}
		if err := decodeItemsField(c.FormValue("items"), &req.Items); err != nil {
			return respondError(c, err)
		}
		if file, err = h.optionalFile(c); err != nil {
			return respondError(c, err)
		}
		if err := checkStruct(&req); err != nil {
			return respondError(c, err)
		}
	} else if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	rubric, err := h.evaluations.AddRubric(c.UserContext(), evalID, &req, file)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(rubric)
}

// HandleAppendItems handles POST /rubrics/:id/items
func (h *EvaluationHandler) HandleAppendItems(c *fiber.Ctx) error {
	rubricID, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req models.AppendRubricItemsRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	items, err := h.evaluations.AppendRubricItems(c.UserContext(), rubricID, req.Items)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"items": items,
	})
}

// HandleCreateGroup handles POST /evaluations/:id/groups
func (h *EvaluationHandler) HandleCreateGroup(c *fiber.Ctx) error {
	evalID, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req models.CreateGroupRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	group, err := h.evaluations.CreateGroup(c.UserContext(), evalID, &req)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(group)
}

func (h *EvaluationHandler) optionalFile(c *fiber.Ctx) (*services.UploadedFile, error) {
	if _, err := c.FormFile("file"); err != nil {
		return nil, nil
	}
	return readFormFile(c, "file", h.maxFileSize)
}

func decodeItemsField(raw string, items *[]models.RubricItemInput) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), items); err != nil {
		return fmt.Errorf("items must be a JSON array: %w", errs.ErrInvalidArgument)
	}
	return nil
}
