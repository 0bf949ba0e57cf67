package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"alfredoptarigan/rubric-evaluator/internal/errs"
	"alfredoptarigan/rubric-evaluator/internal/services"
)

var validate = validator.New()

// statusFor maps the error taxonomy to an HTTP status. Timeouts are checked
// before generic provider errors since they are provider errors too.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrInvalidArgument), errors.Is(err, errs.ErrInvalidReference):
		return fiber.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, errs.ErrPayloadTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, errs.ErrInvalidFormat):
		return fiber.StatusUnsupportedMediaType
	case errors.Is(err, errs.ErrCorruptDocument), errors.Is(err, errs.ErrSchemaParse):
		return fiber.StatusUnprocessableEntity
	case errs.IsTimeout(err):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, errs.ErrProvider):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	var verr *validationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "Validation failed",
			"fields": verr.fields,
		})
	}

	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		log.Printf("❌ %s %s failed: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
	})
}

// validationError lists the request fields that failed their validate tags.
type validationError struct {
	fields []string
}

func (e *validationError) Error() string {
	return "validation failed: " + strings.Join(e.fields, "; ")
}

func (e *validationError) Unwrap() error { return errs.ErrInvalidArgument }

// parseBody decodes the request body and runs the validate tags on it.
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("invalid request payload: %w", errs.ErrInvalidArgument)
	}
	return checkStruct(out)
}

func checkStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%v: %w", err, errs.ErrInvalidArgument)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
	}
	return &validationError{fields: fields}
}

func parseUUIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s format: %w", name, errs.ErrInvalidArgument)
	}
	return id, nil
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm)
}

// readFormFile loads the named multipart file into memory, reading at most
// limit+1 bytes so oversized uploads are still detected.
func readFormFile(c *fiber.Ctx, field string, limit int64) (*services.UploadedFile, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("multipart field '%s' is required: %w", field, errs.ErrInvalidArgument)
	}
	if fh.Size > limit {
		return nil, fmt.Errorf("file is %d bytes, limit is %d: %w", fh.Size, limit, errs.ErrPayloadTooLarge)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}

	return &services.UploadedFile{Filename: fh.Filename, Data: data}, nil
}
