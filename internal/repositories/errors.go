package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"alfredoptarigan/rubric-evaluator/internal/errs"
)

// wrapErr maps gorm errors onto the shared taxonomy.
func wrapErr(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, errs.ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %v", op, errs.ErrPersistence, err)
}
