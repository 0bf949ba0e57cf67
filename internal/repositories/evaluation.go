package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"alfredoptarigan/rubric-evaluator/internal/errs"
	"alfredoptarigan/rubric-evaluator/internal/models"
)

type EvaluationRepository interface {
	Create(ctx context.Context, eval *models.Evaluation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Evaluation, error)
	LoadForAnalysis(ctx context.Context, id uuid.UUID) (*models.Evaluation, error)
	Update(ctx context.Context, id uuid.UUID, data *EvaluationUpdateData) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddRubric(ctx context.Context, rubric *models.Rubric) error
	FindRubric(ctx context.Context, id uuid.UUID) (*models.Rubric, error)
	AppendRubricItems(ctx context.Context, rubricID uuid.UUID, build func(maxOrder int) []models.RubricItem) ([]models.RubricItem, error)
}

type EvaluationUpdateData struct {
	Title          *string
	Description    *string
	ExpectedGroups *int
	Archived       *bool
}

type evaluationRepository struct {
	db *gorm.DB
}

func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

// Create stores the evaluation together with its rubrics and items in one transaction.
func (r *evaluationRepository) Create(ctx context.Context, eval *models.Evaluation) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rubrics := eval.Rubrics
		eval.Rubrics = nil
		defer func() { eval.Rubrics = rubrics }()

		if err := tx.Omit(clause.Associations).Create(eval).Error; err != nil {
			return err
		}
		for i := range rubrics {
			rubrics[i].EvaluationID = eval.ID
			if err := tx.Create(&rubrics[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return wrapErr("failed to create evaluation", err)
	}
	return nil
}

func (r *evaluationRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Evaluation, error) {
	var eval models.Evaluation
	err := r.db.WithContext(ctx).
		Preload("Rubrics", orderBy("created_at ASC")).
		Preload("Rubrics.Items", orderBy("order_index ASC")).
		Preload("Groups", orderBy("code ASC")).
		Where("id = ?", id).
		First(&eval).Error
	if err != nil {
		return nil, wrapErr("failed to find evaluation", err)
	}
	return &eval, nil
}

// LoadForAnalysis eager-loads rubrics with items and groups with their
// submissions (newest first) in a single call.
func (r *evaluationRepository) LoadForAnalysis(ctx context.Context, id uuid.UUID) (*models.Evaluation, error) {
	var eval models.Evaluation
	err := r.db.WithContext(ctx).
		Preload("Rubrics", orderBy("created_at ASC")).
		Preload("Rubrics.Items", orderBy("order_index ASC")).
		Preload("Groups", orderBy("code ASC")).
		Preload("Groups.Submissions", orderBy("uploaded_at DESC")).
		Where("id = ?", id).
		First(&eval).Error
	if err != nil {
		return nil, wrapErr("failed to load evaluation", err)
	}
	return &eval, nil
}

func (r *evaluationRepository) Update(ctx context.Context, id uuid.UUID, data *EvaluationUpdateData) error {
	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}

	if data.Title != nil {
		updates["title"] = *data.Title
	}
	if data.Description != nil {
		updates["description"] = *data.Description
	}
	if data.ExpectedGroups != nil {
		updates["expected_groups"] = *data.ExpectedGroups
	}
	if data.Archived != nil {
		updates["archived"] = *data.Archived
	}

	result := r.db.WithContext(ctx).Model(&models.Evaluation{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return wrapErr("failed to update evaluation", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("evaluation %s: %w", id, errs.ErrNotFound)
	}

	return nil
}

// Delete removes the evaluation; owned rows go with it through ON DELETE CASCADE.
func (r *evaluationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Evaluation{})
	if result.Error != nil {
		return wrapErr("failed to delete evaluation", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("evaluation %s: %w", id, errs.ErrNotFound)
	}
	return nil
}

func (r *evaluationRepository) AddRubric(ctx context.Context, rubric *models.Rubric) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Evaluation{}).Where("id = ?", rubric.EvaluationID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(rubric).Error
	})
	if err != nil {
		return wrapErr("failed to add rubric", err)
	}
	return nil
}

func (r *evaluationRepository) FindRubric(ctx context.Context, id uuid.UUID) (*models.Rubric, error) {
	var rubric models.Rubric
	err := r.db.WithContext(ctx).
		Preload("Items", orderBy("order_index ASC")).
		Where("id = ?", id).
		First(&rubric).Error
	if err != nil {
		return nil, wrapErr("failed to find rubric", err)
	}
	return &rubric, nil
}

// AppendRubricItems reads the current maximum order index under a row lock on
// the rubric and inserts whatever build returns, all in one transaction.
func (r *evaluationRepository) AppendRubricItems(ctx context.Context, rubricID uuid.UUID, build func(maxOrder int) []models.RubricItem) ([]models.RubricItem, error) {
	var items []models.RubricItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rubric models.Rubric
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", rubricID).
			First(&rubric).Error; err != nil {
			return err
		}

		var maxOrder int
		if err := tx.Model(&models.RubricItem{}).
			Where("rubric_id = ?", rubricID).
			Select("COALESCE(MAX(order_index), 0)").
			Scan(&maxOrder).Error; err != nil {
			return err
		}

		items = build(maxOrder)
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].RubricID = rubricID
		}
		return tx.Create(&items).Error
	})
	if err != nil {
		return nil, wrapErr("failed to append rubric items", err)
	}
	return items, nil
}

func orderBy(order string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(order)
	}
}
