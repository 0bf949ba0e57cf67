package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"alfredoptarigan/rubric-evaluator/internal/errs"
	"alfredoptarigan/rubric-evaluator/internal/models"
)

type AnalysisRepository interface {
	Create(ctx context.Context, analysis *models.Analysis) error
	MarkCompleted(ctx context.Context, id uuid.UUID, endedAt time.Time, notes string) error
	SaveGroupResult(ctx context.Context, result *models.AnalysisResult, recs []models.Recommendation, submissionID uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Analysis, error)
}

type analysisRepository struct {
	db *gorm.DB
}

func NewAnalysisRepository(db *gorm.DB) AnalysisRepository {
	return &analysisRepository{db: db}
}

func (r *analysisRepository) Create(ctx context.Context, analysis *models.Analysis) error {
	if err := r.db.WithContext(ctx).Create(analysis).Error; err != nil {
		return wrapErr("failed to create analysis", err)
	}
	return nil
}

func (r *analysisRepository) MarkCompleted(ctx context.Context, id uuid.UUID, endedAt time.Time, notes string) error {
	result := r.db.WithContext(ctx).Model(&models.Analysis{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"ended_at": endedAt,
			"notes":    notes,
		})

	if result.Error != nil {
		return wrapErr("failed to complete analysis", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("analysis %s: %w", id, errs.ErrNotFound)
	}

	return nil
}

// SaveGroupResult persists one group's result, its recommendations and the
// submission status change as a single unit.
func (r *analysisRepository) SaveGroupResult(ctx context.Context, result *models.AnalysisResult, recs []models.Recommendation, submissionID uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(result).Error; err != nil {
			return err
		}
		if len(recs) > 0 {
			if err := tx.Create(&recs).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.Submission{}).
			Where("id = ?", submissionID).
			Update("status", models.SubmissionAnalyzed).Error
	})
	if err != nil {
		return wrapErr("failed to save group result", err)
	}
	return nil
}

func (r *analysisRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Analysis, error) {
	var analysis models.Analysis
	err := r.db.WithContext(ctx).
		Preload("Results", orderBy("created_at ASC")).
		Preload("Recommendations", orderBy("group_id ASC, priority ASC")).
		Where("id = ?", id).
		First(&analysis).Error
	if err != nil {
		return nil, wrapErr("failed to find analysis", err)
	}
	return &analysis, nil
}
