package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"alfredoptarigan/rubric-evaluator/internal/errs"
	"alfredoptarigan/rubric-evaluator/internal/models"
)

type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Group, error)
	AddSubmission(ctx context.Context, submission *models.Submission) error
	FindSubmission(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	UpdateSubmissionStatus(ctx context.Context, id uuid.UUID, status models.SubmissionStatus) error
}

type groupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (g *groupRepository) Create(ctx context.Context, group *models.Group) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Evaluation{}).Where("id = ?", group.EvaluationID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(group).Error
	})
	if err != nil {
		return wrapErr("failed to create group", err)
	}
	return nil
}

// FindByID returns the group with its submissions, newest first.
func (g *groupRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	var group models.Group
	err := g.db.WithContext(ctx).
		Preload("Submissions", orderBy("uploaded_at DESC")).
		Where("id = ?", id).
		First(&group).Error
	if err != nil {
		return nil, wrapErr("failed to find group", err)
	}
	return &group, nil
}

func (g *groupRepository) AddSubmission(ctx context.Context, submission *models.Submission) error {
	result := g.db.WithContext(ctx).Create(submission)
	if result.Error != nil {
		return wrapErr("failed to create submission", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to create submission: %w", errs.ErrPersistence)
	}
	return nil
}

func (g *groupRepository) FindSubmission(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	var submission models.Submission
	if err := g.db.WithContext(ctx).Where("id = ?", id).First(&submission).Error; err != nil {
		return nil, wrapErr("failed to find submission", err)
	}
	return &submission, nil
}

func (g *groupRepository) UpdateSubmissionStatus(ctx context.Context, id uuid.UUID, status models.SubmissionStatus) error {
	result := g.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", id).
		Update("status", status)

	if result.Error != nil {
		return wrapErr("failed to update submission status", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("submission %s: %w", id, errs.ErrNotFound)
	}

	return nil
}
