package services

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"alfredoptarigan/rubric-evaluator/internal/errs"
	"alfredoptarigan/rubric-evaluator/internal/models"
	"alfredoptarigan/rubric-evaluator/internal/repositories"
)

// UploadedFile is a document received from a client, already read into memory.
type UploadedFile struct {
	Filename string
	Data     []byte
}

type EvaluationService interface {
	CreateEvaluation(ctx context.Context, req *models.CreateEvaluationRequest, rubricFile *UploadedFile) (*models.Evaluation, error)
	GetEvaluation(ctx context.Context, id uuid.UUID) (*models.Evaluation, error)
	UpdateEvaluation(ctx context.Context, id uuid.UUID, req *models.UpdateEvaluationRequest) (*models.Evaluation, error)
	DeleteEvaluation(ctx context.Context, id uuid.UUID) error
	AddRubric(ctx context.Context, evaluationID uuid.UUID, req *models.AddRubricRequest, rubricFile *UploadedFile) (*models.Rubric, error)
	AppendRubricItems(ctx context.Context, rubricID uuid.UUID, items []models.RubricItemInput) ([]models.RubricItem, error)
	CreateGroup(ctx context.Context, evaluationID uuid.UUID, req *models.CreateGroupRequest) (*models.Group, error)
	UploadSubmission(ctx context.Context, groupID uuid.UUID, file *UploadedFile) (*models.Submission, error)
}

type evaluationService struct {
	evalRepo  repositories.EvaluationRepository
	groupRepo repositories.GroupRepository
	storage   ObjectStorage
	parser    PDFParserService
	index     SubmissionIndex
	bucket    string
	maxSize   int64
}

// NewEvaluationService wires the management operations. storage and index may be nil.
func NewEvaluationService(
	evalRepo repositories.EvaluationRepository,
	groupRepo repositories.GroupRepository,
	storage ObjectStorage,
	parser PDFParserService,
	index SubmissionIndex,
	bucket string,
	maxSize int64,
) EvaluationService {
	maxSize = documentLimit(maxSize)
	return &evaluationService{
		evalRepo:  evalRepo,
		groupRepo: groupRepo,
		storage:   storage,
		parser:    parser,
		index:     index,
		bucket:    bucket,
		maxSize:   maxSize,
	}
}

// CreateEvaluation stores the evaluation, its primary rubric and the rubric
// items as one unit. An uploaded rubric document is checked and stored first
// and removed again if the database write fails.
func (s *evaluationService) CreateEvaluation(ctx context.Context, req *models.CreateEvaluationRequest, rubricFile *UploadedFile) (*models.Evaluation, error) {
	if err := checkDuplicateOrders(req.Items); err != nil {
		return nil, err
	}

	evaluation := &models.Evaluation{
		ID:             uuid.New(),
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		ExpectedGroups: req.ExpectedGroups,
		OwnerID:        req.OwnerID,
	}

	rubric := models.Rubric{
		ID:           uuid.New(),
		EvaluationID: evaluation.ID,
		Title:        rubricTitle(req.RubricTitle, rubricFile),
		Items:        buildRubricItems(0, req.Items),
	}

	var storedRef *ObjectLocation
	switch {
	case rubricFile != nil:
		loc, err := s.storeRubricDocument(ctx, evaluation.ID, rubricFile)
		if err != nil {
			return nil, err
		}
		storedRef = loc
		ref := loc.String()
		rubric.SourceRef = &ref
	case req.RubricSourceRef != "":
		ref := req.RubricSourceRef
		rubric.SourceRef = &ref
	}

	evaluation.Rubrics = []models.Rubric{rubric}

	if err := s.evalRepo.Create(ctx, evaluation); err != nil {
		s.cleanup(ctx, storedRef)
		return nil, err
	}

	log.Printf("✅ Evaluation %s created with rubric %q (%d items)", evaluation.ID, rubric.Title, len(rubric.Items))
	return evaluation, nil
}

func (s *evaluationService) GetEvaluation(ctx context.Context, id uuid.UUID) (*models.Evaluation, error) {
	return s.evalRepo.FindByID(ctx, id)
}

func (s *evaluationService) UpdateEvaluation(ctx context.Context, id uuid.UUID, req *models.UpdateEvaluationRequest) (*models.Evaluation, error) {
	data := &repositories.EvaluationUpdateData{
		Title:          req.Title,
		Description:    req.Description,
		ExpectedGroups: req.ExpectedGroups,
		Archived:       req.Archived,
	}
	if data.Title != nil {
		title := strings.TrimSpace(*data.Title)
		if title == "" {
			return nil, fmt.Errorf("title cannot be empty: %w", errs.ErrInvalidArgument)
		}
		data.Title = &title
	}

	if err := s.evalRepo.Update(ctx, id, data); err != nil {
		return nil, err
	}
	return s.evalRepo.FindByID(ctx, id)
}

func (s *evaluationService) DeleteEvaluation(ctx context.Context, id uuid.UUID) error {
	if err := s.evalRepo.Delete(ctx, id); err != nil {
		return err
	}

	if s.index != nil {
		if err := s.index.RemoveEvaluation(ctx, id); err != nil {
			log.Printf("⚠️  Failed to remove vectors of evaluation %s: %v", id, err)
		}
	}

	log.Printf("🗑️  Evaluation %s deleted", id)
	return nil
}

func (s *evaluationService) AddRubric(ctx context.Context, evaluationID uuid.UUID, req *models.AddRubricRequest, rubricFile *UploadedFile) (*models.Rubric, error) {
	if err := checkDuplicateOrders(req.Items); err != nil {
		return nil, err
	}

	rubric := &models.Rubric{
		ID:           uuid.New(),
		EvaluationID: evaluationID,
		Title:        rubricTitle(req.Title, rubricFile),
		Items:        buildRubricItems(0, req.Items),
	}

	var storedRef *ObjectLocation
	switch {
	case rubricFile != nil:
		loc, err := s.storeRubricDocument(ctx, evaluationID, rubricFile)
		if err != nil {
			return nil, err
		}
		storedRef = loc
		ref := loc.String()
		rubric.SourceRef = &ref
	case req.SourceRef != "":
		ref := req.SourceRef
		rubric.SourceRef = &ref
	}

	if err := s.evalRepo.AddRubric(ctx, rubric); err != nil {
		s.cleanup(ctx, storedRef)
		return nil, err
	}

	return rubric, nil
}

// AppendRubricItems continues numbering after the rubric's highest order index
// unless an item carries its own.
func (s *evaluationService) AppendRubricItems(ctx context.Context, rubricID uuid.UUID, items []models.RubricItemInput) ([]models.RubricItem, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("at least one item is required: %w", errs.ErrInvalidArgument)
	}
	if err := checkDuplicateOrders(items); err != nil {
		return nil, err
	}

	return s.evalRepo.AppendRubricItems(ctx, rubricID, func(maxOrder int) []models.RubricItem {
		return buildRubricItems(maxOrder, items)
	})
}

func (s *evaluationService) CreateGroup(ctx context.Context, evaluationID uuid.UUID, req *models.CreateGroupRequest) (*models.Group, error) {
	group := &models.Group{
		ID:           uuid.New(),
		EvaluationID: evaluationID,
		Code:         strings.TrimSpace(req.Code),
		Name:         strings.TrimSpace(req.Name),
		StudentCount: req.StudentCount,
	}
	if group.Code == "" {
		return nil, fmt.Errorf("group code is required: %w", errs.ErrInvalidArgument)
	}

	if err := s.groupRepo.Create(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// UploadSubmission checks the document, stores it under the group's prefix and
// records it as the group's newest submission.
func (s *evaluationService) UploadSubmission(ctx context.Context, groupID uuid.UUID, file *UploadedFile) (*models.Submission, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("object storage is not configured: %w", errs.ErrInvalidArgument)
	}

	group, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	contentType, err := s.checkDocument(file)
	if err != nil {
		return nil, err
	}

	loc := &ObjectLocation{Bucket: s.bucket, Key: BuildSubmissionKey(group.EvaluationID, group.ID)}
	if err := s.storage.Put(ctx, loc.Bucket, loc.Key, file.Data, contentType); err != nil {
		return nil, fmt.Errorf("failed to store submission: %w", err)
	}

	submission := &models.Submission{
		ID:               uuid.New(),
		GroupID:          group.ID,
		OriginalFilename: filepath.Base(file.Filename),
		StorageRef:       loc.String(),
		Status:           models.SubmissionReceived,
		UploadedAt:       time.Now(),
	}

	if err := s.groupRepo.AddSubmission(ctx, submission); err != nil {
		s.cleanup(ctx, loc)
		return nil, err
	}

	log.Printf("📄 Submission %s stored for group %s at %s", submission.ID, group.Code, submission.StorageRef)
	return submission, nil
}

func (s *evaluationService) storeRubricDocument(ctx context.Context, evaluationID uuid.UUID, file *UploadedFile) (*ObjectLocation, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("object storage is not configured: %w", errs.ErrInvalidArgument)
	}

	contentType, err := s.checkDocument(file)
	if err != nil {
		return nil, err
	}

	if s.parser != nil {
		if _, err := s.parser.Extract(file.Data); err != nil {
			return nil, err
		}
	}

	loc := &ObjectLocation{Bucket: s.bucket, Key: BuildRubricKey(evaluationID)}
	if err := s.storage.Put(ctx, loc.Bucket, loc.Key, file.Data, contentType); err != nil {
		return nil, fmt.Errorf("failed to store rubric document: %w", err)
	}
	return loc, nil
}

// checkDocument enforces the size ceiling and that the bytes really are a PDF.
func (s *evaluationService) checkDocument(file *UploadedFile) (string, error) {
	if file == nil || len(file.Data) == 0 {
		return "", fmt.Errorf("file is empty: %w", errs.ErrInvalidArgument)
	}
	if int64(len(file.Data)) > s.maxSize {
		return "", fmt.Errorf("file is %d bytes, limit is %d: %w", len(file.Data), s.maxSize, errs.ErrPayloadTooLarge)
	}

	mtype := mimetype.Detect(file.Data)
	if !mtype.Is("application/pdf") {
		return "", fmt.Errorf("detected %s, expected application/pdf: %w", mtype.String(), errs.ErrInvalidFormat)
	}

	if err := ValidatePDF(file.Data, s.maxSize); err != nil {
		return "", err
	}
	return "application/pdf", nil
}

func (s *evaluationService) cleanup(ctx context.Context, loc *ObjectLocation) {
	if loc == nil || s.storage == nil {
		return
	}
	if err := s.storage.Delete(context.WithoutCancel(ctx), loc.Bucket, loc.Key); err != nil {
		log.Printf("⚠️  Failed to clean up %s: %v", loc, err)
	}
}

func rubricTitle(title string, file *UploadedFile) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	if file != nil && file.Filename != "" {
		name := filepath.Base(file.Filename)
		if t := strings.TrimSpace(strings.TrimSuffix(name, filepath.Ext(name))); t != "" {
			return t
		}
	}
	return models.DefaultRubricTitle
}

// buildRubricItems numbers items after maxOrder, honouring explicit order indices.
func buildRubricItems(maxOrder int, inputs []models.RubricItemInput) []models.RubricItem {
	items := make([]models.RubricItem, 0, len(inputs))
	next := maxOrder + 1

	for _, in := range inputs {
		order := next
		if in.OrderIndex != nil {
			order = *in.OrderIndex
		}
		if order >= next {
			next = order + 1
		}

		maxScore := models.DefaultItemMaxScore
		if in.MaxScore != nil {
			maxScore = *in.MaxScore
		}

		items = append(items, models.RubricItem{
			ID:         uuid.New(),
			OrderIndex: order,
			Title:      strings.TrimSpace(in.Title),
			Conditions: strings.TrimSpace(in.Conditions),
			MaxScore:   maxScore,
		})
	}

	return items
}

func checkDuplicateOrders(inputs []models.RubricItemInput) error {
	seen := make(map[int]bool)
	for _, in := range inputs {
		if in.OrderIndex == nil {
			continue
		}
		if seen[*in.OrderIndex] {
			return fmt.Errorf("duplicate order index %d: %w", *in.OrderIndex, errs.ErrInvalidArgument)
		}
		seen[*in.OrderIndex] = true
	}
	return nil
}
