package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"alfredoptarigan/rubric-evaluator/internal/errs"
	"alfredoptarigan/rubric-evaluator/internal/models"
	"alfredoptarigan/rubric-evaluator/internal/repositories"
)

type fakeEvaluationRepo struct {
	mu          sync.Mutex
	evaluations map[uuid.UUID]*models.Evaluation
	createErr   error
}

func newFakeEvaluationRepo() *fakeEvaluationRepo {
	return &fakeEvaluationRepo{evaluations: make(map[uuid.UUID]*models.Evaluation)}
}

func (f *fakeEvaluationRepo) Create(_ context.Context, eval *models.Evaluation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for i := range eval.Rubrics {
		eval.Rubrics[i].EvaluationID = eval.ID
		for j := range eval.Rubrics[i].Items {
			eval.Rubrics[i].Items[j].RubricID = eval.Rubrics[i].ID
		}
	}
	f.evaluations[eval.ID] = eval
	return nil
}

func (f *fakeEvaluationRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	eval, ok := f.evaluations[id]
	if !ok {
		return nil, fmt.Errorf("failed to find evaluation: %w", errs.ErrNotFound)
	}
	return eval, nil
}

func (f *fakeEvaluationRepo) LoadForAnalysis(ctx context.Context, id uuid.UUID) (*models.Evaluation, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeEvaluationRepo) Update(_ context.Context, id uuid.UUID, data *repositories.EvaluationUpdateData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	eval, ok := f.evaluations[id]
	if !ok {
		return fmt.Errorf("evaluation %s: %w", id, errs.ErrNotFound)
	}
	if data.Title != nil {
		eval.Title = *data.Title
	}
	if data.Description != nil {
		eval.Description = *data.Description
	}
	if data.ExpectedGroups != nil {
		eval.ExpectedGroups = *data.ExpectedGroups
	}
	if data.Archived != nil {
		eval.Archived = *data.Archived
	}
	return nil
}

func (f *fakeEvaluationRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.evaluations[id]; !ok {
		return fmt.Errorf("evaluation %s: %w", id, errs.ErrNotFound)
	}
	delete(f.evaluations, id)
	return nil
}

func (f *fakeEvaluationRepo) AddRubric(_ context.Context, rubric *models.Rubric) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	eval, ok := f.evaluations[rubric.EvaluationID]
	if !ok {
		return fmt.Errorf("failed to add rubric: %w", errs.ErrNotFound)
	}
	eval.Rubrics = append(eval.Rubrics, *rubric)
	return nil
}

func (f *fakeEvaluationRepo) findRubric(id uuid.UUID) *models.Rubric {
	for _, eval := range f.evaluations {
		for i := range eval.Rubrics {
			if eval.Rubrics[i].ID == id {
				return &eval.Rubrics[i]
			}
		}
	}
	return nil
}

func (f *fakeEvaluationRepo) FindRubric(_ context.Context, id uuid.UUID) (*models.Rubric, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rubric := f.findRubric(id)
	if rubric == nil {
		return nil, fmt.Errorf("failed to find rubric: %w", errs.ErrNotFound)
	}
	return rubric, nil
}

func (f *fakeEvaluationRepo) AppendRubricItems(_ context.Context, rubricID uuid.UUID, build func(maxOrder int) []models.RubricItem) ([]models.RubricItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rubric := f.findRubric(rubricID)
	if rubric == nil {
		return nil, fmt.Errorf("failed to append rubric items: %w", errs.ErrNotFound)
	}
	maxOrder := 0
	for _, item := range rubric.Items {
		if item.OrderIndex > maxOrder {
			maxOrder = item.OrderIndex
		}
	}
	items := build(maxOrder)
	for i := range items {
		items[i].RubricID = rubricID
	}
	rubric.Items = append(rubric.Items, items...)
	return items, nil
}

type fakeGroupRepo struct {
	mu          sync.Mutex
	groups      map[uuid.UUID]*models.Group
	submissions map[uuid.UUID]*models.Submission
	statuses    map[uuid.UUID]models.SubmissionStatus
}

func newFakeGroupRepo() *fakeGroupRepo {
	return &fakeGroupRepo{
		groups:      make(map[uuid.UUID]*models.Group),
		submissions: make(map[uuid.UUID]*models.Submission),
		statuses:    make(map[uuid.UUID]models.SubmissionStatus),
	}
}

func (f *fakeGroupRepo) Create(_ context.Context, group *models.Group) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups[group.ID] = group
	return nil
}

func (f *fakeGroupRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	group, ok := f.groups[id]
	if !ok {
		return nil, fmt.Errorf("failed to find group: %w", errs.ErrNotFound)
	}
	return group, nil
}

func (f *fakeGroupRepo) AddSubmission(_ context.Context, submission *models.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions[submission.ID] = submission
	if group, ok := f.groups[submission.GroupID]; ok {
		group.Submissions = append([]models.Submission{*submission}, group.Submissions...)
	}
	return nil
}

func (f *fakeGroupRepo) FindSubmission(_ context.Context, id uuid.UUID) (*models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	submission, ok := f.submissions[id]
	if !ok {
		return nil, fmt.Errorf("failed to find submission: %w", errs.ErrNotFound)
	}
	return submission, nil
}

func (f *fakeGroupRepo) UpdateSubmissionStatus(_ context.Context, id uuid.UUID, status models.SubmissionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	return nil
}

type fakeAnalysisRepo struct {
	mu              sync.Mutex
	analyses        map[uuid.UUID]*models.Analysis
	results         []models.AnalysisResult
	recommendations []models.Recommendation
	analyzedSubs    []uuid.UUID
	saveErr         error
}

func newFakeAnalysisRepo() *fakeAnalysisRepo {
	return &fakeAnalysisRepo{analyses: make(map[uuid.UUID]*models.Analysis)}
}

func (f *fakeAnalysisRepo) Create(_ context.Context, analysis *models.Analysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyses[analysis.ID] = analysis
	return nil
}

func (f *fakeAnalysisRepo) MarkCompleted(_ context.Context, id uuid.UUID, endedAt time.Time, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	analysis, ok := f.analyses[id]
	if !ok {
		return fmt.Errorf("analysis %s: %w", id, errs.ErrNotFound)
	}
	analysis.EndedAt = &endedAt
	analysis.Notes = notes
	return nil
}

func (f *fakeAnalysisRepo) SaveGroupResult(_ context.Context, result *models.AnalysisResult, recs []models.Recommendation, submissionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.results = append(f.results, *result)
	f.recommendations = append(f.recommendations, recs...)
	f.analyzedSubs = append(f.analyzedSubs, submissionID)
	return nil
}

func (f *fakeAnalysisRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	analysis, ok := f.analyses[id]
	if !ok {
		return nil, fmt.Errorf("failed to find analysis: %w", errs.ErrNotFound)
	}
	out := *analysis
	for _, r := range f.results {
		if r.AnalysisID == id {
			out.Results = append(out.Results, r)
		}
	}
	for _, r := range f.recommendations {
		if r.AnalysisID == id {
			out.Recommendations = append(out.Recommendations, r)
		}
	}
	return &out, nil
}

// fakeLocator serves documents from memory; the bytes double as the extracted text.
type fakeLocator struct {
	docs map[string]string
}

func (f *fakeLocator) ResolveReference(ref string) (ObjectLocation, error) {
	return ParseObjectReference(ref)
}

func (f *fakeLocator) FetchBytes(_ context.Context, ref string) ([]byte, error) {
	text, ok := f.docs[ref]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, errs.ErrNotFound)
	}
	return []byte(text), nil
}

func (f *fakeLocator) Describe(_ context.Context, ref string) (*ObjectInfo, error) {
	text, ok := f.docs[ref]
	return &ObjectInfo{Exists: ok, Size: int64(len(text))}, nil
}

// fakeParser returns the input bytes as text. Inputs starting with "CORRUPT" fail.
type fakeParser struct{}

func (fakeParser) Extract(data []byte) (*PDFContent, error) {
	if len(data) >= 7 && string(data[:7]) == "CORRUPT" {
		return nil, fmt.Errorf("bad xref: %w", errs.ErrCorruptDocument)
	}
	return &PDFContent{Text: string(data), PageCount: 1}, nil
}

type fakeProvider struct {
	name Provider

	mu          sync.Mutex
	prompts     []string
	structured  []string
	textReply   func(prompt string) (string, error)
	structReply func(userPrompt string, call int) (string, error)
}

func (f *fakeProvider) Name() Provider { return f.name }

func (f *fakeProvider) GenerateText(_ context.Context, prompt, _ string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.textReply != nil {
		return f.textReply(prompt)
	}
	return "ok", nil
}

func (f *fakeProvider) GenerateStructured(_ context.Context, _, userPrompt string) (string, error) {
	f.mu.Lock()
	f.structured = append(f.structured, userPrompt)
	call := len(f.structured)
	f.mu.Unlock()
	if f.structReply != nil {
		return f.structReply(userPrompt, call)
	}
	return validAnalysisJSON, nil
}

func (f *fakeProvider) structuredCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.structured)
}

func sortedResultGroups(results []models.AnalysisResult) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.GroupID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
