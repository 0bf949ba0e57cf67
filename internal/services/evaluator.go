package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"alfredoptarigan/rubric-evaluator/internal/errs"
	"alfredoptarigan/rubric-evaluator/internal/metrics"
	"alfredoptarigan/rubric-evaluator/internal/models"
	"alfredoptarigan/rubric-evaluator/internal/repositories"
)

type AnalysisOutcome struct {
	AnalysisID     uuid.UUID
	GroupsAnalyzed int
	GroupsSkipped  int
	GroupsFailed   int
}

func (o *AnalysisOutcome) Message() string {
	return fmt.Sprintf("Análisis completado: %d grupos analizados, %d sin entregas, %d con errores",
		o.GroupsAnalyzed, o.GroupsSkipped, o.GroupsFailed)
}

type ChunkAnalysisInput struct {
	DocumentRef  string
	SubmissionID *uuid.UUID
	Instruction  string
	ChunkSize    int
	Provider     Provider
	Model        string
}

type DocumentAnalysisInput struct {
	DocumentRef string
	Instruction string
	MaxTokens   int
	Provider    Provider
	Model       string
}

type AnalysisService interface {
	AnalyzeEvaluation(ctx context.Context, evaluationID uuid.UUID, provider Provider) (*AnalysisOutcome, error)
	AnalyzeGroup(ctx context.Context, groupID uuid.UUID, provider Provider) (*RubricAnalysis, error)
	AnalyzeInChunks(ctx context.Context, in ChunkAnalysisInput) ([]models.ChunkResponse, error)
	AnalyzeDocument(ctx context.Context, in DocumentAnalysisInput) (string, error)
	GetAnalysis(ctx context.Context, analysisID uuid.UUID) (*models.Analysis, error)
}

type AnalysisOptions struct {
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	DefaultChunkSize  int
	// TokenBudgets caps the document text sent to each provider.
	TokenBudgets map[Provider]int
}

type AnalysisDeps struct {
	EvalRepo     repositories.EvaluationRepository
	GroupRepo    repositories.GroupRepository
	AnalysisRepo repositories.AnalysisRepository
	Locator      DocumentLocator
	Parser       PDFParserService
	Chunker      TextChunker
	Prompts      *PromptBuilder
	Invoker      *ModelInvoker
	Pool         *GroupPool
	// Index is optional.
	Index SubmissionIndex
}

type analysisService struct {
	AnalysisDeps
	opts AnalysisOptions
}

func NewAnalysisService(deps AnalysisDeps, opts AnalysisOptions) AnalysisService {
	if opts.RetryMaxAttempts <= 0 {
		opts.RetryMaxAttempts = 1
	}
	if opts.DefaultChunkSize <= 0 {
		opts.DefaultChunkSize = DefaultChunkSize
	}
	if deps.Chunker == nil {
		deps.Chunker = NewTextChunker()
	}
	if deps.Pool == nil {
		deps.Pool = NewGroupPool(1)
	}
	return &analysisService{AnalysisDeps: deps, opts: opts}
}

func (s *analysisService) AnalyzeEvaluation(ctx context.Context, evaluationID uuid.UUID, provider Provider) (*AnalysisOutcome, error) {
	if !s.Invoker.Has(provider) {
		return nil, fmt.Errorf("provider %q is not configured: %w", provider, errs.ErrInvalidArgument)
	}

	evaluation, err := s.EvalRepo.LoadForAnalysis(ctx, evaluationID)
	if err != nil {
		return nil, err
	}

	rubric := evaluation.PrimaryRubric()
	if rubric == nil {
		return nil, fmt.Errorf("evaluation %s has no rubric: %w", evaluationID, errs.ErrInvalidArgument)
	}

	analysis := &models.Analysis{
		ID:           uuid.New(),
		EvaluationID: evaluation.ID,
		Engine:       string(provider),
		StartedAt:    time.Now(),
	}
	if err := s.AnalysisRepo.Create(ctx, analysis); err != nil {
		return nil, err
	}

	log.Printf("🔄 Starting analysis %s for evaluation %s (%d groups, provider %s)",
		analysis.ID, evaluation.ID, len(evaluation.Groups), provider)

	rubricContext := s.Prompts.BuildRubricContext(ctx, evaluation.Rubrics)
	maxScore := ComputeMaxScore(rubricContext)

	var (
		analyzed atomic.Int32
		skipped  int
		tasks    []GroupTask
	)

	for i := range evaluation.Groups {
		group := &evaluation.Groups[i]
		submission := group.LatestSubmission()
		if submission == nil {
			log.Printf("⚠️  Group %s has no submissions, skipping", group.Code)
			skipped++
			metrics.GroupAnalysesTotal.WithLabelValues(string(provider), "skipped").Inc()
			continue
		}

		tasks = append(tasks, GroupTask{
			Name: "group " + group.Code,
			Run: func(ctx context.Context) {
				if err := s.analyzeAndSaveGroup(ctx, analysis.ID, rubric.ID, evaluation, group, submission, rubricContext, maxScore, provider); err != nil {
					log.Printf("❌ Group %s failed in analysis %s: %v", group.Code, analysis.ID, err)
					s.rejectUnreadable(ctx, submission, err)
					metrics.GroupAnalysesTotal.WithLabelValues(string(provider), "failed").Inc()
					return
				}
				analyzed.Add(1)
				metrics.GroupAnalysesTotal.WithLabelValues(string(provider), "analyzed").Inc()
			},
		})
	}

	s.Pool.Run(ctx, tasks)

	outcome := &AnalysisOutcome{
		AnalysisID:     analysis.ID,
		GroupsAnalyzed: int(analyzed.Load()),
		GroupsSkipped:  skipped,
		GroupsFailed:   len(tasks) - int(analyzed.Load()),
	}

	// Completion is recorded even if the caller went away mid-run.
	if err := s.AnalysisRepo.MarkCompleted(context.WithoutCancel(ctx), analysis.ID, time.Now(), outcome.Message()); err != nil {
		metrics.AnalysesTotal.WithLabelValues(string(provider), "error").Inc()
		return nil, err
	}

	metrics.AnalysesTotal.WithLabelValues(string(provider), "completed").Inc()
	log.Printf("✅ Analysis %s completed: %s", analysis.ID, outcome.Message())

	return outcome, nil
}

func (s *analysisService) analyzeAndSaveGroup(
	ctx context.Context,
	analysisID, rubricID uuid.UUID,
	evaluation *models.Evaluation,
	group *models.Group,
	submission *models.Submission,
	rubricContext string,
	maxScore float64,
	provider Provider,
) error {
	text, err := s.loadText(ctx, submission.StorageRef)
	if err != nil {
		return err
	}

	result, err := s.analyzeText(ctx, evaluation.Title, rubricContext, group, text, provider)
	if err != nil {
		return err
	}
	normalizeScores(result, maxScore)

	criteria, err := json.Marshal(result.Criteria)
	if err != nil {
		return fmt.Errorf("failed to encode criteria: %w", err)
	}

	record := &models.AnalysisResult{
		ID:         uuid.New(),
		AnalysisID: analysisID,
		RubricID:   rubricID,
		GroupID:    group.ID,
		Status:     models.ResultStatus(result.Status),
		Score:      result.TotalScore,
		MaxScore:   result.MaxScore,
		Percentage: result.Percentage,
		Feedback:   result.Feedback(),
		Criteria:   datatypes.JSON(criteria),
	}

	recs := make([]models.Recommendation, 0, len(result.Recommendations))
	for _, r := range result.Recommendations {
		recs = append(recs, models.Recommendation{
			ID:         uuid.New(),
			AnalysisID: analysisID,
			GroupID:    group.ID,
			Priority:   r.Priority,
			Summary:    r.Summary,
			Detail:     r.Detail,
		})
	}

	if err := s.AnalysisRepo.SaveGroupResult(ctx, record, recs, submission.ID); err != nil {
		return err
	}

	log.Printf("💾 Saved result for group %s: %.2f/%.2f (%s)", group.Code, record.Score, record.MaxScore, record.Status)

	if s.Index != nil {
		if err := s.Index.IndexSubmission(ctx, evaluation.ID, group.ID, submission.ID, text); err != nil {
			log.Printf("⚠️  Failed to index submission %s: %v", submission.ID, err)
		}
	}

	return nil
}

// rejectUnreadable flags a submission whose document can never be analysed.
func (s *analysisService) rejectUnreadable(ctx context.Context, submission *models.Submission, cause error) {
	if !errors.Is(cause, errs.ErrCorruptDocument) &&
		!errors.Is(cause, errs.ErrInvalidFormat) &&
		!errors.Is(cause, errs.ErrPayloadTooLarge) {
		return
	}
	if err := s.GroupRepo.UpdateSubmissionStatus(ctx, submission.ID, models.SubmissionRejected); err != nil {
		log.Printf("⚠️  Failed to mark submission %s as rejected: %v", submission.ID, err)
	}
}

// AnalyzeGroup runs the structured analysis for one group without persisting it.
func (s *analysisService) AnalyzeGroup(ctx context.Context, groupID uuid.UUID, provider Provider) (*RubricAnalysis, error) {
	if !s.Invoker.Has(provider) {
		return nil, fmt.Errorf("provider %q is not configured: %w", provider, errs.ErrInvalidArgument)
	}

	group, err := s.GroupRepo.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	submission := group.LatestSubmission()
	if submission == nil {
		return nil, fmt.Errorf("group %s has no submissions: %w", group.Code, errs.ErrNotFound)
	}

	evaluation, err := s.EvalRepo.LoadForAnalysis(ctx, group.EvaluationID)
	if err != nil {
		return nil, err
	}

	rubricContext := s.Prompts.BuildRubricContext(ctx, evaluation.Rubrics)

	text, err := s.loadText(ctx, submission.StorageRef)
	if err != nil {
		return nil, err
	}

	result, err := s.analyzeText(ctx, evaluation.Title, rubricContext, group, text, provider)
	if err != nil {
		return nil, err
	}
	normalizeScores(result, ComputeMaxScore(rubricContext))

	return result, nil
}

// AnalyzeInChunks splits the document and asks the model about each part in
// order. The first failing chunk aborts the rest.
func (s *analysisService) AnalyzeInChunks(ctx context.Context, in ChunkAnalysisInput) ([]models.ChunkResponse, error) {
	if !s.Invoker.Has(in.Provider) {
		return nil, fmt.Errorf("provider %q is not configured: %w", in.Provider, errs.ErrInvalidArgument)
	}

	ref, err := s.resolveDocumentRef(ctx, in.DocumentRef, in.SubmissionID)
	if err != nil {
		return nil, err
	}

	text, err := s.loadText(ctx, ref)
	if err != nil {
		return nil, err
	}

	chunkSize := in.ChunkSize
	if chunkSize <= 0 {
		chunkSize = s.opts.DefaultChunkSize
	}

	chunks := s.Chunker.Split(text, chunkSize)
	total := len(chunks)
	log.Printf("📄 Analyzing %s in %d chunks of up to %d characters", ref, total, chunkSize)

	responses := make([]models.ChunkResponse, 0, total)
	for i, chunk := range chunks {
		prompt := s.Prompts.BuildChunkPrompt(in.Instruction, chunk, i+1, total)

		out, err := s.Invoker.Generate(ctx, in.Provider, prompt, in.Model)
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, total, err)
		}

		responses = append(responses, models.ChunkResponse{
			ChunkIndex:  i + 1,
			TotalChunks: total,
			Response:    out,
		})
	}

	return responses, nil
}

// AnalyzeDocument sends the whole document, truncated to the token budget, in one call.
func (s *analysisService) AnalyzeDocument(ctx context.Context, in DocumentAnalysisInput) (string, error) {
	if !s.Invoker.Has(in.Provider) {
		return "", fmt.Errorf("provider %q is not configured: %w", in.Provider, errs.ErrInvalidArgument)
	}

	text, err := s.loadText(ctx, in.DocumentRef)
	if err != nil {
		return "", err
	}

	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.opts.TokenBudgets[in.Provider]
	}
	text = TruncateText(text, maxTokens)

	return s.Invoker.Generate(ctx, in.Provider, s.Prompts.BuildDocumentPrompt(in.Instruction, text), in.Model)
}

func (s *analysisService) GetAnalysis(ctx context.Context, analysisID uuid.UUID) (*models.Analysis, error) {
	return s.AnalysisRepo.FindByID(ctx, analysisID)
}

func (s *analysisService) analyzeText(ctx context.Context, evaluationTitle, rubricContext string, group *models.Group, text string, provider Provider) (*RubricAnalysis, error) {
	budget := s.opts.TokenBudgets[provider]
	if budget > 0 && EstimateTokens(text) > budget {
		log.Printf("⚠️  Group %s document is ~%d tokens, truncating to %d", group.Code, EstimateTokens(text), budget)
		text = TruncateText(text, budget)
	}

	prompt := s.Prompts.BuildGroupPrompt(evaluationTitle, rubricContext, group.Code, group.Name, text)

	log.Printf("🤖 Requesting %s analysis for group %s", provider, group.Code)
	return s.withRetry(ctx, group.Code, func() (*RubricAnalysis, error) {
		return s.Invoker.GenerateRubricAnalysis(ctx, provider, prompt.SystemPrompt, prompt.UserPrompt)
	})
}

// withRetry retries provider failures with exponential backoff. Schema and
// other errors are returned immediately.
func (s *analysisService) withRetry(ctx context.Context, label string, fn func() (*RubricAnalysis, error)) (*RubricAnalysis, error) {
	policy := backoff.NewExponentialBackOff()
	if s.opts.RetryInitialDelay > 0 {
		policy.InitialInterval = s.opts.RetryInitialDelay
	}
	policy.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.opts.RetryMaxAttempts-1)), ctx)

	var (
		result  *RubricAnalysis
		attempt int
	)
	err := backoff.Retry(func() error {
		attempt++
		r, err := fn()
		if err == nil {
			result = r
			return nil
		}
		if !errors.Is(err, errs.ErrProvider) {
			return backoff.Permanent(err)
		}
		if attempt < s.opts.RetryMaxAttempts {
			log.Printf("⚠️  %s: attempt %d/%d failed: %v. Retrying...", label, attempt, s.opts.RetryMaxAttempts, err)
		}
		return err
	}, b)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *analysisService) resolveDocumentRef(ctx context.Context, ref string, submissionID *uuid.UUID) (string, error) {
	if submissionID != nil {
		submission, err := s.GroupRepo.FindSubmission(ctx, *submissionID)
		if err != nil {
			return "", err
		}
		return submission.StorageRef, nil
	}
	if ref == "" {
		return "", fmt.Errorf("document reference is required: %w", errs.ErrInvalidArgument)
	}
	return ref, nil
}

func (s *analysisService) loadText(ctx context.Context, ref string) (string, error) {
	data, err := s.Locator.FetchBytes(ctx, ref)
	if err != nil {
		return "", err
	}

	content, err := s.Parser.Extract(data)
	if err != nil {
		return "", err
	}

	text := CleanText(content.Text)
	if text == "" {
		return "", fmt.Errorf("%s has no extractable text: %w", ref, errs.ErrCorruptDocument)
	}
	return text, nil
}

// normalizeScores pins the result to the rubric maximum, keeps the total
// within [0, max] and derives the status from the resulting percentage.
func normalizeScores(a *RubricAnalysis, maxScore float64) {
	a.MaxScore = maxScore
	a.TotalScore = math.Max(0, math.Min(a.TotalScore, maxScore))
	if maxScore > 0 {
		a.Percentage = math.Round(a.TotalScore/maxScore*10000) / 100
	}

	status := string(statusForPercentage(a.Percentage))
	if a.Status != status {
		log.Printf("⚠️  Model reported %s for %s at %.2f%%, storing %s", a.Status, a.GroupCode, a.Percentage, status)
		a.Status = status
	}
}

// statusForPercentage applies the PASS >= 70, PARTIAL >= 50 thresholds.
func statusForPercentage(pct float64) models.ResultStatus {
	switch {
	case pct >= 70:
		return models.ResultPass
	case pct >= 50:
		return models.ResultPartial
	default:
		return models.ResultFail
	}
}
