package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/worksmarter/internal/dto"
	"github.com/noah-isme/worksmarter/internal/models"
	"github.com/noah-isme/worksmarter/internal/repository"
	"github.com/noah-isme/worksmarter/pkg/ai"
	appErrors "github.com/noah-isme/worksmarter/pkg/errors"
	"github.com/noah-isme/worksmarter/pkg/jobs"
)

type promptRepository interface {
	CreateRun(ctx context.Context, run *models.PromptRun) error
	LatestRun(ctx context.Context, tableID, assignmentID string) (*models.PromptRun, error)
	ListRuns(ctx context.Context, tableID, assignmentID string) ([]models.PromptRun, error)
	FindPromptTarget(ctx context.Context, promptID string) (*repository.PromptTarget, error)
	SaveResponse(ctx context.Context, response *models.PromptResponse) error
	ListResponses(ctx context.Context, tableID, runID string) ([]models.PromptResponse, error)
}

type promptAssignmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	ListSubmissionsForTable(ctx context.Context, assignmentID, tableID string) ([]models.Submission, error)
}

type promptTableReader interface {
	FindByID(ctx context.Context, id string) (*models.Table, error)
	ListByClassroom(ctx context.Context, classroomID string) ([]models.Table, error)
}

// PromptConfig tunes prompt generation.
type PromptConfig struct {
	DefaultQuestions int
}

// PromptService generates AI discussion prompts per table and serves the
// latest run to students. Runs are never deleted; regeneration adds a run.
type PromptService struct {
	prompts     promptRepository
	assignments promptAssignmentReader
	tables      promptTableReader
	guard       accessGuard
	provider    ai.Provider
	pool        *jobs.Pool
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	config      PromptConfig
}

// NewPromptService constructs the service.
func NewPromptService(prompts promptRepository, assignments promptAssignmentReader, tables promptTableReader, classrooms classroomReader, enrollments enrollmentReader, provider ai.Provider, pool *jobs.Pool, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config PromptConfig) *PromptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if pool == nil {
		pool = jobs.NewPool("prompts", jobs.PoolConfig{Workers: 4, Logger: logger})
	}
	if config.DefaultQuestions <= 0 {
		config.DefaultQuestions = 3
	}
	return &PromptService{
		prompts:     prompts,
		assignments: assignments,
		tables:      tables,
		guard:       accessGuard{classrooms: classrooms, enrollments: enrollments},
		provider:    provider,
		pool:        pool,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		config:      config,
	}
}

// Generate creates a new prompt run for one table from the seated students'
// submissions.
func (s *PromptService) Generate(ctx context.Context, claims *models.JWTClaims, tableID string, req dto.GeneratePromptsRequest) (*models.PromptRun, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generate payload")
	}
	table, err := s.loadTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.teacherOf(ctx, claims, table.ClassroomID); err != nil {
		return nil, err
	}
	if table.Retired() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "table was removed from the layout")
	}
	assignment, err := s.loadAssignment(ctx, req.AssignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.ClassroomID != table.ClassroomID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignment belongs to another classroom")
	}

	return s.generateForTable(ctx, assignment, table, s.questionCount(req.NumQuestions))
}

// GenerateAll generates a run for every table of the assignment's classroom
// on the worker pool. Failed tables are reported and left for a manual
// retry; successful runs are kept.
func (s *PromptService) GenerateAll(ctx context.Context, claims *models.JWTClaims, assignmentID string, req dto.GenerateAllRequest) (*dto.GenerateAllResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generate payload")
	}
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.teacherOf(ctx, claims, assignment.ClassroomID); err != nil {
		return nil, err
	}
	tables, err := s.tables.ListByClassroom(ctx, assignment.ClassroomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tables")
	}

	count := s.questionCount(req.NumQuestions)
	tasks := make([]jobs.Task, len(tables))
	for i := range tables {
		table := tables[i]
		tasks[i] = jobs.Task{ID: table.ID, Run: func(ctx context.Context) error {
			_, err := s.generateForTable(ctx, assignment, &table, count)
			return err
		}}
	}

	results := s.pool.Run(ctx, tasks)
	summary := &dto.GenerateAllResult{TotalGroups: len(tables)}
	for i, result := range results {
		if result.Err == nil {
			summary.Successful++
			continue
		}
		summary.Failed++
		appErr := appErrors.FromError(result.Err)
		summary.Failures = append(summary.Failures, dto.GroupFailure{
			TableID:   tables[i].ID,
			TableName: tables[i].Name,
			Code:      appErr.Code,
			Message:   appErr.Message,
		})
	}

	s.logger.Info("bulk prompt generation finished",
		zap.String("assignment_id", assignmentID),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed),
		zap.Int("total_groups", summary.TotalGroups),
	)
	return summary, nil
}

func (s *PromptService) generateForTable(ctx context.Context, assignment *models.Assignment, table *models.Table, count int) (*models.PromptRun, error) {
	submissions, err := s.assignments.ListSubmissionsForTable(ctx, assignment.ID, table.ID)
	if err != nil {
		s.metrics.RecordPromptGeneration(appErrors.ErrInternal.Code)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
	}
	if len(submissions) == 0 {
		s.metrics.RecordPromptGeneration(appErrors.ErrNoSubmissions.Code)
		return nil, appErrors.Clone(appErrors.ErrNoSubmissions, "no student submissions for "+table.Name+" yet")
	}

	answers := make([]ai.Answer, len(submissions))
	for i, sub := range submissions {
		answers[i] = ai.Answer{StudentName: sub.StudentName, Text: sub.Answer}
	}

	start := time.Now()
	result, err := s.provider.GeneratePrompts(ctx, ai.PromptRequest{
		GroupName: table.Name,
		Question:  assignment.Question,
		Answers:   answers,
		Count:     count,
	})
	s.metrics.ObserveAI("generate", time.Since(start))
	if err != nil {
		s.metrics.RecordPromptGeneration(appErrors.ErrAIUnavailable.Code)
		s.logger.Warn("ai prompt generation failed", zap.String("table_id", table.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrAIUnavailable.Code, appErrors.ErrAIUnavailable.Status, "AI prompt generation failed, try again")
	}

	run := &models.PromptRun{TableID: table.ID, AssignmentID: assignment.ID}
	if summary := strings.TrimSpace(result.Summary); summary != "" {
		run.Summary = &summary
	}
	for _, p := range result.Prompts {
		kind := models.PromptType(p.Type)
		if !kind.Valid() {
			kind = models.PromptTypeFollowUp
		}
		run.Prompts = append(run.Prompts, models.Prompt{Type: kind, Text: p.Text})
	}

	if err := s.prompts.CreateRun(ctx, run); err != nil {
		s.metrics.RecordPromptGeneration(appErrors.ErrInternal.Code)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store prompts")
	}
	s.metrics.RecordPromptGeneration("ok")
	return run, nil
}

// History lists every run generated for a table, newest first.
func (s *PromptService) History(ctx context.Context, claims *models.JWTClaims, tableID, assignmentID string) ([]models.PromptRun, error) {
	table, err := s.loadTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.table(ctx, claims, table.ClassroomID, tableID); err != nil {
		return nil, err
	}
	runs, err := s.prompts.ListRuns(ctx, tableID, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list prompt runs")
	}
	return runs, nil
}

// StudentLatest returns the latest run for the calling student's table and
// the responses the table saved for it. Run is nil until a run exists.
func (s *PromptService) StudentLatest(ctx context.Context, claims *models.JWTClaims, assignmentID string) (*dto.StudentPromptsView, error) {
	if claims == nil || claims.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students have a group")
	}
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	_, enrollment, err := s.guard.classroom(ctx, claims, assignment.ClassroomID)
	if err != nil {
		return nil, err
	}
	if enrollment.TableID == nil {
		return nil, appErrors.ErrNotSeated
	}

	view := &dto.StudentPromptsView{TableID: *enrollment.TableID, Responses: []models.PromptResponse{}}
	run, err := s.prompts.LatestRun(ctx, view.TableID, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return view, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prompts")
	}
	view.Run = run

	responses, err := s.prompts.ListResponses(ctx, view.TableID, run.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load responses")
	}
	view.Responses = responses
	return view, nil
}

// SaveResponse stores the table's answer to a prompt.
func (s *PromptService) SaveResponse(ctx context.Context, claims *models.JWTClaims, promptID string, req dto.SaveResponseRequest) (*models.PromptResponse, error) {
	req.Text = strings.TrimSpace(req.Text)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "response cannot be empty")
	}
	target, err := s.prompts.FindPromptTarget(ctx, promptID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "prompt not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prompt")
	}
	if _, err := s.guard.table(ctx, claims, target.ClassroomID, target.TableID); err != nil {
		return nil, err
	}

	response := &models.PromptResponse{TableID: target.TableID, PromptID: promptID, Text: req.Text, SavedBy: claims.UserID}
	if err := s.prompts.SaveResponse(ctx, response); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save response")
	}
	return response, nil
}

func (s *PromptService) questionCount(requested int) int {
	if requested > 0 {
		return requested
	}
	return s.config.DefaultQuestions
}

func (s *PromptService) loadTable(ctx context.Context, id string) (*models.Table, error) {
	table, err := s.tables.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "table not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load table")
	}
	return table, nil
}

func (s *PromptService) loadAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}
