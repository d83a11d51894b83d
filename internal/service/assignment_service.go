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
	"github.com/noah-isme/worksmarter/pkg/ai"
	appErrors "github.com/noah-isme/worksmarter/pkg/errors"
)

type assignmentRepository interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	ListByClassroom(ctx context.Context, classroomID string) ([]models.Assignment, error)
	UpsertSubmission(ctx context.Context, submission *models.Submission) error
	FindSubmission(ctx context.Context, id string) (*models.Submission, error)
	SaveGrade(ctx context.Context, id string, score int, feedback string, gradedAt time.Time) error
}

// AssignmentService manages activities, submissions and AI-assisted grading.
type AssignmentService struct {
	repo      assignmentRepository
	guard     accessGuard
	provider  ai.Provider
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs the service.
func NewAssignmentService(repo assignmentRepository, classrooms classroomReader, enrollments enrollmentReader, provider ai.Provider, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AssignmentService{
		repo:      repo,
		guard:     accessGuard{classrooms: classrooms, enrollments: enrollments},
		provider:  provider,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Create hands out an assignment to the teacher's classroom.
func (s *AssignmentService) Create(ctx context.Context, claims *models.JWTClaims, classroomID string, req dto.CreateAssignmentRequest) (*models.Assignment, error) {
	if _, err := s.guard.teacherOf(ctx, claims, classroomID); err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Question = strings.TrimSpace(req.Question)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	assignment := &models.Assignment{ClassroomID: classroomID, Title: req.Title, Question: req.Question}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	return assignment, nil
}

// List returns the classroom's assignments for its teacher or students.
func (s *AssignmentService) List(ctx context.Context, claims *models.JWTClaims, classroomID string) ([]models.Assignment, error) {
	if _, _, err := s.guard.classroom(ctx, claims, classroomID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByClassroom(ctx, classroomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return items, nil
}

// Submit stores the calling student's answer.
func (s *AssignmentService) Submit(ctx context.Context, claims *models.JWTClaims, assignmentID string, req dto.SubmitAnswerRequest) (*models.Submission, error) {
	if claims == nil || claims.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can submit answers")
	}
	req.Answer = strings.TrimSpace(req.Answer)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "answer cannot be empty")
	}

	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.guard.classroom(ctx, claims, assignment.ClassroomID); err != nil {
		return nil, err
	}

	submission := &models.Submission{AssignmentID: assignmentID, StudentID: claims.UserID, StudentName: claims.FullName, Answer: req.Answer}
	if err := s.repo.UpsertSubmission(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save submission")
	}
	return submission, nil
}

// Grade asks the AI provider to score a submission and stores the result.
func (s *AssignmentService) Grade(ctx context.Context, claims *models.JWTClaims, submissionID string) (*dto.GradeResult, error) {
	submission, err := s.repo.FindSubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	assignment, err := s.loadAssignment(ctx, submission.AssignmentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.teacherOf(ctx, claims, assignment.ClassroomID); err != nil {
		return nil, err
	}

	start := time.Now()
	grade, err := s.provider.GradeAnswer(ctx, ai.GradeRequest{Question: assignment.Question, Answer: submission.Answer})
	s.metrics.ObserveAI("grade", time.Since(start))
	if err != nil {
		s.logger.Warn("ai grading failed", zap.String("submission_id", submissionID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrAIUnavailable.Code, appErrors.ErrAIUnavailable.Status, "AI grading is unavailable, try again")
	}

	if err := s.repo.SaveGrade(ctx, submissionID, grade.Score, grade.Feedback, time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grade")
	}
	return &dto.GradeResult{SubmissionID: submissionID, Score: grade.Score, Feedback: grade.Feedback}, nil
}

func (s *AssignmentService) loadAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}
