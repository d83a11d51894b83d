package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"math/big"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/worksmarter/internal/dto"
	"github.com/noah-isme/worksmarter/internal/models"
	"github.com/noah-isme/worksmarter/internal/repository"
	appErrors "github.com/noah-isme/worksmarter/pkg/errors"
)

const (
	joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	joinCodeLength   = 6
	joinCodeAttempts = 5
)

type classroomRepository interface {
	classroomReader
	Create(ctx context.Context, classroom *models.Classroom) error
	FindActiveByJoinCode(ctx context.Context, code string) (*models.Classroom, error)
	JoinCodeTaken(ctx context.Context, code string) (bool, error)
	ListForTeacher(ctx context.Context, teacherID string) ([]dto.ClassroomSummary, error)
	ListForStudent(ctx context.Context, studentID string) ([]dto.ClassroomSummary, error)
}

type enrollmentWriter interface {
	Join(ctx context.Context, classroomID, studentID string) (*models.Enrollment, error)
}

// ClassroomService manages classrooms and join code redemption.
type ClassroomService struct {
	classrooms  classroomRepository
	enrollments enrollmentWriter
	validator   *validator.Validate
	logger      *zap.Logger
	newCode     func() (string, error)
}

// NewClassroomService constructs the service.
func NewClassroomService(classrooms classroomRepository, enrollments enrollmentWriter, validate *validator.Validate, logger *zap.Logger) *ClassroomService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ClassroomService{classrooms: classrooms, enrollments: enrollments, validator: validate, logger: logger, newCode: generateJoinCode}
}

// Create opens a classroom for the calling teacher with a fresh join code.
func (s *ClassroomService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateClassroomRequest) (*models.Classroom, error) {
	if !claims.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can create classrooms")
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
	}

	for attempt := 1; attempt <= joinCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate join code")
		}
		taken, err := s.classrooms.JoinCodeTaken(ctx, code)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check join code")
		}
		if taken {
			continue
		}

		classroom := &models.Classroom{TeacherID: claims.UserID, Name: req.Name, JoinCode: code, Status: models.ClassroomStatusActive}
		if err := s.classrooms.Create(ctx, classroom); err != nil {
			if repository.IsUniqueViolation(err) {
				s.logger.Debug("join code collided on insert", zap.Int("attempt", attempt))
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create classroom")
		}
		s.logger.Info("classroom created", zap.String("classroom_id", classroom.ID), zap.String("teacher_id", claims.UserID))
		return classroom, nil
	}
	return nil, appErrors.Clone(appErrors.ErrConflict, "could not allocate a unique join code, try again")
}

// List returns the teacher's classrooms or the student's enrollments.
func (s *ClassroomService) List(ctx context.Context, claims *models.JWTClaims) ([]dto.ClassroomSummary, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	var (
		items []dto.ClassroomSummary
		err   error
	)
	if claims.IsTeacher() {
		items, err = s.classrooms.ListForTeacher(ctx, claims.UserID)
	} else {
		items, err = s.classrooms.ListForStudent(ctx, claims.UserID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classrooms")
	}
	if items == nil {
		items = []dto.ClassroomSummary{}
	}
	return items, nil
}

// Join redeems a join code for the calling student. Redeeming twice
// returns the existing enrollment.
func (s *ClassroomService) Join(ctx context.Context, claims *models.JWTClaims, req dto.JoinClassroomRequest) (*dto.ClassroomSummary, error) {
	if claims == nil || claims.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can join classrooms")
	}
	req.JoinCode = strings.ToUpper(strings.TrimSpace(req.JoinCode))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "join code must be 6 characters")
	}

	classroom, err := s.classrooms.FindActiveByJoinCode(ctx, req.JoinCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidJoinCode
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve join code")
	}

	enrollment, err := s.enrollments.Join(ctx, classroom.ID, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to join classroom")
	}

	s.logger.Info("student joined classroom", zap.String("classroom_id", classroom.ID), zap.String("student_id", claims.UserID))
	return &dto.ClassroomSummary{Classroom: *classroom, MyTableID: enrollment.TableID}, nil
}

func generateJoinCode() (string, error) {
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	var b strings.Builder
	for i := 0; i < joinCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(joinCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}
