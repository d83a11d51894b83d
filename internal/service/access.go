package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/worksmarter/internal/models"
	appErrors "github.com/noah-isme/worksmarter/pkg/errors"
)

type classroomReader interface {
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
}

type enrollmentReader interface {
	Find(ctx context.Context, classroomID, studentID string) (*models.Enrollment, error)
	FindByTable(ctx context.Context, tableID, studentID string) (*models.Enrollment, error)
}

// accessGuard decides who may see a classroom: its teacher and its
// enrolled students.
type accessGuard struct {
	classrooms  classroomReader
	enrollments enrollmentReader
}

// classroom loads the classroom and checks that the caller belongs to it.
// For students the returned enrollment is non-nil.
func (g accessGuard) classroom(ctx context.Context, claims *models.JWTClaims, classroomID string) (*models.Classroom, *models.Enrollment, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	classroom, err := g.classrooms.FindByID(ctx, classroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}

	if claims.IsTeacher() {
		if classroom.TeacherID != claims.UserID {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "classroom belongs to another teacher")
		}
		return classroom, nil, nil
	}

	enrollment, err := g.enrollments.Find(ctx, classroomID, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "you are not enrolled in this classroom")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return classroom, enrollment, nil
}

// teacherOf requires the caller to own the classroom.
func (g accessGuard) teacherOf(ctx context.Context, claims *models.JWTClaims, classroomID string) (*models.Classroom, error) {
	if !claims.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can do this")
	}
	classroom, _, err := g.classroom(ctx, claims, classroomID)
	return classroom, err
}

// table checks that the caller is the classroom's teacher or a student
// seated at tableID.
func (g accessGuard) table(ctx context.Context, claims *models.JWTClaims, classroomID, tableID string) (*models.Classroom, error) {
	classroom, _, err := g.classroom(ctx, claims, classroomID)
	if err != nil {
		return nil, err
	}
	if claims.IsTeacher() {
		return classroom, nil
	}
	if _, err := g.enrollments.FindByTable(ctx, tableID, claims.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not seated at this table")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load seat")
	}
	return classroom, nil
}
