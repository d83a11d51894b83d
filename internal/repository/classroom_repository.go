package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/worksmarter/internal/dto"
	"github.com/noah-isme/worksmarter/internal/models"
)

const classroomColumns = `c.id, c.teacher_id, c.name, c.join_code, c.status, c.seating_version, c.created_at, c.updated_at`

// ClassroomRepository persists classrooms.
type ClassroomRepository struct {
	db *sqlx.DB
}

// NewClassroomRepository constructs the repository.
func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// Create inserts a classroom. Join code collisions surface as a unique
// violation, see IsUniqueViolation.
func (r *ClassroomRepository) Create(ctx context.Context, classroom *models.Classroom) error {
	if classroom.ID == "" {
		classroom.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if classroom.CreatedAt.IsZero() {
		classroom.CreatedAt = now
	}
	classroom.UpdatedAt = now
	if classroom.Status == "" {
		classroom.Status = models.ClassroomStatusActive
	}

	const query = `INSERT INTO classrooms (id, teacher_id, name, join_code, status, seating_version, created_at, updated_at)
VALUES (:id, :teacher_id, :name, :join_code, :status, :seating_version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, classroom); err != nil {
		return fmt.Errorf("create classroom: %w", err)
	}
	return nil
}

// FindByID returns a non-deleted classroom.
func (r *ClassroomRepository) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	query := `SELECT ` + classroomColumns + ` FROM classrooms c WHERE c.id = $1 AND c.status <> 'DELETED'`
	var classroom models.Classroom
	if err := r.db.GetContext(ctx, &classroom, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find classroom: %w", err)
	}
	return &classroom, nil
}

// FindActiveByJoinCode resolves a join code to an active classroom.
func (r *ClassroomRepository) FindActiveByJoinCode(ctx context.Context, code string) (*models.Classroom, error) {
	query := `SELECT ` + classroomColumns + ` FROM classrooms c WHERE c.join_code = $1 AND c.status = 'ACTIVE'`
	var classroom models.Classroom
	if err := r.db.GetContext(ctx, &classroom, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find classroom by join code: %w", err)
	}
	return &classroom, nil
}

// JoinCodeTaken reports whether a non-deleted classroom already uses code.
func (r *ClassroomRepository) JoinCodeTaken(ctx context.Context, code string) (bool, error) {
	const query = `SELECT 1 FROM classrooms WHERE join_code = $1 AND status <> 'DELETED' LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check join code: %w", err)
	}
	return true, nil
}

// ListForTeacher returns the teacher's classrooms with enrollment counts.
func (r *ClassroomRepository) ListForTeacher(ctx context.Context, teacherID string) ([]dto.ClassroomSummary, error) {
	query := `SELECT ` + classroomColumns + `, COUNT(e.id) AS student_count, NULL AS my_table_id
FROM classrooms c
LEFT JOIN enrollments e ON e.classroom_id = c.id
WHERE c.teacher_id = $1 AND c.status <> 'DELETED'
GROUP BY c.id
ORDER BY c.created_at DESC`
	var items []dto.ClassroomSummary
	if err := r.db.SelectContext(ctx, &items, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher classrooms: %w", err)
	}
	return items, nil
}

// ListForStudent returns the classrooms the student joined with the table
// they currently occupy.
func (r *ClassroomRepository) ListForStudent(ctx context.Context, studentID string) ([]dto.ClassroomSummary, error) {
	query := `SELECT ` + classroomColumns + `,
	(SELECT COUNT(*) FROM enrollments x WHERE x.classroom_id = c.id) AS student_count,
	e.table_id AS my_table_id
FROM enrollments e
JOIN classrooms c ON c.id = e.classroom_id
WHERE e.student_id = $1 AND c.status <> 'DELETED'
ORDER BY e.joined_at DESC`
	var items []dto.ClassroomSummary
	if err := r.db.SelectContext(ctx, &items, query, studentID); err != nil {
		return nil, fmt.Errorf("list student classrooms: %w", err)
	}
	return items, nil
}

// SeatingVersion returns the classroom's current seating version.
func (r *ClassroomRepository) SeatingVersion(ctx context.Context, id string) (int64, error) {
	const query = `SELECT seating_version FROM classrooms WHERE id = $1`
	var version int64
	if err := r.db.GetContext(ctx, &version, query, id); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("read seating version: %w", err)
	}
	return version, nil
}
