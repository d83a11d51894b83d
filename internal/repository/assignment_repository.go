package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/worksmarter/internal/models"
)

// AssignmentRepository persists assignments and student submissions.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create inserts an assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO assignments (id, classroom_id, title, question, created_at) VALUES (:id, :classroom_id, :title, :question, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// FindByID returns an assignment by id.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	const query = `SELECT id, classroom_id, title, question, created_at FROM assignments WHERE id = $1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &assignment, nil
}

// ListByClassroom returns a classroom's assignments, newest first.
func (r *AssignmentRepository) ListByClassroom(ctx context.Context, classroomID string) ([]models.Assignment, error) {
	const query = `SELECT id, classroom_id, title, question, created_at FROM assignments WHERE classroom_id = $1 ORDER BY created_at DESC`
	assignments := []models.Assignment{}
	if err := r.db.SelectContext(ctx, &assignments, query, classroomID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// UpsertSubmission stores the student's answer, replacing an earlier one
// and clearing any grade it carried.
func (r *AssignmentRepository) UpsertSubmission(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO submissions (id, assignment_id, student_id, answer, submitted_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (assignment_id, student_id) DO UPDATE
SET answer = EXCLUDED.answer, submitted_at = EXCLUDED.submitted_at, score = NULL, feedback = NULL, graded_at = NULL
RETURNING id`
	if err := r.db.GetContext(ctx, &submission.ID, query,
		submission.ID, submission.AssignmentID, submission.StudentID, submission.Answer, submission.SubmittedAt); err != nil {
		return fmt.Errorf("upsert submission: %w", err)
	}
	return nil
}

// FindSubmission returns a submission by id.
func (r *AssignmentRepository) FindSubmission(ctx context.Context, id string) (*models.Submission, error) {
	const query = `SELECT s.id, s.assignment_id, s.student_id, u.full_name AS student_name, s.answer, s.score, s.feedback, s.submitted_at, s.graded_at
FROM submissions s
JOIN users u ON u.id = s.student_id
WHERE s.id = $1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &submission, nil
}

// ListSubmissionsForTable returns the answers of students currently seated
// at the table.
func (r *AssignmentRepository) ListSubmissionsForTable(ctx context.Context, assignmentID, tableID string) ([]models.Submission, error) {
	const query = `SELECT s.id, s.assignment_id, s.student_id, u.full_name AS student_name, s.answer, s.score, s.feedback, s.submitted_at, s.graded_at
FROM submissions s
JOIN enrollments e ON e.student_id = s.student_id
JOIN users u ON u.id = s.student_id
WHERE s.assignment_id = $1 AND e.table_id = $2
ORDER BY s.submitted_at`
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, assignmentID, tableID); err != nil {
		return nil, fmt.Errorf("list table submissions: %w", err)
	}
	return submissions, nil
}

// SaveGrade records the score and feedback for a submission.
func (r *AssignmentRepository) SaveGrade(ctx context.Context, id string, score int, feedback string, gradedAt time.Time) error {
	const query = `UPDATE submissions SET score = $2, feedback = $3, graded_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, score, feedback, gradedAt)
	if err != nil {
		return fmt.Errorf("save grade: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
