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

const enrollmentColumns = `id, classroom_id, student_id, table_id, joined_at, seated_at`

// EnrollmentRepository handles classroom membership and seat assignment.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Join enrolls the student once. Redeeming again returns the existing row.
func (r *EnrollmentRepository) Join(ctx context.Context, classroomID, studentID string) (*models.Enrollment, error) {
	const insertQuery = `INSERT INTO enrollments (id, classroom_id, student_id, joined_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (classroom_id, student_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insertQuery, uuid.NewString(), classroomID, studentID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("join classroom: %w", err)
	}
	return r.Find(ctx, classroomID, studentID)
}

// Find returns the enrollment for a classroom and student.
func (r *EnrollmentRepository) Find(ctx context.Context, classroomID, studentID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE classroom_id = $1 AND student_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, classroomID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

// FindByTable returns the enrollment of a student seated at the table.
func (r *EnrollmentRepository) FindByTable(ctx context.Context, tableID, studentID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE table_id = $1 AND student_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, tableID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find seated enrollment: %w", err)
	}
	return &enrollment, nil
}

// SeatParams describes one seat assignment.
type SeatParams struct {
	ClassroomID string
	StudentID   string
	TableID     *string
	Capacity    int
}

// AssignSeat moves the student to TableID (nil vacates) in one transaction
// that also bumps the classroom seating version. The student's previous seat
// is released by the same UPDATE. It returns the new seating version.
func (r *EnrollmentRepository) AssignSeat(ctx context.Context, params SeatParams) (version int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin seat transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const bumpQuery = `UPDATE classrooms SET seating_version = seating_version + 1, updated_at = $2 WHERE id = $1 RETURNING seating_version`
	if err = tx.GetContext(ctx, &version, bumpQuery, params.ClassroomID, now); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("bump seating version: %w", err)
	}

	var seatedAt *time.Time
	if params.TableID != nil {
		var owner string
		const ownerQuery = `SELECT classroom_id FROM tables WHERE id = $1 AND retired_at IS NULL`
		if err = tx.GetContext(ctx, &owner, ownerQuery, *params.TableID); err != nil {
			if err == sql.ErrNoRows {
				err = ErrForeignTable
				return 0, err
			}
			return 0, fmt.Errorf("lookup table: %w", err)
		}
		if owner != params.ClassroomID {
			err = ErrForeignTable
			return 0, err
		}

		if params.Capacity > 0 {
			var seated int
			const countQuery = `SELECT COUNT(*) FROM enrollments WHERE table_id = $1 AND student_id <> $2`
			if err = tx.GetContext(ctx, &seated, countQuery, *params.TableID, params.StudentID); err != nil {
				return 0, fmt.Errorf("count seated students: %w", err)
			}
			if seated >= params.Capacity {
				err = ErrTableFull
				return 0, err
			}
		}
		seatedAt = &now
	}

	const seatQuery = `UPDATE enrollments
SET table_id = $3,
	seated_at = CASE WHEN table_id IS NOT DISTINCT FROM $3 THEN seated_at ELSE $4 END
WHERE classroom_id = $1 AND student_id = $2`
	res, err := tx.ExecContext(ctx, seatQuery, params.ClassroomID, params.StudentID, params.TableID, seatedAt)
	if err != nil {
		return 0, fmt.Errorf("assign seat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("assign seat rows: %w", err)
	}
	if affected == 0 {
		err = ErrNotEnrolled
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seat assignment: %w", err)
	}
	return version, nil
}
