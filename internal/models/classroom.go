package models

import "time"

// ClassroomStatus is the lifecycle of a classroom. Deleted classrooms are
// soft-deleted so enrollments stay readable.
type ClassroomStatus string

const (
	ClassroomStatusActive   ClassroomStatus = "ACTIVE"
	ClassroomStatusArchived ClassroomStatus = "ARCHIVED"
	ClassroomStatusDeleted  ClassroomStatus = "DELETED"
)

// Classroom is a teacher's roster. SeatingVersion increases on every seat or
// table layout change and lets polling clients order snapshots.
type Classroom struct {
	ID             string          `db:"id" json:"id"`
	TeacherID      string          `db:"teacher_id" json:"teacher_id"`
	Name           string          `db:"name" json:"name"`
	JoinCode       string          `db:"join_code" json:"join_code"`
	Status         ClassroomStatus `db:"status" json:"status"`
	SeatingVersion int64           `db:"seating_version" json:"seating_version"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// Enrollment links a student to a classroom and, optionally, to a table.
type Enrollment struct {
	ID          string     `db:"id" json:"id"`
	ClassroomID string     `db:"classroom_id" json:"classroom_id"`
	StudentID   string     `db:"student_id" json:"student_id"`
	TableID     *string    `db:"table_id" json:"table_id"`
	JoinedAt    time.Time  `db:"joined_at" json:"joined_at"`
	SeatedAt    *time.Time `db:"seated_at" json:"seated_at,omitempty"`
}
