package models

import "time"

// Assignment is a science activity handed out to a classroom.
type Assignment struct {
	ID          string    `db:"id" json:"id"`
	ClassroomID string    `db:"classroom_id" json:"classroom_id"`
	Title       string    `db:"title" json:"title"`
	Question    string    `db:"question" json:"question"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Submission is a student's free-text answer to an assignment. Score and
// Feedback are filled in by AI-assisted grading.
type Submission struct {
	ID           string     `db:"id" json:"id"`
	AssignmentID string     `db:"assignment_id" json:"assignment_id"`
	StudentID    string     `db:"student_id" json:"student_id"`
	StudentName  string     `db:"student_name" json:"student_name,omitempty"`
	Answer       string     `db:"answer" json:"answer"`
	Score        *int       `db:"score" json:"score,omitempty"`
	Feedback     *string    `db:"feedback" json:"feedback,omitempty"`
	SubmittedAt  time.Time  `db:"submitted_at" json:"submitted_at"`
	GradedAt     *time.Time `db:"graded_at" json:"graded_at,omitempty"`
}
