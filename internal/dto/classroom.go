package dto

import "github.com/noah-isme/worksmarter/internal/models"

// CreateClassroomRequest creates a classroom owned by the calling teacher.
type CreateClassroomRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

// JoinClassroomRequest redeems a join code.
type JoinClassroomRequest struct {
	JoinCode string `json:"join_code" validate:"required,len=6"`
}

// ClassroomSummary is the list view of a classroom for either role.
type ClassroomSummary struct {
	models.Classroom
	StudentCount int     `db:"student_count" json:"student_count"`
	MyTableID    *string `db:"my_table_id" json:"my_table_id,omitempty"`
}
