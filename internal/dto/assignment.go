package dto

// CreateAssignmentRequest hands out a new activity to a classroom.
type CreateAssignmentRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	Question string `json:"question" validate:"required"`
}

// SubmitAnswerRequest stores or replaces a student's answer.
type SubmitAnswerRequest struct {
	Answer string `json:"answer" validate:"required"`
}

// GradeResult is the outcome of AI-assisted grading.
type GradeResult struct {
	SubmissionID string `json:"submission_id"`
	Score        int    `json:"score"`
	Feedback     string `json:"feedback"`
}
