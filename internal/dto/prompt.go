package dto

import "github.com/noah-isme/worksmarter/internal/models"

// GeneratePromptsRequest asks for a new prompt run for one table.
type GeneratePromptsRequest struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
	NumQuestions int    `json:"num_questions" validate:"omitempty,min=1,max=10"`
}

// GenerateAllRequest asks for a prompt run for every table of the
// assignment's classroom.
type GenerateAllRequest struct {
	NumQuestions int `json:"num_questions" validate:"omitempty,min=1,max=10"`
}

// GroupFailure describes why one table could not be served.
type GroupFailure struct {
	TableID   string `json:"table_id"`
	TableName string `json:"table_name"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// GenerateAllResult summarises a bulk generation.
type GenerateAllResult struct {
	Successful  int            `json:"successful"`
	Failed      int            `json:"failed"`
	TotalGroups int            `json:"total_groups"`
	Failures    []GroupFailure `json:"failures,omitempty"`
}

// StudentPromptsView is the latest run for the caller's table together with
// the responses the table has saved so far.
type StudentPromptsView struct {
	TableID   string                  `json:"table_id"`
	Run       *models.PromptRun       `json:"run"`
	Responses []models.PromptResponse `json:"responses"`
}

// SaveResponseRequest stores a table's answer to a prompt.
type SaveResponseRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}
