package models

import "time"

// PromptType tags the intent of a generated discussion prompt.
type PromptType string

const (
	PromptTypeFollowUp   PromptType = "follow_up"
	PromptTypeReflection PromptType = "reflection"
	PromptTypeExtension  PromptType = "extension"
	PromptTypeCheckIn    PromptType = "check_in"
)

// Valid reports whether t is one of the known prompt types.
func (t PromptType) Valid() bool {
	switch t {
	case PromptTypeFollowUp, PromptTypeReflection, PromptTypeExtension, PromptTypeCheckIn:
		return true
	}
	return false
}

// PromptRun is one immutable batch of generated prompts for a table and
// assignment. Regeneration inserts a new run; the latest run is the one with
// the greatest CreatedAt.
type PromptRun struct {
	ID           string    `db:"id" json:"id"`
	TableID      string    `db:"table_id" json:"table_id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	Summary      *string   `db:"summary" json:"summary,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	Prompts      []Prompt  `db:"-" json:"prompts"`
}

// Prompt is a single generated question.
type Prompt struct {
	ID         string     `db:"id" json:"id"`
	RunID      string     `db:"run_id" json:"run_id"`
	OrderIndex int        `db:"order_index" json:"order"`
	Type       PromptType `db:"prompt_type" json:"type"`
	Text       string     `db:"text" json:"text"`
}

// PromptResponse is a table's saved answer to a prompt.
type PromptResponse struct {
	ID       string    `db:"id" json:"id"`
	TableID  string    `db:"table_id" json:"table_id"`
	PromptID string    `db:"prompt_id" json:"prompt_id"`
	Text     string    `db:"text" json:"text"`
	SavedBy  string    `db:"saved_by" json:"saved_by"`
	SavedAt  time.Time `db:"saved_at" json:"saved_at"`
}
