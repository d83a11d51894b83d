package syncclient

import (
	"context"

	"github.com/noah-isme/worksmarter/internal/dto"
	"github.com/noah-isme/worksmarter/internal/models"
)

// API is the subset of the classroom API the sync workflow calls.
// *client.Client satisfies it.
type API interface {
	Tables(ctx context.Context, classroomID string) (*dto.TablesSnapshot, error)
	AssignSeat(ctx context.Context, classroomID, studentID string, tableID *string) (*dto.AssignSeatResult, error)
	Messages(ctx context.Context, tableID string, afterID int64) ([]models.Message, error)
	SendMessage(ctx context.Context, tableID, content, clientKey string) (*models.Message, error)
	StudentPrompts(ctx context.Context, assignmentID string) (*dto.StudentPromptsView, error)
	GeneratePrompts(ctx context.Context, tableID, assignmentID string, numQuestions int) (*models.PromptRun, error)
	GenerateAll(ctx context.Context, assignmentID string, numQuestions int) (*dto.GenerateAllResult, error)
	SaveResponse(ctx context.Context, promptID, text string) (*models.PromptResponse, error)
}
