package syncclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/worksmarter/internal/client"
	"github.com/noah-isme/worksmarter/internal/dto"
	"github.com/noah-isme/worksmarter/internal/models"
)

// ErrEmptyResponse rejects blank prompt responses before any network call.
var ErrEmptyResponse = errors.New("response cannot be empty")

const (
	noSubmissionsMessage = "No answers yet. Ensure students have submitted before generating prompts."
	aiUnavailableMessage = "The AI service is unavailable. Try again shortly."
)

// PromptWorkflow drives prompt generation for teachers and prompt
// responses for students.
type PromptWorkflow struct {
	api      API
	store    *Store
	notifier Notifier
	logger   *zap.Logger
	emit     func()
}

// Generate requests a new prompt run for one group. Earlier runs are kept
// server-side.
func (w *PromptWorkflow) Generate(ctx context.Context, tableID, assignmentID string, numQuestions int) (*models.PromptRun, error) {
	if err := w.store.BeginGeneration(tableID); err != nil {
		return nil, err
	}
	w.emit()

	run, err := w.api.GeneratePrompts(ctx, tableID, assignmentID, numQuestions)
	if err != nil {
		msg := generationFailure(err)
		w.store.FinishGeneration(tableID, msg)
		w.emit()
		w.logger.Info("prompt generation failed", zap.String("table_id", tableID), zap.Error(err))
		w.notifier.Notify(LevelError, msg)
		return nil, err
	}
	w.store.FinishGeneration(tableID, "")
	w.emit()
	w.notifier.Notify(LevelSuccess, fmt.Sprintf("Generated %d prompts.", len(run.Prompts)))
	return run, nil
}

// GenerateAll requests prompts for every group. Groups that fail are left
// retryable; groups that succeeded keep their new run.
func (w *PromptWorkflow) GenerateAll(ctx context.Context, assignmentID string, numQuestions int) (*dto.GenerateAllResult, error) {
	var started []string
	for _, id := range w.store.TableIDs() {
		if w.store.BeginGeneration(id) == nil {
			started = append(started, id)
		}
	}
	w.emit()

	res, err := w.api.GenerateAll(ctx, assignmentID, numQuestions)
	if err != nil {
		msg := generationFailure(err)
		for _, id := range started {
			w.store.FinishGeneration(id, msg)
		}
		w.emit()
		w.notifier.Notify(LevelError, msg)
		return nil, err
	}

	failures := make(map[string]string, len(res.Failures))
	for _, f := range res.Failures {
		failures[f.TableID] = failureForCode(f.Code, f.Message)
	}
	for _, id := range started {
		w.store.FinishGeneration(id, failures[id])
		delete(failures, id)
	}
	for id, msg := range failures {
		w.store.FinishGeneration(id, msg)
	}
	w.emit()

	summary := fmt.Sprintf("Generated prompts for %d of %d groups.", res.Successful, res.TotalGroups)
	switch {
	case res.Failed == 0:
		w.notifier.Notify(LevelSuccess, summary)
	case res.Successful == 0:
		w.notifier.Notify(LevelError, summary)
	default:
		w.notifier.Notify(LevelInfo, fmt.Sprintf("%s %d failed and can be retried.", summary, res.Failed))
	}
	return res, nil
}

// FetchLatest loads the latest run for the caller's group.
func (w *PromptWorkflow) FetchLatest(ctx context.Context, assignmentID string) error {
	view, err := w.api.StudentPrompts(ctx, assignmentID)
	if err != nil {
		return err
	}
	if w.store.SetPrompts(view) {
		w.emit()
	}
	return nil
}

// SetResponseDraft keeps an unsaved response to promptID.
func (w *PromptWorkflow) SetResponseDraft(promptID, text string) {
	w.store.SetResponseDraft(promptID, text)
}

// SaveResponse persists the group's response and marks the prompt
// discussed. On failure the text is kept as a draft.
func (w *PromptWorkflow) SaveResponse(ctx context.Context, promptID, text string) (*models.PromptResponse, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}
	saved, err := w.api.SaveResponse(ctx, promptID, text)
	if err != nil {
		w.store.SetResponseDraft(promptID, text)
		w.emit()
		w.notifier.Notify(LevelError, "Response not saved. "+userMessage(err))
		return nil, err
	}
	w.store.MarkDiscussed(promptID)
	w.emit()
	w.notifier.Notify(LevelSuccess, "Response saved.")
	return saved, nil
}

func generationFailure(err error) string {
	var apiErr *client.Error
	if errors.As(err, &apiErr) && apiErr.Code != "" {
		return failureForCode(apiErr.Code, apiErr.Message)
	}
	return userMessage(err)
}

func failureForCode(code, message string) string {
	switch code {
	case client.CodeNoSubmissions:
		return noSubmissionsMessage
	case client.CodeAIUnavailable:
		return aiUnavailableMessage
	}
	if message == "" {
		return "Prompt generation failed."
	}
	return message
}
