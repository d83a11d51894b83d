package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/worksmarter/internal/dto"
	"github.com/noah-isme/worksmarter/internal/models"
	"github.com/noah-isme/worksmarter/internal/repository"
	appErrors "github.com/noah-isme/worksmarter/pkg/errors"
	"github.com/noah-isme/worksmarter/pkg/jobs"
)

type promptFixture struct {
	seating     *fakeSeating
	assignments *fakeAssignments
	prompts     *fakePrompts
	provider    *fakeProvider
	svc         *PromptService
}

// newPromptFixture builds a classroom with n tables, one seated student
// per table, and a submission from every student except those at the
// tables listed in silent.
func newPromptFixture(n int, silent ...int) *promptFixture {
	classrooms := newFakeClassrooms(&models.Classroom{ID: "c1", TeacherID: "teach", Name: "Biology", JoinCode: "BIO234", Status: models.ClassroomStatusActive})
	seating := newFakeSeating()
	assignments := newFakeAssignments(seating, &models.Assignment{ID: "a1", ClassroomID: "c1", Title: "Cells", Question: "What does the membrane do?"})

	skip := map[int]bool{}
	for _, i := range silent {
		skip[i] = true
	}
	for i := 1; i <= n; i++ {
		tableID := fmt.Sprintf("t%d", i)
		studentID := fmt.Sprintf("s%d", i)
		seating.addTable("c1", tableID, fmt.Sprintf("Table %d", i))
		seating.enroll("c1", studentID, "Student "+studentID)
		seating.seat("c1", studentID, tableID)
		if !skip[i] {
			_ = assignments.UpsertSubmission(context.Background(), &models.Submission{AssignmentID: "a1", StudentID: studentID, StudentName: "Student " + studentID, Answer: "it controls what enters"})
		}
	}

	prompts := newFakePrompts()
	provider := &fakeProvider{failFor: map[string]bool{}}
	pool := jobs.NewPool("prompts-test", jobs.PoolConfig{Workers: 3})
	svc := NewPromptService(prompts, assignments, seating, classrooms, seating, provider, pool, nil, nil, zap.NewNop(), PromptConfig{DefaultQuestions: 3})
	return &promptFixture{seating: seating, assignments: assignments, prompts: prompts, provider: provider, svc: svc}
}

func TestPromptServiceGenerateAllReportsPartialFailure(t *testing.T) {
	fx := newPromptFixture(5, 3)

	res, err := fx.svc.GenerateAll(context.Background(), teacherClaims("teach"), "a1", dto.GenerateAllRequest{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Successful)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 5, res.TotalGroups)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "t3", res.Failures[0].TableID)
	assert.Equal(t, "Table 3", res.Failures[0].TableName)
	assert.Equal(t, appErrors.ErrNoSubmissions.Code, res.Failures[0].Code)
	assert.Len(t, fx.prompts.runs, 4)
}

func TestPromptServiceGenerateAllProviderFailure(t *testing.T) {
	fx := newPromptFixture(3)
	fx.provider.failFor["Table 2"] = true

	res, err := fx.svc.GenerateAll(context.Background(), teacherClaims("teach"), "a1", dto.GenerateAllRequest{NumQuestions: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Successful)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, appErrors.ErrAIUnavailable.Code, res.Failures[0].Code)
	for _, call := range fx.provider.calls {
		assert.Equal(t, 2, call.Count)
	}
}

func TestPromptServiceGenerateAllRequiresOwner(t *testing.T) {
	fx := newPromptFixture(2)

	_, err := fx.svc.GenerateAll(context.Background(), studentClaims("s1"), "a1", dto.GenerateAllRequest{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = fx.svc.GenerateAll(context.Background(), teacherClaims("teach"), "missing", dto.GenerateAllRequest{})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPromptServiceRegenerateKeepsHistory(t *testing.T) {
	fx := newPromptFixture(1)
	ctx := context.Background()
	teacher := teacherClaims("teach")

	first, err := fx.svc.Generate(ctx, teacher, "t1", dto.GeneratePromptsRequest{AssignmentID: "a1"})
	require.NoError(t, err)
	require.Len(t, first.Prompts, 3)
	require.NotNil(t, first.Summary)
	assert.Equal(t, models.PromptTypeFollowUp, first.Prompts[0].Type)

	second, err := fx.svc.Generate(ctx, teacher, "t1", dto.GeneratePromptsRequest{AssignmentID: "a1", NumQuestions: 4})
	require.NoError(t, err)
	assert.Len(t, second.Prompts, 4)

	history, err := fx.svc.History(ctx, teacher, "t1", "a1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)

	view, err := fx.svc.StudentLatest(ctx, studentClaims("s1"), "a1")
	require.NoError(t, err)
	require.NotNil(t, view.Run)
	assert.Equal(t, second.ID, view.Run.ID)
}

func TestPromptServiceHistorySurvivesLayoutReset(t *testing.T) {
	fx := newPromptFixture(1)
	ctx := context.Background()
	teacher := teacherClaims("teach")

	run, err := fx.svc.Generate(ctx, teacher, "t1", dto.GeneratePromptsRequest{AssignmentID: "a1"})
	require.NoError(t, err)
	_, err = fx.seating.Replace(ctx, "c1", []models.Table{{Name: "Table 1"}})
	require.NoError(t, err)

	history, err := fx.svc.History(ctx, teacher, "t1", "a1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, run.ID, history[0].ID)

	_, err = fx.svc.Generate(ctx, teacher, "t1", dto.GeneratePromptsRequest{AssignmentID: "a1"})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestPromptServiceGenerateWithoutSubmissions(t *testing.T) {
	fx := newPromptFixture(1, 1)

	_, err := fx.svc.Generate(context.Background(), teacherClaims("teach"), "t1", dto.GeneratePromptsRequest{AssignmentID: "a1"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNoSubmissions.Code, appErr.Code)
	assert.Equal(t, 422, appErr.Status)
	assert.Empty(t, fx.provider.calls)
}

func TestPromptServiceStudentLatest(t *testing.T) {
	fx := newPromptFixture(1)
	fx.seating.enroll("c1", "loner", "Loner")
	ctx := context.Background()

	_, err := fx.svc.StudentLatest(ctx, studentClaims("loner"), "a1")
	assert.Equal(t, appErrors.ErrNotSeated.Code, appErrors.FromError(err).Code)

	view, err := fx.svc.StudentLatest(ctx, studentClaims("s1"), "a1")
	require.NoError(t, err)
	assert.Equal(t, "t1", view.TableID)
	assert.Nil(t, view.Run)
	assert.NotNil(t, view.Responses)

	_, err = fx.svc.StudentLatest(ctx, teacherClaims("teach"), "a1")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestPromptServiceSaveResponse(t *testing.T) {
	fx := newPromptFixture(2)
	fx.prompts.targets["p1"] = &repository.PromptTarget{PromptID: "p1", TableID: "t1", ClassroomID: "c1", AssignmentID: "a1"}
	ctx := context.Background()

	saved, err := fx.svc.SaveResponse(ctx, studentClaims("s1"), "p1", dto.SaveResponseRequest{Text: "  osmosis  "})
	require.NoError(t, err)
	assert.Equal(t, "osmosis", saved.Text)
	assert.Equal(t, "s1", saved.SavedBy)

	_, err = fx.svc.SaveResponse(ctx, studentClaims("s2"), "p1", dto.SaveResponseRequest{Text: "not my table"})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = fx.svc.SaveResponse(ctx, studentClaims("s1"), "p1", dto.SaveResponseRequest{Text: "   "})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = fx.svc.SaveResponse(ctx, studentClaims("s1"), "missing", dto.SaveResponseRequest{Text: "x"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
