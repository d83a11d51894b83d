package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/worksmarter/internal/dto"
	"github.com/noah-isme/worksmarter/internal/models"
	appErrors "github.com/noah-isme/worksmarter/pkg/errors"
	"github.com/noah-isme/worksmarter/pkg/response"
)

type promptService interface {
	Generate(ctx context.Context, claims *models.JWTClaims, tableID string, req dto.GeneratePromptsRequest) (*models.PromptRun, error)
	GenerateAll(ctx context.Context, claims *models.JWTClaims, assignmentID string, req dto.GenerateAllRequest) (*dto.GenerateAllResult, error)
	History(ctx context.Context, claims *models.JWTClaims, tableID, assignmentID string) ([]models.PromptRun, error)
	StudentLatest(ctx context.Context, claims *models.JWTClaims, assignmentID string) (*dto.StudentPromptsView, error)
	SaveResponse(ctx context.Context, claims *models.JWTClaims, promptID string, req dto.SaveResponseRequest) (*models.PromptResponse, error)
}

// PromptHandler serves AI discussion prompts per group.
type PromptHandler struct {
	service promptService
}

// NewPromptHandler constructs the handler.
func NewPromptHandler(svc promptService) *PromptHandler {
	return &PromptHandler{service: svc}
}

// StudentPrompts godoc
// @Summary Latest prompts for my group
// @Description Latest prompt run for the calling student's table with saved responses. run is null until prompts exist.
// @Tags Prompts
// @Produce json
// @Param assignmentId path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /groups/{assignmentId}/student-prompts/ [get]
func (h *PromptHandler) StudentPrompts(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	view, err := h.service.StudentLatest(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Generate godoc
// @Summary Generate prompts for one group
// @Description Inserts a new prompt run. Earlier runs are kept.
// @Tags Prompts
// @Accept json
// @Produce json
// @Param groupId path string true "Table ID"
// @Param payload body dto.GeneratePromptsRequest true "Generation options"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Security BearerAuth
// @Router /groups/{groupId}/generate/ [post]
func (h *PromptHandler) Generate(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.GeneratePromptsRequest
	if !bindJSON(c, &req, "invalid generate payload") {
		return
	}
	run, err := h.service.Generate(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, run)
}

// GenerateAll godoc
// @Summary Generate prompts for every group
// @Description Returns successful, failed and total_groups counts with per-group failures
// @Tags Prompts
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.GenerateAllRequest false "Generation options"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /assignments/{id}/generate-all/ [post]
func (h *PromptHandler) GenerateAll(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.GenerateAllRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	res, err := h.service.GenerateAll(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// History godoc
// @Summary Prompt run history
// @Tags Prompts
// @Produce json
// @Param groupId path string true "Table ID"
// @Param assignment_id query string false "Assignment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /groups/{groupId}/prompt-runs/ [get]
func (h *PromptHandler) History(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	runs, err := h.service.History(c.Request.Context(), claims, c.Param("id"), c.Query("assignment_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, nil)
}

// SaveResponse godoc
// @Summary Save a group response
// @Tags Prompts
// @Accept json
// @Produce json
// @Param id path string true "Prompt ID"
// @Param payload body dto.SaveResponseRequest true "Response"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /prompts/{id}/responses/ [post]
func (h *PromptHandler) SaveResponse(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.SaveResponseRequest
	if !bindJSON(c, &req, "invalid response payload") {
		return
	}
	saved, err := h.service.SaveResponse(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, saved, nil)
}
