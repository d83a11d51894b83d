package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/worksmarter/internal/dto"
	"github.com/noah-isme/worksmarter/internal/models"
	"github.com/noah-isme/worksmarter/pkg/response"
)

type assignmentService interface {
	Create(ctx context.Context, claims *models.JWTClaims, classroomID string, req dto.CreateAssignmentRequest) (*models.Assignment, error)
	List(ctx context.Context, claims *models.JWTClaims, classroomID string) ([]models.Assignment, error)
	Submit(ctx context.Context, claims *models.JWTClaims, assignmentID string, req dto.SubmitAnswerRequest) (*models.Submission, error)
	Grade(ctx context.Context, claims *models.JWTClaims, submissionID string) (*dto.GradeResult, error)
}

// AssignmentHandler serves assignments, submissions and grading.
type AssignmentHandler struct {
	service assignmentService
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(svc assignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: svc}
}

// List godoc
// @Summary List assignments
// @Tags Assignments
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /classrooms/{id}/assignments/ [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	items, err := h.service.List(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Create godoc
// @Summary Create assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.CreateAssignmentRequest true "Assignment"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /classrooms/{id}/assignments/ [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.CreateAssignmentRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	assignment, err := h.service.Create(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Submit godoc
// @Summary Submit an answer
// @Description Stores or replaces the calling student's answer
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.SubmitAnswerRequest true "Answer"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /assignments/{id}/submissions/ [post]
func (h *AssignmentHandler) Submit(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.SubmitAnswerRequest
	if !bindJSON(c, &req, "invalid submission payload") {
		return
	}
	submission, err := h.service.Submit(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// Grade godoc
// @Summary AI-assisted grading
// @Tags Assignments
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Security BearerAuth
// @Router /submissions/{id}/grade/ [post]
func (h *AssignmentHandler) Grade(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	res, err := h.service.Grade(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
