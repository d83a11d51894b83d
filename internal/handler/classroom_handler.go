package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/worksmarter/internal/dto"
	"github.com/noah-isme/worksmarter/internal/models"
	"github.com/noah-isme/worksmarter/pkg/response"
)

type classroomService interface {
	Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateClassroomRequest) (*models.Classroom, error)
	List(ctx context.Context, claims *models.JWTClaims) ([]dto.ClassroomSummary, error)
	Join(ctx context.Context, claims *models.JWTClaims, req dto.JoinClassroomRequest) (*dto.ClassroomSummary, error)
}

// ClassroomHandler serves classroom listing, creation and join codes.
type ClassroomHandler struct {
	service classroomService
}

// NewClassroomHandler constructs the handler.
func NewClassroomHandler(svc classroomService) *ClassroomHandler {
	return &ClassroomHandler{service: svc}
}

// List godoc
// @Summary List classrooms
// @Description Teachers see the classrooms they own, students the ones they joined
// @Tags Classrooms
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /classrooms/ [get]
func (h *ClassroomHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	items, err := h.service.List(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"total": len(items)})
}

// Create godoc
// @Summary Create classroom
// @Tags Classrooms
// @Accept json
// @Produce json
// @Param payload body dto.CreateClassroomRequest true "Classroom payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /classrooms/ [post]
func (h *ClassroomHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.CreateClassroomRequest
	if !bindJSON(c, &req, "invalid classroom payload") {
		return
	}
	classroom, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, classroom)
}

// Join godoc
// @Summary Redeem a join code
// @Description Enrolls the calling student. Redeeming the same code twice is a no-op.
// @Tags Classrooms
// @Accept json
// @Produce json
// @Param payload body dto.JoinClassroomRequest true "Join code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /classrooms/join/ [post]
func (h *ClassroomHandler) Join(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.JoinClassroomRequest
	if !bindJSON(c, &req, "invalid join payload") {
		return
	}
	summary, err := h.service.Join(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
