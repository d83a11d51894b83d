package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/worksmarter/internal/dto"
	"github.com/noah-isme/worksmarter/internal/middleware"
	"github.com/noah-isme/worksmarter/internal/models"
	appErrors "github.com/noah-isme/worksmarter/pkg/errors"
	"github.com/noah-isme/worksmarter/pkg/response"
)

type tableService interface {
	Snapshot(ctx context.Context, claims *models.JWTClaims, classroomID string) (*dto.TablesSnapshot, error)
	AssignSeat(ctx context.Context, claims *models.JWTClaims, classroomID string, req dto.AssignSeatRequest) (*dto.AssignSeatResult, error)
	ReplaceTables(ctx context.Context, claims *models.JWTClaims, classroomID string, req dto.ReplaceTablesRequest, replace bool) (*dto.TablesSnapshot, error)
	Export(ctx context.Context, claims *models.JWTClaims, classroomID, format string) (string, string, []byte, error)
}

// TableHandler serves seating snapshots and seat changes.
type TableHandler struct {
	service tableService
}

// NewTableHandler constructs the handler.
func NewTableHandler(svc tableService) *TableHandler {
	return &TableHandler{service: svc}
}

// List godoc
// @Summary Seating snapshot
// @Description Every table with seated students and recent messages, the caller's table and the seating version
// @Tags Tables
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /classrooms/{id}/tables/ [get]
func (h *TableHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	snapshot, err := h.service.Snapshot(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "seating_version", snapshot.Version)
	response.JSON(c, http.StatusOK, snapshot, middleware.ExtractMeta(c))
}

// Replace godoc
// @Summary Set table layout
// @Description Creates the classroom's tables. Existing tables are only reset with replace=true, which unseats everyone.
// @Tags Tables
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param replace query bool false "Reset existing tables"
// @Param payload body dto.ReplaceTablesRequest true "Layout"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /classrooms/{id}/tables/ [post]
func (h *TableHandler) Replace(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	replace := false
	if raw := c.Query("replace"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "replace must be true or false"))
			return
		}
		replace = parsed
	}
	var req dto.ReplaceTablesRequest
	if !bindJSON(c, &req, "invalid table layout") {
		return
	}
	snapshot, err := h.service.ReplaceTables(c.Request.Context(), claims, c.Param("id"), req, replace)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// Assign godoc
// @Summary Assign or vacate a seat
// @Description Seats a student at a table, or vacates the seat when table_id is null. The previous seat is released atomically.
// @Tags Tables
// @Accept json
// @Produce json
// @Param id path string true "Classroom ID"
// @Param payload body dto.AssignSeatRequest true "Seat"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /classrooms/{id}/tables/assign/ [post]
func (h *TableHandler) Assign(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.AssignSeatRequest
	if !bindJSON(c, &req, "invalid seat payload") {
		return
	}
	res, err := h.service.AssignSeat(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Export godoc
// @Summary Export seating chart
// @Tags Tables
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Classroom ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /classrooms/{id}/tables/export/ [get]
func (h *TableHandler) Export(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	filename, contentType, payload, err := h.service.Export(c.Request.Context(), claims, c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, filename, contentType, payload)
}
