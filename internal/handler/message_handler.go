package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/worksmarter/internal/dto"
	"github.com/noah-isme/worksmarter/internal/models"
	appErrors "github.com/noah-isme/worksmarter/pkg/errors"
	"github.com/noah-isme/worksmarter/pkg/response"
)

type messageService interface {
	List(ctx context.Context, claims *models.JWTClaims, tableID string, query dto.MessageQuery) ([]models.Message, error)
	Send(ctx context.Context, claims *models.JWTClaims, tableID string, req dto.SendMessageRequest) (*models.Message, error)
}

// MessageHandler serves table discussion threads.
type MessageHandler struct {
	service messageService
}

// NewMessageHandler constructs the handler.
func NewMessageHandler(svc messageService) *MessageHandler {
	return &MessageHandler{service: svc}
}

// List godoc
// @Summary Read a table thread
// @Tags Messages
// @Produce json
// @Param id path string true "Table ID"
// @Param after_id query int false "Only messages with a larger id"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /classrooms/tables/{id}/messages/ [get]
func (h *MessageHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var query dto.MessageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, err := h.service.List(c.Request.Context(), claims, c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Send godoc
// @Summary Post to a table thread
// @Description A repeated client_key returns the already stored message
// @Tags Messages
// @Accept json
// @Produce json
// @Param id path string true "Table ID"
// @Param payload body dto.SendMessageRequest true "Message"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /classrooms/tables/{id}/messages/ [post]
func (h *MessageHandler) Send(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.SendMessageRequest
	if !bindJSON(c, &req, "invalid message payload") {
		return
	}
	msg, err := h.service.Send(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}
