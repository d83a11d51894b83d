package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/worksmarter/internal/dto"
	"github.com/noah-isme/worksmarter/internal/models"
	appErrors "github.com/noah-isme/worksmarter/pkg/errors"
)

type messageRepository interface {
	Create(ctx context.Context, message *models.Message) (*models.Message, error)
	ListByTable(ctx context.Context, tableID string, afterID int64, limit int) ([]models.Message, error)
}

type tableFinder interface {
	FindByID(ctx context.Context, id string) (*models.Table, error)
}

// MessageService reads and appends table discussion threads.
type MessageService struct {
	messages  messageRepository
	tables    tableFinder
	guard     accessGuard
	cache     snapshotCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	pageSize  int
}

// NewMessageService constructs the service. cache may be nil.
func NewMessageService(messages messageRepository, tables tableFinder, classrooms classroomReader, enrollments enrollmentReader, cache snapshotCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, pageSize int) *MessageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if pageSize <= 0 {
		pageSize = 200
	}
	return &MessageService{
		messages:  messages,
		tables:    tables,
		guard:     accessGuard{classrooms: classrooms, enrollments: enrollments},
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		pageSize:  pageSize,
	}
}

// List returns the table's thread in store order. Only the classroom's
// teacher and students seated at the table may read it.
func (s *MessageService) List(ctx context.Context, claims *models.JWTClaims, tableID string, query dto.MessageQuery) ([]models.Message, error) {
	if _, err := s.authorize(ctx, claims, tableID); err != nil {
		return nil, err
	}
	limit := query.Limit
	if limit <= 0 || limit > s.pageSize {
		limit = s.pageSize
	}
	messages, err := s.messages.ListByTable(ctx, tableID, query.AfterID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messages")
	}
	return messages, nil
}

// Send appends a message. A repeated client key returns the stored message
// instead of creating a duplicate.
func (s *MessageService) Send(ctx context.Context, claims *models.JWTClaims, tableID string, req dto.SendMessageRequest) (*models.Message, error) {
	req.Content = strings.TrimSpace(req.Content)
	req.ClientKey = strings.TrimSpace(req.ClientKey)
	if req.Content == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "message cannot be empty")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}

	table, err := s.authorize(ctx, claims, tableID)
	if err != nil {
		return nil, err
	}
	if table.Retired() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "table was removed from the layout")
	}

	message := &models.Message{
		TableID:    tableID,
		SenderID:   claims.UserID,
		SenderName: claims.FullName,
		SenderRole: claims.Role,
		Content:    req.Content,
	}
	if req.ClientKey != "" {
		message.ClientKey = &req.ClientKey
	}

	stored, err := s.messages.Create(ctx, message)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send message")
	}
	s.metrics.RecordMessage()
	if s.cache != nil {
		if err := invalidateSnapshot(ctx, s.cache, table.ClassroomID); err != nil {
			s.logger.Warn("snapshot invalidation failed", zap.String("classroom_id", table.ClassroomID), zap.Error(err))
		}
	}
	return stored, nil
}

func (s *MessageService) authorize(ctx context.Context, claims *models.JWTClaims, tableID string) (*models.Table, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	table, err := s.tables.FindByID(ctx, tableID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "table not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load table")
	}
	if _, err := s.guard.table(ctx, claims, table.ClassroomID, tableID); err != nil {
		return nil, err
	}
	return table, nil
}
