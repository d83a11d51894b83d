package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/worksmarter/internal/dto"
	"github.com/noah-isme/worksmarter/internal/models"
	"github.com/noah-isme/worksmarter/internal/repository"
	appErrors "github.com/noah-isme/worksmarter/pkg/errors"
	"github.com/noah-isme/worksmarter/pkg/export"
)

const (
	layoutColumns  = 4
	layoutSpacingX = 220.0
	layoutSpacingY = 180.0
)

type tableRepository interface {
	FindByID(ctx context.Context, id string) (*models.Table, error)
	ListByClassroom(ctx context.Context, classroomID string) ([]models.Table, error)
	Replace(ctx context.Context, classroomID string, tables []models.Table) (int64, error)
	Snapshot(ctx context.Context, classroomID string, messageLimit int) (*dto.TablesSnapshot, error)
}

type seatRepository interface {
	AssignSeat(ctx context.Context, params repository.SeatParams) (int64, error)
}

type snapshotCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
	Generation(ctx context.Context, key string) (int64, error)
	Bump(ctx context.Context, key string) (int64, error)
}

type chartRenderer interface {
	Render(chart export.SeatingChart) ([]byte, error)
}

// TableConfig tunes seating behaviour.
type TableConfig struct {
	Capacity     int
	CacheTTL     time.Duration
	MessageLimit int
}

// TableService serves seating snapshots and applies seat and layout changes.
type TableService struct {
	tables    tableRepository
	seats     seatRepository
	guard     accessGuard
	cache     snapshotCache
	csv       chartRenderer
	pdf       chartRenderer
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    TableConfig
}

// NewTableService constructs the service. cache may be nil.
func NewTableService(tables tableRepository, seats seatRepository, classrooms classroomReader, enrollments enrollmentReader, cache snapshotCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config TableConfig) *TableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.MessageLimit <= 0 {
		config.MessageLimit = 200
	}
	return &TableService{
		tables:    tables,
		seats:     seats,
		guard:     accessGuard{classrooms: classrooms, enrollments: enrollments},
		cache:     cache,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// Snapshot returns every table of the classroom with occupants, recent
// messages, the caller's own table and the seating version.
func (s *TableService) Snapshot(ctx context.Context, claims *models.JWTClaims, classroomID string) (*dto.TablesSnapshot, error) {
	if _, _, err := s.guard.classroom(ctx, claims, classroomID); err != nil {
		return nil, err
	}

	snapshot, err := s.loadSnapshot(ctx, classroomID)
	if err != nil {
		return nil, err
	}
	snapshot.MyTableID = snapshot.TableOf(claims.UserID)
	snapshot.FetchedAt = time.Now().UTC()
	return snapshot, nil
}

func (s *TableService) loadSnapshot(ctx context.Context, classroomID string) (*dto.TablesSnapshot, error) {
	key := ""
	if s.cache != nil {
		if generation, err := s.cache.Generation(ctx, snapshotGenerationKey(classroomID)); err == nil {
			key = snapshotCacheKey(classroomID, generation)
			var cached dto.TablesSnapshot
			if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
				return &cached, nil
			}
		}
	}

	snapshot, err := s.tables.Snapshot(ctx, classroomID, s.config.MessageLimit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tables")
	}
	if key != "" {
		_ = s.cache.Set(ctx, key, snapshot, s.config.CacheTTL)
	}
	return snapshot, nil
}

// AssignSeat seats a student at a table, or vacates the seat when TableID is
// nil. Students may only move themselves; teachers may move anyone in their
// classroom. The student's previous seat is released atomically.
func (s *TableService) AssignSeat(ctx context.Context, claims *models.JWTClaims, classroomID string, req dto.AssignSeatRequest) (*dto.AssignSeatResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid seat payload")
	}
	if req.TableID != nil && strings.TrimSpace(*req.TableID) == "" {
		req.TableID = nil
	}
	if _, _, err := s.guard.classroom(ctx, claims, classroomID); err != nil {
		return nil, err
	}
	if !claims.IsTeacher() && req.StudentID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students can only choose their own seat")
	}

	version, err := s.seats.AssignSeat(ctx, repository.SeatParams{
		ClassroomID: classroomID,
		StudentID:   req.StudentID,
		TableID:     req.TableID,
		Capacity:    s.config.Capacity,
	})
	if err != nil {
		appErr := seatError(err)
		s.metrics.RecordSeatAssignment(appErr.Code)
		return nil, appErr
	}
	s.metrics.RecordSeatAssignment("ok")
	s.invalidate(ctx, classroomID)

	s.logger.Info("seat assigned",
		zap.String("classroom_id", classroomID),
		zap.String("student_id", req.StudentID),
		zap.Stringp("table_id", req.TableID),
		zap.Int64("version", version),
	)
	return &dto.AssignSeatResult{StudentID: req.StudentID, TableID: req.TableID, Version: version}, nil
}

func seatError(err error) *appErrors.Error {
	switch {
	case errors.Is(err, repository.ErrTableFull):
		return appErrors.ErrTableFull
	case errors.Is(err, repository.ErrForeignTable):
		return appErrors.Clone(appErrors.ErrNotFound, "table not found in this classroom")
	case errors.Is(err, repository.ErrNotEnrolled):
		return appErrors.Clone(appErrors.ErrNotFound, "student is not enrolled in this classroom")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign seat")
}

// ReplaceTables sets the layout. A classroom that already has tables is only
// reset when replace is true; every student is then unseated.
func (s *TableService) ReplaceTables(ctx context.Context, claims *models.JWTClaims, classroomID string, req dto.ReplaceTablesRequest, replace bool) (*dto.TablesSnapshot, error) {
	if _, err := s.guard.teacherOf(ctx, claims, classroomID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid table layout")
	}
	tables := buildLayout(req)
	if len(tables) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "provide a table count or a list of tables")
	}
	if !replace {
		existing, err := s.tables.ListByClassroom(ctx, classroomID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tables")
		}
		if len(existing) > 0 {
			return nil, appErrors.Clone(appErrors.ErrConflict, "classroom already has tables, pass replace=true to reset them")
		}
	}

	version, err := s.tables.Replace(ctx, classroomID, tables)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace tables")
	}
	s.invalidate(ctx, classroomID)
	s.logger.Info("table layout replaced", zap.String("classroom_id", classroomID), zap.Int("tables", len(tables)), zap.Int64("version", version))

	return s.Snapshot(ctx, claims, classroomID)
}

func buildLayout(req dto.ReplaceTablesRequest) []models.Table {
	if len(req.Tables) > 0 {
		tables := make([]models.Table, len(req.Tables))
		for i, t := range req.Tables {
			tables[i] = models.Table{Name: strings.TrimSpace(t.Name), PositionX: t.X, PositionY: t.Y, Rotation: t.Rotation}
		}
		return tables
	}
	tables := make([]models.Table, req.Count)
	for i := range tables {
		tables[i] = models.Table{
			Name:      fmt.Sprintf("Table %d", i+1),
			PositionX: float64(i%layoutColumns) * layoutSpacingX,
			PositionY: float64(i/layoutColumns) * layoutSpacingY,
		}
	}
	return tables
}

// Export renders the seating chart as csv or pdf for the classroom's teacher.
func (s *TableService) Export(ctx context.Context, claims *models.JWTClaims, classroomID, format string) (string, string, []byte, error) {
	classroom, err := s.guard.teacherOf(ctx, claims, classroomID)
	if err != nil {
		return "", "", nil, err
	}
	var (
		renderer    chartRenderer
		contentType string
	)
	switch strings.ToLower(format) {
	case "", "csv":
		format, renderer, contentType = "csv", s.csv, "text/csv"
	case "pdf":
		format, renderer, contentType = "pdf", s.pdf, "application/pdf"
	default:
		return "", "", nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	snapshot, err := s.tables.Snapshot(ctx, classroomID, 0)
	if err != nil {
		return "", "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tables")
	}

	chart := export.SeatingChart{Classroom: classroom.Name, Version: snapshot.Version, GeneratedAt: time.Now().UTC()}
	for _, table := range snapshot.Tables {
		ct := export.ChartTable{Name: table.Name, X: table.PositionX, Y: table.PositionY}
		for _, st := range table.Students {
			ct.Students = append(ct.Students, export.ChartStudent{Name: st.FullName, SeatedAt: st.SeatedAt})
		}
		chart.Tables = append(chart.Tables, ct)
	}

	payload, err := renderer.Render(chart)
	if err != nil {
		return "", "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render seating chart")
	}
	filename := fmt.Sprintf("seating-%s-v%d.%s", classroom.JoinCode, snapshot.Version, format)
	return filename, contentType, payload, nil
}

func (s *TableService) invalidate(ctx context.Context, classroomID string) {
	if s.cache == nil {
		return
	}
	if err := invalidateSnapshot(ctx, s.cache, classroomID); err != nil {
		s.logger.Warn("snapshot invalidation failed", zap.String("classroom_id", classroomID), zap.Error(err))
	}
}
