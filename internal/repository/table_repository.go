package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/worksmarter/internal/dto"
	"github.com/noah-isme/worksmarter/internal/models"
)

const tableColumns = `id, classroom_id, name, position_x, position_y, rotation, sort_order, created_at, retired_at`

// TableRepository persists classroom table layouts and reads seating snapshots.
type TableRepository struct {
	db *sqlx.DB
}

// NewTableRepository constructs the repository.
func NewTableRepository(db *sqlx.DB) *TableRepository {
	return &TableRepository{db: db}
}

// FindByID returns a table by id, retired or not.
func (r *TableRepository) FindByID(ctx context.Context, id string) (*models.Table, error) {
	query := `SELECT ` + tableColumns + ` FROM tables WHERE id = $1`
	var table models.Table
	if err := r.db.GetContext(ctx, &table, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find table: %w", err)
	}
	return &table, nil
}

// ListByClassroom returns the classroom's tables in layout order.
func (r *TableRepository) ListByClassroom(ctx context.Context, classroomID string) ([]models.Table, error) {
	query := `SELECT ` + tableColumns + ` FROM tables WHERE classroom_id = $1 AND retired_at IS NULL ORDER BY sort_order, name`
	var tables []models.Table
	if err := r.db.SelectContext(ctx, &tables, query, classroomID); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// Replace swaps the classroom's layout for tables. Every student is unseated
// and the seating version is bumped. Old tables are retired, not deleted, so
// their prompt runs and messages stay readable. It returns the new version.
func (r *TableRepository) Replace(ctx context.Context, classroomID string, tables []models.Table) (version int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin table replace: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const bumpQuery = `UPDATE classrooms SET seating_version = seating_version + 1, updated_at = $2 WHERE id = $1 RETURNING seating_version`
	if err = tx.GetContext(ctx, &version, bumpQuery, classroomID, now); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("bump seating version: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE enrollments SET table_id = NULL, seated_at = NULL WHERE classroom_id = $1`, classroomID); err != nil {
		return 0, fmt.Errorf("unseat students: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE tables SET retired_at = $2 WHERE classroom_id = $1 AND retired_at IS NULL`, classroomID, now); err != nil {
		return 0, fmt.Errorf("retire tables: %w", err)
	}

	const insertQuery = `INSERT INTO tables (id, classroom_id, name, position_x, position_y, rotation, sort_order, created_at)
VALUES (:id, :classroom_id, :name, :position_x, :position_y, :rotation, :sort_order, :created_at)`
	for i := range tables {
		if tables[i].ID == "" {
			tables[i].ID = uuid.NewString()
		}
		tables[i].ClassroomID = classroomID
		tables[i].SortOrder = i
		tables[i].CreatedAt = now
		if _, err = tx.NamedExecContext(ctx, insertQuery, tables[i]); err != nil {
			return 0, fmt.Errorf("insert table %s: %w", tables[i].Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit table replace: %w", err)
	}
	return version, nil
}

// Snapshot reads tables, occupants, recent messages and the seating version
// in one repeatable-read transaction so the version labels the data.
// messageLimit bounds the messages returned per table.
func (r *TableRepository) Snapshot(ctx context.Context, classroomID string, messageLimit int) (*dto.TablesSnapshot, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	snapshot := &dto.TablesSnapshot{ClassroomID: classroomID}
	if err := tx.GetContext(ctx, &snapshot.Version, `SELECT seating_version FROM classrooms WHERE id = $1`, classroomID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("read seating version: %w", err)
	}

	var tables []models.Table
	if err := tx.SelectContext(ctx, &tables, `SELECT `+tableColumns+` FROM tables WHERE classroom_id = $1 AND retired_at IS NULL ORDER BY sort_order, name`, classroomID); err != nil {
		return nil, fmt.Errorf("list snapshot tables: %w", err)
	}

	var seated []models.SeatedStudent
	const seatedQuery = `SELECT e.table_id, e.student_id, u.full_name, e.seated_at
FROM enrollments e
JOIN users u ON u.id = e.student_id
WHERE e.classroom_id = $1 AND e.table_id IS NOT NULL
ORDER BY e.seated_at, u.full_name`
	if err := tx.SelectContext(ctx, &seated, seatedQuery, classroomID); err != nil {
		return nil, fmt.Errorf("list seated students: %w", err)
	}

	var messages []models.Message
	const messageQuery = `SELECT id, table_id, sender_id, sender_name, sender_role, content, client_key, created_at FROM (
	SELECT m.*, ROW_NUMBER() OVER (PARTITION BY m.table_id ORDER BY m.created_at DESC, m.id DESC) AS rn
	FROM messages m
	JOIN tables t ON t.id = m.table_id
	WHERE t.classroom_id = $1 AND t.retired_at IS NULL
) recent
WHERE rn <= $2
ORDER BY created_at, id`
	if err := tx.SelectContext(ctx, &messages, messageQuery, classroomID, messageLimit); err != nil {
		return nil, fmt.Errorf("list snapshot messages: %w", err)
	}

	views := make([]dto.TableView, len(tables))
	index := make(map[string]int, len(tables))
	for i, table := range tables {
		views[i] = dto.TableView{Table: table, Students: []models.SeatedStudent{}, Messages: []models.Message{}}
		index[table.ID] = i
	}
	for _, student := range seated {
		if i, ok := index[student.TableID]; ok {
			views[i].Students = append(views[i].Students, student)
		}
	}
	for _, message := range messages {
		if i, ok := index[message.TableID]; ok {
			views[i].Messages = append(views[i].Messages, message)
		}
	}
	snapshot.Tables = views
	return snapshot, nil
}
