package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/worksmarter/internal/models"
)

const messageColumns = `id, table_id, sender_id, sender_name, sender_role, content, client_key, created_at`

// MessageRepository stores the append-only table chat log.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository constructs the repository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create appends a message. When the sender already posted a message with
// the same client key at this table the stored copy is returned instead.
func (r *MessageRepository) Create(ctx context.Context, message *models.Message) (*models.Message, error) {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	const insertQuery = `INSERT INTO messages (table_id, sender_id, sender_name, sender_role, content, client_key, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (table_id, sender_id, client_key) WHERE client_key IS NOT NULL DO NOTHING
RETURNING ` + messageColumns
	var stored models.Message
	err := r.db.GetContext(ctx, &stored, insertQuery,
		message.TableID, message.SenderID, message.SenderName, message.SenderRole, message.Content, message.ClientKey, message.CreatedAt)
	if err == nil {
		return &stored, nil
	}
	if err != sql.ErrNoRows || message.ClientKey == nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	const existingQuery = `SELECT ` + messageColumns + ` FROM messages WHERE table_id = $1 AND sender_id = $2 AND client_key = $3`
	if err := r.db.GetContext(ctx, &stored, existingQuery, message.TableID, message.SenderID, *message.ClientKey); err != nil {
		return nil, fmt.Errorf("load duplicate message: %w", err)
	}
	return &stored, nil
}

// ListByTable returns messages in store order. With afterID zero it returns
// the newest limit messages; otherwise the oldest limit messages after
// afterID, so a client that fell behind catches up page by page.
func (r *MessageRepository) ListByTable(ctx context.Context, tableID string, afterID int64, limit int) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE table_id = $1 AND id > $2 ORDER BY created_at, id LIMIT $3`
	if afterID <= 0 {
		query = `SELECT ` + messageColumns + ` FROM (
	SELECT ` + messageColumns + ` FROM messages WHERE table_id = $1 AND id > $2 ORDER BY created_at DESC, id DESC LIMIT $3
) page ORDER BY created_at, id`
	}
	messages := []models.Message{}
	if err := r.db.SelectContext(ctx, &messages, query, tableID, afterID, limit); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}
