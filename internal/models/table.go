package models

import "time"

// Table is a discussion pod inside a classroom. Position fields are layout
// hints for the seating chart only.
type Table struct {
	ID          string     `db:"id" json:"id"`
	ClassroomID string     `db:"classroom_id" json:"classroom_id"`
	Name        string     `db:"name" json:"name"`
	PositionX   float64    `db:"position_x" json:"x"`
	PositionY   float64    `db:"position_y" json:"y"`
	Rotation    float64    `db:"rotation" json:"rotation"`
	SortOrder   int        `db:"sort_order" json:"sort_order"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	RetiredAt   *time.Time `db:"retired_at" json:"retired_at,omitempty"`
}

// Retired reports whether a layout reset replaced the table.
func (t Table) Retired() bool { return t.RetiredAt != nil }

// SeatedStudent is a student occupying a table, ordered by SeatedAt.
type SeatedStudent struct {
	TableID   string    `db:"table_id" json:"table_id"`
	StudentID string    `db:"student_id" json:"id"`
	FullName  string    `db:"full_name" json:"name"`
	SeatedAt  time.Time `db:"seated_at" json:"seated_at"`
}

// Message is one entry of a table's append-only chat log. ClientKey is the
// sender-generated idempotency key echoed back to the sender.
type Message struct {
	ID         int64     `db:"id" json:"id"`
	TableID    string    `db:"table_id" json:"table_id"`
	SenderID   string    `db:"sender_id" json:"sender_id"`
	SenderName string    `db:"sender_name" json:"sender_name"`
	SenderRole UserRole  `db:"sender_role" json:"sender_role"`
	Content    string    `db:"content" json:"content"`
	ClientKey  *string   `db:"client_key" json:"client_key,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
