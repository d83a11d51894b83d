package dto

import (
	"time"

	"github.com/noah-isme/worksmarter/internal/models"
)

// TableView is one table in a snapshot: layout plus occupants ordered by
// seat time and the table's message thread in store order.
type TableView struct {
	models.Table
	Students []models.SeatedStudent `json:"students"`
	Messages []models.Message       `json:"messages"`
}

// TablesSnapshot is the full seating state of a classroom as seen by one
// caller. Version is the classroom seating version at read time.
type TablesSnapshot struct {
	ClassroomID string      `json:"classroom_id"`
	Version     int64       `json:"version"`
	Tables      []TableView `json:"tables"`
	MyTableID   *string     `json:"my_table_id"`
	FetchedAt   time.Time   `json:"fetched_at"`
}

// Table returns the table with the given id, or nil.
func (s *TablesSnapshot) Table(id string) *TableView {
	if s == nil {
		return nil
	}
	for i := range s.Tables {
		if s.Tables[i].ID == id {
			return &s.Tables[i]
		}
	}
	return nil
}

// TableOf returns the id of the table the student is seated at, or nil.
func (s *TablesSnapshot) TableOf(studentID string) *string {
	if s == nil {
		return nil
	}
	for i := range s.Tables {
		for _, st := range s.Tables[i].Students {
			if st.StudentID == studentID {
				id := s.Tables[i].ID
				return &id
			}
		}
	}
	return nil
}

// TableLayout describes one table in a bulk layout replace.
type TableLayout struct {
	Name     string  `json:"name" validate:"required,max=60"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
}

// ReplaceTablesRequest sets the table layout of a classroom. When Count is
// set and Tables is empty, Count tables named "Table 1".."Table N" are laid
// out on a grid.
type ReplaceTablesRequest struct {
	Count  int           `json:"count" validate:"omitempty,min=1,max=50"`
	Tables []TableLayout `json:"tables" validate:"omitempty,max=50,dive"`
}

// AssignSeatRequest seats a student at a table. A nil TableID vacates the
// student's seat.
type AssignSeatRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	TableID   *string `json:"table_id"`
}

// AssignSeatResult reports the committed seat and the seating version the
// change was written at.
type AssignSeatResult struct {
	StudentID string  `json:"student_id"`
	TableID   *string `json:"table_id"`
	Version   int64   `json:"version"`
}
