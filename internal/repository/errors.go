package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrTableFull is returned when a seat assignment would exceed table capacity.
	ErrTableFull = errors.New("table is full")
	// ErrForeignTable is returned when a table does not belong to the classroom.
	ErrForeignTable = errors.New("table does not belong to classroom")
	// ErrNotEnrolled is returned when seating a student who never joined.
	ErrNotEnrolled = errors.New("student is not enrolled in classroom")
)

const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a Postgres unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
