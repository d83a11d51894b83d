package export

import "time"

// SeatingChart is the printable state of a classroom's tables.
type SeatingChart struct {
	Classroom   string
	Version     int64
	GeneratedAt time.Time
	Tables      []ChartTable
}

// ChartTable is one table with occupants in seat order.
type ChartTable struct {
	Name     string
	X        float64
	Y        float64
	Students []ChartStudent
}

// ChartStudent is one seated student.
type ChartStudent struct {
	Name     string
	SeatedAt time.Time
}

// Seated returns the number of seated students across all tables.
func (c SeatingChart) Seated() int {
	total := 0
	for _, t := range c.Tables {
		total += len(t.Students)
	}
	return total
}
