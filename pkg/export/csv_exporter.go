package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"
)

var csvHeaders = []string{"table", "seat", "student", "seated_at"}

// CSVExporter renders a seating chart as one row per seat. Empty tables get
// a single row with blank seat columns.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the chart.
func (e *CSVExporter) Render(chart SeatingChart) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, table := range chart.Tables {
		if len(table.Students) == 0 {
			if err := writer.Write([]string{table.Name, "", "", ""}); err != nil {
				return nil, fmt.Errorf("write csv row: %w", err)
			}
			continue
		}
		for i, student := range table.Students {
			record := []string{table.Name, strconv.Itoa(i + 1), student.Name, student.SeatedAt.UTC().Format(time.RFC3339)}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
