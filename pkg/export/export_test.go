package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleChart() SeatingChart {
	seated := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return SeatingChart{
		Classroom: "Biology",
		Version:   4,
		Tables: []ChartTable{
			{Name: "Table 1", Students: []ChartStudent{{Name: "Ada", SeatedAt: seated}, {Name: "Grace", SeatedAt: seated.Add(time.Minute)}}},
			{Name: "Table 2"},
		},
	}
}

func TestCSVExporterRendersSeatRows(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleChart())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"table", "seat", "student", "seated_at"}, records[0])
	assert.Equal(t, []string{"Table 1", "2", "Grace", "2024-03-01T09:01:00Z"}, records[2])
	assert.Equal(t, []string{"Table 2", "", "", ""}, records[3])
}

func TestPDFExporterProducesDocument(t *testing.T) {
	chart := sampleChart()
	for i := 0; i < 20; i++ {
		chart.Tables = append(chart.Tables, ChartTable{Name: "Extra"})
	}
	out, err := NewPDFExporter().Render(chart)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Equal(t, 2, chart.Seated())
}
