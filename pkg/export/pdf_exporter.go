package export

import (
	"bytes"
	"fmt"
	"math"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfCardWidth  = 58.0
	pdfCardHeight = 42.0
	pdfGap        = 6.0
	pdfColumns    = 3
)

// PDFExporter draws the seating chart as a grid of table cards.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates an A4 document with one card per table.
func (e *PDFExporter) Render(chart SeatingChart) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(false, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, chart.Classroom, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	subtitle := fmt.Sprintf("%d tables, %d seated, version %d", len(chart.Tables), chart.Seated(), chart.Version)
	if !chart.GeneratedAt.IsZero() {
		subtitle += ", " + chart.GeneratedAt.Format("2006-01-02 15:04")
	}
	pdf.CellFormat(0, 6, subtitle, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	_, pageHeight := pdf.GetPageSize()
	top := pdf.GetY()
	row := 0
	for i, table := range chart.Tables {
		col := i % pdfColumns
		if col == 0 && i > 0 {
			row++
		}
		y := top + float64(row)*(pdfCardHeight+pdfGap)
		if y+pdfCardHeight > pageHeight-10 {
			pdf.AddPage()
			top = 15
			row = 0
			y = top
		}
		x := 10 + float64(col)*(pdfCardWidth+pdfGap)
		drawCard(pdf, x, y, table)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func drawCard(pdf *gofpdf.Fpdf, x, y float64, table ChartTable) {
	pdf.SetDrawColor(60, 60, 60)
	pdf.Rect(x, y, pdfCardWidth, pdfCardHeight, "D")

	pdf.SetXY(x, y+2)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(pdfCardWidth, 6, table.Name, "", 2, "C", false, 0, "")

	pdf.SetFont("Arial", "", 8)
	lines := int(math.Floor((pdfCardHeight - 10) / 4.5))
	for i, student := range table.Students {
		if i == lines-1 && len(table.Students) > lines {
			pdf.SetX(x + 3)
			pdf.CellFormat(pdfCardWidth-6, 4.5, fmt.Sprintf("+%d more", len(table.Students)-i), "", 2, "", false, 0, "")
			break
		}
		pdf.SetX(x + 3)
		pdf.CellFormat(pdfCardWidth-6, 4.5, fmt.Sprintf("%d. %s", i+1, student.Name), "", 2, "", false, 0, "")
	}
	if len(table.Students) == 0 {
		pdf.SetX(x + 3)
		pdf.CellFormat(pdfCardWidth-6, 4.5, "(empty)", "", 2, "", false, 0, "")
	}
}
