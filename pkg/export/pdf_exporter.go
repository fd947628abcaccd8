package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth = 277.0 // A4 landscape minus margins
	pdfMinColumn = 18.0
)

// PDFExporter renders datasets into a tabular landscape PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and table body. Column widths
// follow the longest value of each column.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	records, err := data.Records()
	if err != nil {
		return nil, err
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
		pdf.Ln(3)
	}

	widths := columnWidths(data.Headers, records)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, header := range data.Headers {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, record := range records {
		for i, value := range record {
			pdf.CellFormat(widths[i], 7, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(headers []string, records [][]string) []float64 {
	longest := make([]int, len(headers))
	total := 0
	for i, h := range headers {
		longest[i] = len(h)
		for _, r := range records {
			if len(r[i]) > longest[i] {
				longest[i] = len(r[i])
			}
		}
		total += longest[i]
	}
	widths := make([]float64, len(headers))
	for i := range headers {
		w := pdfPageWidth * float64(longest[i]) / float64(total)
		if w < pdfMinColumn {
			w = pdfMinColumn
		}
		widths[i] = w
	}
	return widths
}
