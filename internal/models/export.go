package models

import "time"

// ExportFormat names a rendered grade sheet format.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ContentType returns the MIME type of the format.
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportPDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}

// GradeSheetRow is one group's line of a part's grade sheet.
type GradeSheetRow struct {
	Group     string
	Members   []string
	Grader    string
	Earned    *float64
	OutOf     float64
	Submitted bool
	Exempt    bool
}

// ExportResult describes a published export.
type ExportResult struct {
	Key       string       `json:"key"`
	URL       string       `json:"url"`
	Format    ExportFormat `json:"format"`
	ExpiresAt time.Time    `json:"expires_at"`
}
