package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Group", "Earned"},
		Rows: []map[string]string{
			{"Group": "team, one", "Earned": "9.50"},
			{"Group": "solo"},
		},
	}
}

func TestCSVExporterQuotesAndOrdersColumns(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "Group,Earned\n\"team, one\",9.50\nsolo,\n", string(out))
}

func TestRenderersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{}, "x")
	assert.Error(t, err)
}

func TestPDFExporterProducesDocument(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "code grades")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestColumnWidthsFollowContent(t *testing.T) {
	widths := columnWidths([]string{"A", "Members"}, [][]string{{"x", "alice bob carol dave"}})
	require.Len(t, widths, 2)
	assert.Equal(t, pdfMinColumn, widths[0])
	assert.Greater(t, widths[1], widths[0])
}
