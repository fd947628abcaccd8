package export

import "fmt"

// Dataset defines tabular export content. Rows are keyed by header.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// Records returns the rows as ordered string slices following Headers.
func (d Dataset) Records() ([][]string, error) {
	if len(d.Headers) == 0 {
		return nil, fmt.Errorf("dataset requires at least one header")
	}
	records := make([][]string, 0, len(d.Rows))
	for _, row := range d.Rows {
		record := make([]string, len(d.Headers))
		for i, header := range d.Headers {
			record[i] = row[header]
		}
		records = append(records, record)
	}
	return records, nil
}
