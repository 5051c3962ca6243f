package tabular

import (
	"encoding/csv"
	"fmt"
	"os"
)

// ReadCSV loads a CSV file into a Frame. The first record is the header.
// Ragged rows are rejected by the csv reader.
func ReadCSV(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tabular: open %s: %w", path, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("tabular: read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("tabular: %s: empty file", path)
	}

	return &Frame{
		Columns: records[0],
		Rows:    records[1:],
	}, nil
}
