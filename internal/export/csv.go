// Package export writes tabular frames to CSV files. It is the only place
// the pipelines touch the filesystem, and it owns the overwrite and append
// semantics the validator later relies on.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vaultlens/vaultlens/internal/tabular"
)

// CSVExporter writes frames into a single output directory. The directory is
// created on first use.
type CSVExporter struct {
	dir string
}

// NewCSVExporter creates an exporter rooted at dir.
func NewCSVExporter(dir string) *CSVExporter {
	return &CSVExporter{dir: dir}
}

// Save writes the frame to filename, replacing any existing file. It returns
// the full path of the written file.
func (e *CSVExporter) Save(f *tabular.Frame, filename string) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("export: create dir %s: %w", e.dir, err)
	}

	path := filepath.Join(e.dir, filename)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("export: create %s: %w", path, err)
	}
	defer file.Close()

	if err := writeFrame(file, f, true); err != nil {
		return "", fmt.Errorf("export: write %s: %w", path, err)
	}
	return path, nil
}

// Append appends the frame's rows to filename, writing the header only when
// the file does not yet exist. Appending twice to a fresh file therefore
// yields exactly one header line.
func (e *CSVExporter) Append(f *tabular.Frame, filename string) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("export: create dir %s: %w", e.dir, err)
	}

	path := filepath.Join(e.dir, filename)
	_, statErr := os.Stat(path)
	writeHeader := os.IsNotExist(statErr)

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("export: open %s: %w", path, err)
	}
	defer file.Close()

	if err := writeFrame(file, f, writeHeader); err != nil {
		return "", fmt.Errorf("export: append %s: %w", path, err)
	}
	return path, nil
}

func writeFrame(file *os.File, f *tabular.Frame, header bool) error {
	w := csv.NewWriter(file)
	if header {
		if err := w.Write(f.Columns); err != nil {
			return err
		}
	}
	for _, row := range f.Rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
