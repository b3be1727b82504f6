package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/purchase-analytics/internal/reports"
)

// CSVPath returns the file a report is written to inside dir.
func CSVPath(dir, name string) string {
	return filepath.Join(dir, name+".csv")
}

// WriteCSV writes the table to <dir>/<name>.csv with a header row.
// Decimals keep two fixed places and nulls are empty cells.
func WriteCSV(dir string, t *reports.Table) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("WriteCSV: creating %s: %w", dir, err)
	}

	path := CSVPath(dir, t.Name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("WriteCSV: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return "", fmt.Errorf("WriteCSV: %s: writing header: %w", t.Name, err)
	}
	if err := w.WriteAll(t.Strings()); err != nil {
		return "", fmt.Errorf("WriteCSV: %s: writing rows: %w", t.Name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("WriteCSV: %s: closing: %w", t.Name, err)
	}
	return path, nil
}
