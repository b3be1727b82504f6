// Package export writes report tables to local files.
package export

import (
	"fmt"

	"github.com/dvloznov/purchase-analytics/internal/reports"
)

// WriteAll writes one CSV per table into dir and, when workbook is not empty,
// an xlsx workbook at that path. It returns the written file paths.
func WriteAll(dir, workbook string, tables []*reports.Table) ([]string, error) {
	paths := make([]string, 0, len(tables)+1)
	for _, t := range tables {
		p, err := WriteCSV(dir, t)
		if err != nil {
			return paths, fmt.Errorf("WriteAll: %w", err)
		}
		paths = append(paths, p)
	}
	if workbook != "" && len(tables) > 0 {
		if err := WriteWorkbook(workbook, tables...); err != nil {
			return paths, fmt.Errorf("WriteAll: %w", err)
		}
		paths = append(paths, workbook)
	}
	return paths, nil
}
