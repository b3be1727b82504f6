package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/purchase-analytics/internal/reports"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	maxSheetName = 31
	// numFmtTwoPlaces is the built-in "0.00" number format.
	numFmtTwoPlaces = 2
)

// WriteWorkbook writes every table to its own sheet of one xlsx file.
func WriteWorkbook(path string, tables ...*reports.Table) error {
	if len(tables) == 0 {
		return fmt.Errorf("WriteWorkbook: no tables")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("WriteWorkbook: creating directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	decimalStyle, err := f.NewStyle(&excelize.Style{NumFmt: numFmtTwoPlaces})
	if err != nil {
		return fmt.Errorf("WriteWorkbook: creating style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("WriteWorkbook: creating style: %w", err)
	}

	for i, t := range tables {
		sheet := sheetName(t.Name)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				return fmt.Errorf("WriteWorkbook: %s: %w", t.Name, err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("WriteWorkbook: %s: %w", t.Name, err)
		}

		if err := writeSheet(f, sheet, t, headerStyle, decimalStyle); err != nil {
			return fmt.Errorf("WriteWorkbook: %s: %w", t.Name, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("WriteWorkbook: saving %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, t *reports.Table, headerStyle, decimalStyle int) error {
	for c, col := range t.Columns {
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	for r, row := range t.Rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			value, isDecimal := cellValue(v)
			if value == nil {
				continue
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
			if isDecimal {
				if err := f.SetCellStyle(sheet, cell, cell, decimalStyle); err != nil {
					return err
				}
			}
		}
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// cellValue converts a report cell to a value excelize can store natively.
func cellValue(v any) (any, bool) {
	switch val := v.(type) {
	case decimal.Decimal:
		return val.Round(reports.Places).InexactFloat64(), true
	case decimal.NullDecimal:
		if !val.Valid {
			return nil, false
		}
		return val.Decimal.Round(reports.Places).InexactFloat64(), true
	case nil:
		return nil, false
	case string, int, int64, bool:
		return val, false
	default:
		return reports.CellString(val), false
	}
}

func sheetName(name string) string {
	if len(name) > maxSheetName {
		return name[:maxSheetName]
	}
	return name
}
