package reports

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Table is a report result in column/row form, ready for export.
// Cells hold string, int, int64, bool, decimal.Decimal or decimal.NullDecimal
// values (or types whose underlying kind is string).
type Table struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"-"`
}

// Strings renders every row with CellString.
func (t *Table) Strings() [][]string {
	out := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = CellString(v)
		}
		out[i] = cells
	}
	return out
}

// CellString formats a cell value. Decimals use two fixed places and nulls render empty.
func CellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case decimal.Decimal:
		return val.StringFixed(Places)
	case decimal.NullDecimal:
		if !val.Valid {
			return ""
		}
		return val.Decimal.StringFixed(Places)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
