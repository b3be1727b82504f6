package bigquery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/purchase-analytics/internal/reports"
	"github.com/shopspring/decimal"
)

// ReportTablePrefix prefixes every persisted report table.
const ReportTablePrefix = "report_"

// ReportTableName returns the BigQuery table a report is saved to.
func ReportTableName(name string) string {
	return ReportTablePrefix + name
}

// ReportSchema derives a nullable column per report column. Each column's type
// comes from its first non-null cell; columns with no values are STRING.
func ReportSchema(t *reports.Table) bigquery.Schema {
	schema := make(bigquery.Schema, len(t.Columns))
	for i, col := range t.Columns {
		schema[i] = &bigquery.FieldSchema{Name: col, Type: bigquery.StringFieldType}
		for _, row := range t.Rows {
			if ft, ok := cellFieldType(row[i]); ok {
				schema[i].Type = ft
				break
			}
		}
	}
	return schema
}

func cellFieldType(v any) (bigquery.FieldType, bool) {
	switch val := v.(type) {
	case int, int64:
		return bigquery.IntegerFieldType, true
	case bool:
		return bigquery.BooleanFieldType, true
	case decimal.Decimal:
		return bigquery.NumericFieldType, true
	case decimal.NullDecimal:
		return bigquery.NumericFieldType, val.Valid
	case nil:
		return "", false
	default:
		return bigquery.StringFieldType, true
	}
}

// ReportRowJSON renders one report row for a JSON load job. Decimals keep two
// fixed places and null decimals become JSON nulls.
func ReportRowJSON(t *reports.Table, row []any) map[string]any {
	out := make(map[string]any, len(t.Columns))
	for i, col := range t.Columns {
		switch val := row[i].(type) {
		case decimal.NullDecimal:
			if !val.Valid {
				out[col] = nil
				continue
			}
			out[col] = reports.CellString(val)
		case decimal.Decimal:
			out[col] = reports.CellString(val)
		case int, int64, bool, nil:
			out[col] = val
		default:
			out[col] = reports.CellString(val)
		}
	}
	return out
}

// SaveReportWithClient replaces <dataset>.report_<name> with the table's rows.
func SaveReportWithClient(ctx context.Context, client *bigquery.Client, datasetID string, t *reports.Table) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range t.Rows {
		if err := enc.Encode(ReportRowJSON(t, row)); err != nil {
			return fmt.Errorf("SaveReport: %s: encoding row: %w", t.Name, err)
		}
	}

	src := bigquery.NewReaderSource(&buf)
	src.SourceFormat = bigquery.JSON
	src.Schema = ReportSchema(t)

	loader := client.Dataset(datasetID).Table(ReportTableName(t.Name)).LoaderFrom(src)
	loader.WriteDisposition = bigquery.WriteTruncate
	loader.CreateDisposition = bigquery.CreateIfNeeded

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("SaveReport: %s: starting load: %w", t.Name, err)
	}
	return waitForJob(ctx, "SaveReport: "+t.Name, job)
}
