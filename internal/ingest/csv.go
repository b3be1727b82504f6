package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/purchase-analytics/internal/domain"
	"github.com/shopspring/decimal"
)

// Input columns. Optional columns may be absent from the header entirely.
const (
	ColEventTime    = "event_time"
	ColOrderID      = "order_id"
	ColProductID    = "product_id"
	ColCategoryID   = "category_id"
	ColCategoryCode = "category_code"
	ColBrand        = "brand"
	ColPrice        = "price"
	ColUserID       = "user_id"
)

var requiredColumns = []string{ColEventTime, ColOrderID, ColProductID, ColCategoryID, ColPrice}

// TimestampLayouts are tried in order when parsing event_time.
var TimestampLayouts = []string{
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05Z07:00",
	time.RFC3339,
}

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

type columns map[string]int

func (c columns) get(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ParseCSV reads a purchase export with a header row. Columns are located by
// header name, so their order does not matter. Empty optional cells become nulls.
// A row that cannot be parsed is recorded in Batch.Rejected and skipped. An
// unreadable header or a failing reader fails the whole call.
func ParseCSV(r io.Reader, source string) (*Batch, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("ParseCSV: %s: reading header: %w", source, err)
	}
	cols := make(columns, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("ParseCSV: %s: %q: %w", source, name, ErrMissingColumn)
		}
	}

	batch := &Batch{Sources: []string{source}}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, fmt.Errorf("ParseCSV: %s: reading row: %w", source, err)
			}
			batch.Rejected = append(batch.Rejected, Rejection{Source: source, Line: pe.Line, Reason: err.Error()})
			continue
		}

		line, _ := reader.FieldPos(0)
		tx, err := parseRow(row, cols)
		if err != nil {
			batch.Rejected = append(batch.Rejected, Rejection{Source: source, Line: line, Reason: err.Error()})
			continue
		}
		batch.Rows = append(batch.Rows, tx)
	}
	batch.SourceRows = []int{len(batch.Rows)}
	return batch, nil
}

func parseRow(row []string, cols columns) (domain.RawTransaction, error) {
	var tx domain.RawTransaction
	var err error

	if tx.EventTime, err = ParseTimestamp(cols.get(row, ColEventTime)); err != nil {
		return tx, err
	}
	if tx.OrderID, err = parseID(cols.get(row, ColOrderID), ColOrderID); err != nil {
		return tx, err
	}
	if tx.ProductID, err = parseID(cols.get(row, ColProductID), ColProductID); err != nil {
		return tx, err
	}
	if tx.CategoryID, err = parseID(cols.get(row, ColCategoryID), ColCategoryID); err != nil {
		return tx, err
	}
	if tx.Price, err = decimal.NewFromString(cols.get(row, ColPrice)); err != nil {
		return tx, fmt.Errorf("price: %w", err)
	}

	if v := cols.get(row, ColUserID); v != "" {
		id, err := parseID(v, ColUserID)
		if err != nil {
			return tx, err
		}
		tx.UserID = &id
	}
	tx.CategoryCode = optional(cols.get(row, ColCategoryCode))
	tx.Brand = optional(cols.get(row, ColBrand))

	return tx, nil
}

// ParseTimestamp parses an event_time using the first matching layout.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("event_time: empty")
	}
	for _, layout := range TimestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("event_time: unrecognised timestamp %q", s)
}

func parseID(s, column string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("%s: empty", column)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", column, err)
	}
	return id, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
