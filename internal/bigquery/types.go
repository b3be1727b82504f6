package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/purchase-analytics/internal/domain"
	"github.com/dvloznov/purchase-analytics/internal/reports"
	"github.com/shopspring/decimal"
)

// RawRepository stores purchase lines exactly as received.
type RawRepository interface {
	// InsertRawTransactions appends rows to the raw table.
	InsertRawTransactions(ctx context.Context, rows []*RawTransactionRow) error

	// LoadRawTransactions reads the complete raw table.
	LoadRawTransactions(ctx context.Context) ([]*RawTransactionRow, error)
}

// CleanRepository materializes the clean set and its build history.
type CleanRepository interface {
	// ReplaceCleanTransactions swaps the clean table contents for rows in one step.
	ReplaceCleanTransactions(ctx context.Context, buildID string, rows []*CleanTransactionRow) error

	// RecordBuildRun appends one row to the build history.
	RecordBuildRun(ctx context.Context, row *BuildRunRow) error
}

// ReportRepository persists computed report tables.
type ReportRepository interface {
	// SaveReport replaces the contents of the report's table.
	SaveReport(ctx context.Context, table *reports.Table) error
}

// Repository is the full storage surface used by the commands.
type Repository interface {
	RawRepository
	CleanRepository
	ReportRepository
}

// RawTransactionRow represents a raw purchase line in BigQuery.
// event_time is stored as a TIMESTAMP plus the offset it was recorded with,
// so the original wall clock can be restored on load.
type RawTransactionRow struct {
	BatchID string `bigquery:"batch_id"`
	Source  string `bigquery:"source"`
	Seq     int64  `bigquery:"seq"`

	EventTime        time.Time `bigquery:"event_time"`
	UTCOffsetSeconds int64     `bigquery:"utc_offset_seconds"`

	OrderID    int64 `bigquery:"order_id"`
	ProductID  int64 `bigquery:"product_id"`
	CategoryID int64 `bigquery:"category_id"`

	CategoryCode bigquery.NullString `bigquery:"category_code"`
	Brand        bigquery.NullString `bigquery:"brand"`

	Price  *big.Rat           `bigquery:"price"`
	UserID bigquery.NullInt64 `bigquery:"user_id"`

	IngestedTS time.Time `bigquery:"ingested_ts"`
}

// CleanTransactionRow represents one row of the materialized clean set.
type CleanTransactionRow struct {
	ID      int64  `bigquery:"id"`
	BuildID string `bigquery:"build_id"`

	UserID bigquery.NullInt64 `bigquery:"user_id"`

	EventTime           civil.DateTime `bigquery:"event_time"`
	NormalizedEventTime civil.DateTime `bigquery:"normalized_event_time"`

	OrderID    int64 `bigquery:"order_id"`
	ProductID  int64 `bigquery:"product_id"`
	CategoryID int64 `bigquery:"category_id"`

	CategoryCode bigquery.NullString `bigquery:"category_code"`
	Brand        bigquery.NullString `bigquery:"brand"`

	Price *big.Rat `bigquery:"price"`
}

// Build run statuses.
const (
	BuildStatusSucceeded = "SUCCEEDED"
	BuildStatusFailed    = "FAILED"
)

// BuildRunRow records one rebuild of the clean set.
type BuildRunRow struct {
	BuildID    string                 `bigquery:"build_id"`
	StartedTS  time.Time              `bigquery:"started_ts"`
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"`

	Status       string `bigquery:"status"`
	ErrorMessage string `bigquery:"error_message"`

	RawRows   int64 `bigquery:"raw_rows"`
	CleanRows int64 `bigquery:"clean_rows"`

	AmbiguousCategoryIDs int64 `bigquery:"ambiguous_category_ids"`
	AmbiguousProductIDs  int64 `bigquery:"ambiguous_product_ids"`

	NormalizationOffsetSeconds int64 `bigquery:"normalization_offset_seconds"`
}

// NewRawTransactionRow converts a parsed purchase line for insertion. seq is
// the line's position in its batch and keeps reloads in input order.
func NewRawTransactionRow(batchID, source string, seq int64, tx domain.RawTransaction, ingested time.Time) *RawTransactionRow {
	_, offset := tx.EventTime.Zone()
	return &RawTransactionRow{
		BatchID:          batchID,
		Source:           source,
		Seq:              seq,
		EventTime:        tx.EventTime.UTC(),
		UTCOffsetSeconds: int64(offset),
		OrderID:          tx.OrderID,
		ProductID:        tx.ProductID,
		CategoryID:       tx.CategoryID,
		CategoryCode:     nullString(tx.CategoryCode),
		Brand:            nullString(tx.Brand),
		Price:            tx.Price.Rat(),
		UserID:           nullInt64(tx.UserID),
		IngestedTS:       ingested,
	}
}

// Domain restores the purchase line, including the offset it was recorded with.
func (r *RawTransactionRow) Domain() (domain.RawTransaction, error) {
	price, err := decimalFromRat(r.Price)
	if err != nil {
		return domain.RawTransaction{}, fmt.Errorf("order %d: %w", r.OrderID, err)
	}
	zone := time.FixedZone("", int(r.UTCOffsetSeconds))
	if r.UTCOffsetSeconds == 0 {
		zone = time.UTC
	}
	return domain.RawTransaction{
		UserID:       int64Ptr(r.UserID),
		EventTime:    r.EventTime.In(zone),
		OrderID:      r.OrderID,
		ProductID:    r.ProductID,
		CategoryID:   r.CategoryID,
		CategoryCode: stringPtr(r.CategoryCode),
		Brand:        stringPtr(r.Brand),
		Price:        price,
	}, nil
}

// NewCleanTransactionRow converts a clean transaction for the given build.
func NewCleanTransactionRow(buildID string, c domain.CleanTransaction) *CleanTransactionRow {
	return &CleanTransactionRow{
		ID:                  c.ID,
		BuildID:             buildID,
		UserID:              nullInt64(c.UserID),
		EventTime:           c.EventTime,
		NormalizedEventTime: c.NormalizedEventTime,
		OrderID:             c.OrderID,
		ProductID:           c.ProductID,
		CategoryID:          c.CategoryID,
		CategoryCode:        nullString(c.CategoryCode),
		Brand:               nullString(c.Brand),
		Price:               c.Price.Rat(),
	}
}

// JSONValue renders the row for a newline-delimited JSON load job.
func (r *CleanTransactionRow) JSONValue() map[string]any {
	v := map[string]any{
		"id":                    r.ID,
		"build_id":              r.BuildID,
		"user_id":               nil,
		"event_time":            r.EventTime.String(),
		"normalized_event_time": r.NormalizedEventTime.String(),
		"order_id":              r.OrderID,
		"product_id":            r.ProductID,
		"category_id":           r.CategoryID,
		"category_code":         nil,
		"brand":                 nil,
		"price":                 ratString(r.Price),
	}
	if r.UserID.Valid {
		v["user_id"] = r.UserID.Int64
	}
	if r.CategoryCode.Valid {
		v["category_code"] = r.CategoryCode.StringVal
	}
	if r.Brand.Valid {
		v["brand"] = r.Brand.StringVal
	}
	return v
}

// numericScale is the number of fractional digits BigQuery NUMERIC keeps.
const numericScale = 9

func ratString(r *big.Rat) string {
	if r == nil {
		return "0"
	}
	d, err := decimalFromRat(r)
	if err != nil {
		return "0"
	}
	return d.String()
}

func decimalFromRat(r *big.Rat) (decimal.Decimal, error) {
	if r == nil {
		return decimal.Zero, fmt.Errorf("price: null")
	}
	d, err := decimal.NewFromString(r.FloatString(numericScale))
	if err != nil {
		return decimal.Zero, fmt.Errorf("price: %w", err)
	}
	return d, nil
}

func nullString(s *string) bigquery.NullString {
	if s == nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: *s, Valid: true}
}

func stringPtr(s bigquery.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.StringVal
	return &v
}

func nullInt64(i *int64) bigquery.NullInt64 {
	if i == nil {
		return bigquery.NullInt64{}
	}
	return bigquery.NullInt64{Int64: *i, Valid: true}
}

func int64Ptr(i bigquery.NullInt64) *int64 {
	if !i.Valid {
		return nil
	}
	v := i.Int64
	return &v
}
