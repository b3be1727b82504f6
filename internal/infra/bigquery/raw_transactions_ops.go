package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/purchase-analytics/internal/logger"
	"google.golang.org/api/iterator"
)

const (
	rawTransactionsTable = "raw_transactions"
	insertChunkSize      = 500
)

// InsertRawTransactionsWithClient streams rows into <dataset>.raw_transactions
// in chunks using the provided BigQuery client.
func InsertRawTransactionsWithClient(ctx context.Context, client *bigquery.Client, datasetID string, rows []*RawTransactionRow) error {
	if len(rows) == 0 {
		return nil
	}
	log := logger.FromContext(ctx)

	inserter := client.Dataset(datasetID).Table(rawTransactionsTable).Inserter()
	for start := 0; start < len(rows); start += insertChunkSize {
		end := min(start+insertChunkSize, len(rows))
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("InsertRawTransactions: inserting rows %d-%d: %w", start, end, err)
		}
	}

	log.Info().
		Str("table", datasetID+"."+rawTransactionsTable).
		Int("rows", len(rows)).
		Msg("Raw transactions inserted")
	return nil
}

// LoadRawTransactionsWithClient reads every raw row in ingestion order:
// batches by ingestion time, lines by their position in the batch.
func LoadRawTransactionsWithClient(ctx context.Context, client *bigquery.Client, datasetID string) ([]*RawTransactionRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			batch_id,
			source,
			seq,
			event_time,
			utc_offset_seconds,
			order_id,
			product_id,
			category_id,
			category_code,
			brand,
			price,
			user_id,
			ingested_ts
		FROM `+"`%s.%s`"+`
		ORDER BY ingested_ts, batch_id, seq
	`, datasetID, rawTransactionsTable))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("LoadRawTransactions: query read: %w", err)
	}

	rows := make([]*RawTransactionRow, 0, it.TotalRows)
	for {
		var r RawTransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("LoadRawTransactions: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
