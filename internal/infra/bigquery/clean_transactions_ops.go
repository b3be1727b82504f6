package bigquery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/purchase-analytics/internal/logger"
)

const (
	cleanTransactionsTable = "clean_transactions"
	cleanStagingTable      = "clean_transactions_staging"
)

// cleanPartitioning and cleanClustering must match migration 0002.
var (
	cleanPartitioning = &bigquery.TimePartitioning{
		Type:  bigquery.MonthPartitioningType,
		Field: "normalized_event_time",
	}
	cleanClustering = &bigquery.Clustering{Fields: []string{"category_id", "product_id"}}
)

// ReplaceCleanTransactionsWithClient loads rows into a staging table and then
// overwrites <dataset>.clean_transactions from it with a single WRITE_TRUNCATE
// query job. Readers see either the previous build or the new one, never a mix.
func ReplaceCleanTransactionsWithClient(ctx context.Context, client *bigquery.Client, datasetID, buildID string, rows []*CleanTransactionRow) error {
	log := logger.FromContext(ctx)
	ds := client.Dataset(datasetID)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range rows {
		if err := enc.Encode(r.JSONValue()); err != nil {
			return fmt.Errorf("ReplaceCleanTransactions: encoding row %d: %w", r.ID, err)
		}
	}

	schema, err := bigquery.InferSchema(CleanTransactionRow{})
	if err != nil {
		return fmt.Errorf("ReplaceCleanTransactions: inferring schema: %w", err)
	}

	src := bigquery.NewReaderSource(&buf)
	src.SourceFormat = bigquery.JSON
	src.Schema = schema

	loader := ds.Table(cleanStagingTable).LoaderFrom(src)
	loader.WriteDisposition = bigquery.WriteTruncate
	loader.CreateDisposition = bigquery.CreateIfNeeded
	loader.Labels = map[string]string{"build_id": buildID}

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("ReplaceCleanTransactions: starting staging load: %w", err)
	}
	if err := waitForJob(ctx, "ReplaceCleanTransactions: staging load", job); err != nil {
		return err
	}

	q := client.Query(fmt.Sprintf("SELECT * FROM `%s.%s`", datasetID, cleanStagingTable))
	q.Dst = ds.Table(cleanTransactionsTable)
	q.WriteDisposition = bigquery.WriteTruncate
	q.CreateDisposition = bigquery.CreateIfNeeded
	q.TimePartitioning = cleanPartitioning
	q.Clustering = cleanClustering
	q.Labels = map[string]string{"build_id": buildID}

	job, err = q.Run(ctx)
	if err != nil {
		return fmt.Errorf("ReplaceCleanTransactions: starting swap query: %w", err)
	}
	if err := waitForJob(ctx, "ReplaceCleanTransactions: swap", job); err != nil {
		return err
	}

	log.Info().
		Str("build_id", buildID).
		Str("table", datasetID+"."+cleanTransactionsTable).
		Int("rows", len(rows)).
		Msg("Clean set materialized")
	return nil
}
