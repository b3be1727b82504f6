package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

const (
	buildRunsTable  = "build_runs"
	maxErrorMessage = 2000
)

// RecordBuildRunWithClient inserts one row into <dataset>.build_runs.
// Uses DML INSERT to avoid streaming buffer issues.
func RecordBuildRunWithClient(ctx context.Context, client *bigquery.Client, datasetID string, row *BuildRunRow) error {
	errMsg := row.ErrorMessage
	if len(errMsg) > maxErrorMessage {
		errMsg = errMsg[:maxErrorMessage]
	}

	q := client.Query(fmt.Sprintf(`
		INSERT `+"`%s.%s`"+` (
			build_id, started_ts, finished_ts, status, error_message,
			raw_rows, clean_rows, ambiguous_category_ids, ambiguous_product_ids,
			normalization_offset_seconds
		)
		VALUES (
			@build_id, @started_ts, @finished_ts, @status, @error_message,
			@raw_rows, @clean_rows, @ambiguous_category_ids, @ambiguous_product_ids,
			@normalization_offset_seconds
		)
	`, datasetID, buildRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "build_id", Value: row.BuildID},
		{Name: "started_ts", Value: row.StartedTS},
		{Name: "finished_ts", Value: row.FinishedTS},
		{Name: "status", Value: row.Status},
		{Name: "error_message", Value: errMsg},
		{Name: "raw_rows", Value: row.RawRows},
		{Name: "clean_rows", Value: row.CleanRows},
		{Name: "ambiguous_category_ids", Value: row.AmbiguousCategoryIDs},
		{Name: "ambiguous_product_ids", Value: row.AmbiguousProductIDs},
		{Name: "normalization_offset_seconds", Value: row.NormalizationOffsetSeconds},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("RecordBuildRun: running insert query: %w", err)
	}
	return waitForJob(ctx, "RecordBuildRun", job)
}
