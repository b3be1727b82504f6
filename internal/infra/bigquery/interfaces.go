package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	bq "github.com/dvloznov/purchase-analytics/internal/bigquery"
	"github.com/dvloznov/purchase-analytics/internal/reports"
)

// Re-export interfaces and rows from the shared package.
type (
	RawRepository    = bq.RawRepository
	CleanRepository  = bq.CleanRepository
	ReportRepository = bq.ReportRepository
	Repository       = bq.Repository

	RawTransactionRow   = bq.RawTransactionRow
	CleanTransactionRow = bq.CleanTransactionRow
	BuildRunRow         = bq.BuildRunRow
)

// Build run statuses.
const (
	BuildStatusSucceeded = bq.BuildStatusSucceeded
	BuildStatusFailed    = bq.BuildStatusFailed
)

// Row constructors.
var (
	NewRawTransactionRow   = bq.NewRawTransactionRow
	NewCleanTransactionRow = bq.NewCleanTransactionRow
)

// BigQueryRepository is the concrete implementation of Repository. It holds a
// shared BigQuery client to avoid creating a new connection for each operation.
type BigQueryRepository struct {
	client    *bigquery.Client
	datasetID string
}

// NewBigQueryRepository creates a repository over datasetID in projectID.
func NewBigQueryRepository(ctx context.Context, projectID, datasetID string) (*BigQueryRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryRepository: creating client: %w", err)
	}
	return &BigQueryRepository{client: client, datasetID: datasetID}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *BigQueryRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InsertRawTransactions delegates to InsertRawTransactionsWithClient.
func (r *BigQueryRepository) InsertRawTransactions(ctx context.Context, rows []*RawTransactionRow) error {
	return InsertRawTransactionsWithClient(ctx, r.client, r.datasetID, rows)
}

// LoadRawTransactions delegates to LoadRawTransactionsWithClient.
func (r *BigQueryRepository) LoadRawTransactions(ctx context.Context) ([]*RawTransactionRow, error) {
	return LoadRawTransactionsWithClient(ctx, r.client, r.datasetID)
}

// ReplaceCleanTransactions delegates to ReplaceCleanTransactionsWithClient.
func (r *BigQueryRepository) ReplaceCleanTransactions(ctx context.Context, buildID string, rows []*CleanTransactionRow) error {
	return ReplaceCleanTransactionsWithClient(ctx, r.client, r.datasetID, buildID, rows)
}

// RecordBuildRun delegates to RecordBuildRunWithClient.
func (r *BigQueryRepository) RecordBuildRun(ctx context.Context, row *BuildRunRow) error {
	return RecordBuildRunWithClient(ctx, r.client, r.datasetID, row)
}

// SaveReport delegates to SaveReportWithClient.
func (r *BigQueryRepository) SaveReport(ctx context.Context, table *reports.Table) error {
	return SaveReportWithClient(ctx, r.client, r.datasetID, table)
}

// waitForJob blocks until job finishes and surfaces its error status.
func waitForJob(ctx context.Context, op string, job *bigquery.Job) error {
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("%s: waiting for job: %w", op, err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("%s: job error: %w", op, err)
	}
	return nil
}
