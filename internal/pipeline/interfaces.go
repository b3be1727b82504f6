package pipeline

import (
	"github.com/dvloznov/purchase-analytics/internal/gcs"
	infra "github.com/dvloznov/purchase-analytics/internal/infra/bigquery"
)

// StorageService opens source objects and receives exported reports.
type StorageService = gcs.StorageService

// RawRepository stores and reloads the raw purchase lines.
type RawRepository = infra.RawRepository

// CleanRepository materializes the clean set and records build runs.
type CleanRepository = infra.CleanRepository

// ReportRepository persists computed report tables.
type ReportRepository = infra.ReportRepository

// Deps groups the external services a pipeline may use. Every field is
// optional; steps that need a missing dependency are left out.
type Deps struct {
	Storage StorageService
	Raw     RawRepository
	Clean   CleanRepository
	Reports ReportRepository
}

// Output describes where computed reports go.
type Output struct {
	Dir      string // local directory for CSV files, skipped when empty
	Workbook string // xlsx path, skipped when empty

	Bucket string // GCS bucket for exported files, skipped when empty
	Prefix string // object prefix inside Bucket

	Reports []string // report names to compute, all when empty
}
