package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/purchase-analytics/internal/domain"
	"github.com/dvloznov/purchase-analytics/internal/export"
	"github.com/dvloznov/purchase-analytics/internal/gcsuploader"
	infra "github.com/dvloznov/purchase-analytics/internal/infra/bigquery"
	"github.com/dvloznov/purchase-analytics/internal/ingest"
	"github.com/dvloznov/purchase-analytics/internal/logger"
	"github.com/dvloznov/purchase-analytics/internal/reports"
	"github.com/google/uuid"
)

// ErrNoRows is returned when a step that needs raw rows finds none.
var ErrNoRows = errors.New("no raw rows")

// PipelineStep represents a single step in a pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Sources []string
	BatchID string

	Batch    *ingest.Batch
	Raw      []domain.RawTransaction
	Snapshot *Snapshot

	ReportNames []string
	Tables      []*reports.Table
	Exported    []string
	Uploaded    []string
}

// LoadSourcesStep parses every source file into state.Batch and state.Raw.
type LoadSourcesStep struct {
	Opener ingest.Opener
}

func (s *LoadSourcesStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Sources) == 0 {
		return fmt.Errorf("LoadSourcesStep: no sources given")
	}
	batch, err := ingest.LoadSources(ctx, s.Opener, state.Sources...)
	if err != nil {
		return err
	}
	state.Batch = batch
	state.Raw = batch.Rows
	return nil
}

// PersistRawStep appends the parsed batch to the raw table.
type PersistRawStep struct {
	Repo RawRepository
}

func (s *PersistRawStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Batch == nil || len(state.Batch.Rows) == 0 {
		return fmt.Errorf("PersistRawStep: %w", ErrNoRows)
	}
	if state.BatchID == "" {
		state.BatchID = uuid.NewString()
	}

	ingested := time.Now().UTC()
	rows := make([]*infra.RawTransactionRow, len(state.Batch.Rows))
	for i, tx := range state.Batch.Rows {
		rows[i] = infra.NewRawTransactionRow(state.BatchID, state.Batch.SourceOf(i), int64(i), tx, ingested)
	}

	if err := s.Repo.InsertRawTransactions(ctx, rows); err != nil {
		return fmt.Errorf("PersistRawStep: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("batch_id", state.BatchID).
		Int("rows", len(rows)).
		Int("rejected", len(state.Batch.Rejected)).
		Msg("Raw batch stored")
	return nil
}

// LoadRawStep reads the complete raw table into state.Raw.
type LoadRawStep struct {
	Repo RawRepository
}

func (s *LoadRawStep) Execute(ctx context.Context, state *PipelineState) error {
	rows, err := s.Repo.LoadRawTransactions(ctx)
	if err != nil {
		return fmt.Errorf("LoadRawStep: %w", err)
	}
	raw := make([]domain.RawTransaction, len(rows))
	for i, row := range rows {
		if raw[i], err = row.Domain(); err != nil {
			return fmt.Errorf("LoadRawStep: row %d: %w", i, err)
		}
	}
	state.Raw = raw
	return nil
}

// RebuildStep builds a new snapshot from state.Raw into state.Snapshot. It
// does not publish it; PublishStep does that once every later step succeeded.
// When Runs is set a failed build is recorded in the build history.
type RebuildStep struct {
	Dataset *Dataset
	Runs    CleanRepository
}

func (s *RebuildStep) Execute(ctx context.Context, state *PipelineState) error {
	started := time.Now().UTC()
	snap, err := s.Dataset.Build(ctx, state.Raw)
	if err != nil {
		if s.Runs != nil {
			recordFailedBuild(ctx, s.Runs, &infra.BuildRunRow{
				BuildID:   uuid.NewString(),
				StartedTS: started,
				RawRows:   int64(len(state.Raw)),
			}, s.Dataset.Settings(), err)
		}
		return err
	}
	if state.Batch != nil {
		snap.RejectedRows = len(state.Batch.Rejected)
	}
	state.Snapshot = snap
	return nil
}

// PublishStep makes state.Snapshot the dataset's current snapshot.
type PublishStep struct {
	Dataset *Dataset
}

func (s *PublishStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Snapshot == nil {
		return fmt.Errorf("PublishStep: %w", ErrNoSnapshot)
	}
	s.Dataset.Publish(ctx, state.Snapshot)
	return nil
}

// PersistCleanStep materializes the snapshot's clean set and records the build run.
type PersistCleanStep struct {
	Repo     CleanRepository
	Settings Settings
}

func (s *PersistCleanStep) Execute(ctx context.Context, state *PipelineState) error {
	snap := state.Snapshot
	if snap == nil {
		return fmt.Errorf("PersistCleanStep: %w", ErrNoSnapshot)
	}

	run := &infra.BuildRunRow{
		BuildID:              snap.BuildID,
		StartedTS:            snap.BuiltAt.UTC(),
		RawRows:              int64(len(state.Raw)),
		CleanRows:            int64(len(snap.Clean)),
		AmbiguousCategoryIDs: int64(len(snap.CategoryStats.AmbiguousIDs)),
		AmbiguousProductIDs:  int64(len(snap.BrandStats.AmbiguousIDs)),
	}

	rows := make([]*infra.CleanTransactionRow, len(snap.Clean))
	for i, c := range snap.Clean {
		rows[i] = infra.NewCleanTransactionRow(snap.BuildID, c)
	}

	if err := s.Repo.ReplaceCleanTransactions(ctx, snap.BuildID, rows); err != nil {
		recordFailedBuild(ctx, s.Repo, run, s.Settings, err)
		return fmt.Errorf("PersistCleanStep: %w", err)
	}

	run.Status = infra.BuildStatusSucceeded
	run.FinishedTS = bigquery.NullTimestamp{Timestamp: time.Now().UTC(), Valid: true}
	run.NormalizationOffsetSeconds = int64(s.Settings.NormalizationOffset.Seconds())
	if err := s.Repo.RecordBuildRun(ctx, run); err != nil {
		return fmt.Errorf("PersistCleanStep: %w", err)
	}
	return nil
}

// recordFailedBuild stores a FAILED build run. Errors are logged, not returned,
// so the original failure is what the caller sees.
func recordFailedBuild(ctx context.Context, repo CleanRepository, run *infra.BuildRunRow, settings Settings, cause error) {
	run.Status = infra.BuildStatusFailed
	run.ErrorMessage = cause.Error()
	run.FinishedTS = bigquery.NullTimestamp{Timestamp: time.Now().UTC(), Valid: true}
	run.NormalizationOffsetSeconds = int64(settings.NormalizationOffset.Seconds())

	if err := repo.RecordBuildRun(ctx, run); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("build_id", run.BuildID).Msg("Failed to record failed build run")
	}
}

// ComputeReportsStep computes state.ReportNames (all reports when empty).
type ComputeReportsStep struct {
	Engine *reports.Engine
}

func (s *ComputeReportsStep) Execute(ctx context.Context, state *PipelineState) error {
	tables, err := s.Engine.RunAll(ctx, state.ReportNames...)
	if err != nil {
		return fmt.Errorf("ComputeReportsStep: %w", err)
	}
	state.Tables = tables
	return nil
}

// ExportStep writes the computed tables to local files.
type ExportStep struct {
	Dir      string
	Workbook string
}

func (s *ExportStep) Execute(ctx context.Context, state *PipelineState) error {
	paths, err := export.WriteAll(s.Dir, s.Workbook, state.Tables)
	if err != nil {
		return fmt.Errorf("ExportStep: %w", err)
	}
	state.Exported = paths

	log := logger.FromContext(ctx)
	log.Info().Int("files", len(paths)).Str("dir", s.Dir).Msg("Reports exported")
	return nil
}

// UploadStep copies exported files to GCS.
type UploadStep struct {
	Storage StorageService
	Bucket  string
	Prefix  string
}

func (s *UploadStep) Execute(ctx context.Context, state *PipelineState) error {
	uris, err := gcsuploader.UploadFiles(ctx, s.Storage, s.Bucket, s.Prefix, state.Exported)
	state.Uploaded = uris
	if err != nil {
		return fmt.Errorf("UploadStep: %w", err)
	}
	return nil
}

// SaveReportsStep replaces each report's BigQuery table with the computed rows.
type SaveReportsStep struct {
	Repo ReportRepository
}

func (s *SaveReportsStep) Execute(ctx context.Context, state *PipelineState) error {
	for _, t := range state.Tables {
		if err := s.Repo.SaveReport(ctx, t); err != nil {
			return fmt.Errorf("SaveReportsStep: %w", err)
		}
	}
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// Len returns the number of steps.
func (p *Pipeline) Len() int {
	return len(p.steps)
}
