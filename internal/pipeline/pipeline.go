package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/purchase-analytics/internal/logger"
	"github.com/dvloznov/purchase-analytics/internal/reports"
)

// NewIngestPipeline parses sources and appends them to the raw table.
func NewIngestPipeline(deps Deps) *Pipeline {
	return NewPipeline(
		&LoadSourcesStep{Opener: deps.Storage},
		&PersistRawStep{Repo: deps.Raw},
	)
}

// NewRebuildPipeline reloads the raw table, rebuilds the dataset and, when a
// clean repository is configured, materializes the result. The new snapshot
// is published last, so a failed materialization leaves readers on the
// previous build, matching the clean table.
func NewRebuildPipeline(deps Deps, dataset *Dataset) *Pipeline {
	steps := []PipelineStep{
		&LoadRawStep{Repo: deps.Raw},
		&RebuildStep{Dataset: dataset, Runs: deps.Clean},
	}
	if deps.Clean != nil {
		steps = append(steps, &PersistCleanStep{Repo: deps.Clean, Settings: dataset.Settings()})
	}
	steps = append(steps, &PublishStep{Dataset: dataset})
	return NewPipeline(steps...)
}

// NewReportPipeline computes reports and sends them to every configured output.
func NewReportPipeline(deps Deps, engine *reports.Engine, out Output) *Pipeline {
	steps := []PipelineStep{&ComputeReportsStep{Engine: engine}}
	if out.Dir != "" || out.Workbook != "" {
		steps = append(steps, &ExportStep{Dir: out.Dir, Workbook: out.Workbook})
		if deps.Storage != nil && out.Bucket != "" {
			steps = append(steps, &UploadStep{Storage: deps.Storage, Bucket: out.Bucket, Prefix: out.Prefix})
		}
	}
	if deps.Reports != nil {
		steps = append(steps, &SaveReportsStep{Repo: deps.Reports})
	}
	return NewPipeline(steps...)
}

// NewLocalPipeline runs everything in memory: parse, rebuild, report and export.
func NewLocalPipeline(deps Deps, dataset *Dataset, engine *reports.Engine, out Output) *Pipeline {
	steps := []PipelineStep{
		&LoadSourcesStep{Opener: deps.Storage},
		&RebuildStep{Dataset: dataset},
		&PublishStep{Dataset: dataset},
	}
	steps = append(steps, NewReportPipeline(deps, engine, out).steps...)
	return NewPipeline(steps...)
}

// Ingest parses sources and stores them as one raw batch.
func Ingest(ctx context.Context, deps Deps, sources ...string) (*PipelineState, error) {
	if deps.Raw == nil {
		return nil, fmt.Errorf("Ingest: no raw repository configured")
	}
	state := &PipelineState{Sources: sources}
	if err := run(ctx, "ingest", NewIngestPipeline(deps), state); err != nil {
		return state, fmt.Errorf("Ingest: %w", err)
	}
	return state, nil
}

// Rebuild rebuilds the dataset from the full raw table.
func Rebuild(ctx context.Context, deps Deps, dataset *Dataset) (*PipelineState, error) {
	if deps.Raw == nil {
		return nil, fmt.Errorf("Rebuild: no raw repository configured")
	}
	state := &PipelineState{}
	if err := run(ctx, "rebuild", NewRebuildPipeline(deps, dataset), state); err != nil {
		return state, fmt.Errorf("Rebuild: %w", err)
	}
	return state, nil
}

// Report computes out.Reports over the current snapshot.
func Report(ctx context.Context, deps Deps, engine *reports.Engine, out Output) (*PipelineState, error) {
	state := &PipelineState{ReportNames: out.Reports}
	if err := run(ctx, "report", NewReportPipeline(deps, engine, out), state); err != nil {
		return state, fmt.Errorf("Report: %w", err)
	}
	return state, nil
}

// RunLocal parses sources, rebuilds the dataset in memory and computes reports.
func RunLocal(ctx context.Context, deps Deps, dataset *Dataset, engine *reports.Engine, out Output, sources ...string) (*PipelineState, error) {
	state := &PipelineState{Sources: sources, ReportNames: out.Reports}
	if err := run(ctx, "run", NewLocalPipeline(deps, dataset, engine, out), state); err != nil {
		return state, fmt.Errorf("RunLocal: %w", err)
	}
	return state, nil
}

func run(ctx context.Context, name string, p *Pipeline, state *PipelineState) error {
	log := logger.FromContext(ctx)
	started := time.Now()

	log.Info().Str("pipeline", name).Int("steps", p.Len()).Msg("Pipeline started")
	if err := p.Execute(ctx, state); err != nil {
		log.Error().Err(err).Str("pipeline", name).Msg("Pipeline failed")
		return err
	}
	log.Info().
		Str("pipeline", name).
		Int("raw_rows", len(state.Raw)).
		Int("reports", len(state.Tables)).
		Dur("duration", time.Since(started)).
		Msg("Pipeline finished")
	return nil
}
