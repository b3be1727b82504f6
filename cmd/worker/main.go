package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/purchase-analytics/internal/config"
	infraBQ "github.com/dvloznov/purchase-analytics/internal/infra/bigquery"
	"github.com/dvloznov/purchase-analytics/internal/jobs"
	"github.com/dvloznov/purchase-analytics/internal/jobs/inmemory"
	"github.com/dvloznov/purchase-analytics/internal/logger"
	"github.com/dvloznov/purchase-analytics/internal/pipeline"
	"github.com/dvloznov/purchase-analytics/internal/reports"
	"github.com/rs/zerolog"
)

// The worker rebuilds the clean table on a fixed interval and, optionally,
// refreshes the report tables in BigQuery after every successful rebuild.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	interval := flag.Duration("interval", time.Hour, "Time between scheduled rebuilds")
	saveReports := flag.Bool("save-reports", true, "Replace the report_<name> tables after each rebuild")
	flag.Parse()

	log, err := logger.NewWithLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.RequireProject(); err != nil {
		log.Fatal().Err(err).Msg("BigQuery is not configured")
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	repo, err := infraBQ.NewBigQueryRepository(ctx, cfg.ProjectID, cfg.DatasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	defer repo.Close()

	deps := pipeline.Deps{Raw: repo, Clean: repo}
	dataset := pipeline.NewDataset(cfg.Settings())
	engine := reports.NewEngine(pipeline.NewView(dataset, dataset.Settings()), cfg.ReportOptions())

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(4, jobStore)

	rebuild := pipeline.RebuildJobHandler(deps, dataset)
	handler := func(ctx context.Context, job jobs.Job) error {
		if err := rebuild(ctx, job); err != nil {
			return err
		}
		if !*saveReports {
			return nil
		}
		_, err := pipeline.Report(ctx, pipeline.Deps{Reports: repo}, engine, pipeline.Output{})
		return err
	}

	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Dur("interval", *interval).Msg("Worker service started")
	go schedule(ctx, jobQueue, *interval, log)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer shutdownCancel()

	// Stop the queue and wait for an in-flight rebuild
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	cancel()

	log.Info().Msg("Worker service exited")
}

// schedule publishes one rebuild immediately and then one per interval.
func schedule(ctx context.Context, publisher jobs.Publisher, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job := &jobs.RebuildJob{Trigger: "schedule"}
		if err := publisher.PublishRebuild(ctx, job); err != nil {
			log.Error().Err(err).Msg("Failed to enqueue scheduled rebuild")
		} else {
			log.Info().Str("job_id", job.JobID).Msg("Scheduled rebuild enqueued")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
