package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/purchase-analytics/internal/api"
	"github.com/dvloznov/purchase-analytics/internal/api/handlers"
	"github.com/dvloznov/purchase-analytics/internal/config"
	infraBQ "github.com/dvloznov/purchase-analytics/internal/infra/bigquery"
	"github.com/dvloznov/purchase-analytics/internal/jobs"
	"github.com/dvloznov/purchase-analytics/internal/jobs/inmemory"
	"github.com/dvloznov/purchase-analytics/internal/logger"
	"github.com/dvloznov/purchase-analytics/internal/pipeline"
	"github.com/dvloznov/purchase-analytics/internal/reports"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	port := flag.String("port", cfg.Port, "HTTP server port (or set PORT)")
	materialize := flag.Bool("materialize", true, "Write the clean table back to BigQuery on every rebuild")
	flag.Parse()

	log, err := logger.NewWithLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.RequireProject(); err != nil {
		log.Fatal().Err(err).Msg("BigQuery is not configured")
	}

	ctx := logger.WithContext(context.Background(), log)

	repo, err := infraBQ.NewBigQueryRepository(ctx, cfg.ProjectID, cfg.DatasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	defer repo.Close()

	deps := pipeline.Deps{Raw: repo}
	if *materialize {
		deps.Clean = repo
	}

	dataset := pipeline.NewDataset(cfg.Settings())
	engine := reports.NewEngine(pipeline.NewView(dataset, dataset.Settings()), cfg.ReportOptions())

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(16, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Msg("Starting rebuild worker")
	if err := jobQueue.Start(workerCtx, pipeline.RebuildJobHandler(deps, dataset)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job worker")
	}

	// Build the first snapshot in the background; reports answer 503 until it lands.
	if err := jobQueue.PublishRebuild(ctx, &jobs.RebuildJob{Trigger: "startup"}); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue startup rebuild")
	}

	handler := api.NewRouter(
		handlers.NewReportsHandler(engine, log),
		handlers.NewJobsHandler(jobStore, jobQueue, log),
		log,
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop the queue and wait for an in-flight rebuild
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
