package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/purchase-analytics/internal/config"
	"github.com/dvloznov/purchase-analytics/internal/gcsuploader"
	infraBQ "github.com/dvloznov/purchase-analytics/internal/infra/bigquery"
	"github.com/dvloznov/purchase-analytics/internal/logger"
	"github.com/dvloznov/purchase-analytics/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.NewWithLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	input := flag.String("input", "", "Comma separated CSV paths or gs:// URIs (or set INPUT_URIS)")
	flag.Parse()

	uris := append(config.SplitList(*input), flag.Args()...)
	if len(uris) == 0 {
		uris = cfg.InputURIs
	}
	if len(uris) == 0 {
		log.Fatal().Msg("Error: --input is required")
	}
	if err := cfg.RequireProject(); err != nil {
		log.Fatal().Err(err).Msg("BigQuery is not configured")
	}

	// Create context with timeout so the command doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewBigQueryRepository(ctx, cfg.ProjectID, cfg.DatasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	defer repo.Close()

	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer storage.Close()

	log.Info().Strs("inputs", uris).Msg("Starting ingestion")

	state, err := pipeline.Ingest(ctx, pipeline.Deps{Storage: storage, Raw: repo}, uris...)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	fmt.Printf("Ingestion completed successfully: batch %s, %d rows, %d rejected.\n",
		state.BatchID, len(state.Batch.Rows), len(state.Batch.Rejected))
}
