package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dvloznov/purchase-analytics/internal/config"
	"github.com/dvloznov/purchase-analytics/internal/gcsuploader"
	"github.com/dvloznov/purchase-analytics/internal/logger"
)

// upload stages local purchase exports in GCS so ingest can read them by gs:// URI.
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

	var (
		bucketName string
		prefix     string
	)
	flag.StringVar(&bucketName, "bucket", cfg.Bucket, "GCS bucket name (or set GCS_BUCKET)")
	flag.StringVar(&prefix, "prefix", "inputs", "Object name prefix")
	flag.Parse()

	files := flag.Args()
	if bucketName == "" || len(files) == 0 {
		log.Fatal().Msg("Usage: upload [-bucket BUCKET_NAME] [-prefix PREFIX] file.csv [file.csv ...]")
	}

	ctx := logger.WithContext(context.Background(), log)

	svc, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage service")
	}
	defer svc.Close()

	log.Info().
		Str("bucket", bucketName).
		Str("prefix", prefix).
		Int("files", len(files)).
		Msg("Uploading exports to GCS")

	uris, err := gcsuploader.UploadFiles(ctx, svc, bucketName, prefix, files)
	if err != nil {
		log.Fatal().Err(err).Int("uploaded", len(uris)).Msg("Upload failed")
	}

	// Printed as a ready-to-use INPUT_URIS value.
	fmt.Println(strings.Join(uris, ","))
}
