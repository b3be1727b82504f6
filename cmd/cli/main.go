package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/purchase-analytics/internal/config"
	"github.com/dvloznov/purchase-analytics/internal/gcs"
	"github.com/dvloznov/purchase-analytics/internal/gcsuploader"
	infraBQ "github.com/dvloznov/purchase-analytics/internal/infra/bigquery"
	"github.com/dvloznov/purchase-analytics/internal/logger"
	"github.com/dvloznov/purchase-analytics/internal/pipeline"
	"github.com/dvloznov/purchase-analytics/internal/reports"
	"github.com/rs/zerolog"
)

const commandTimeout = 30 * time.Minute

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

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

	switch os.Args[1] {
	case "run":
		runLocal(cfg, log)
	case "ingest":
		runIngest(cfg, log)
	case "rebuild":
		runRebuild(cfg, log)
	case "report":
		runReport(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Purchase Analytics CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  run       Parse CSV files, build the clean set in memory and export every report")
	fmt.Println("  ingest    Parse CSV files and append them to the BigQuery raw table")
	fmt.Println("  rebuild   Rebuild the BigQuery clean table from the raw table")
	fmt.Println("  report    Compute reports from the BigQuery raw table")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
	fmt.Println("\nReports:")
	for _, name := range reports.Names() {
		fmt.Printf("  %s\n", name)
	}
}

// outputFlags are shared by run and report.
type outputFlags struct {
	dir      *string
	workbook *string
	upload   *bool
	prefix   *string
	names    *string
}

func registerOutputFlags(fs *flag.FlagSet) outputFlags {
	return outputFlags{
		dir:      fs.String("out", "out", "Directory for CSV exports (empty to skip)"),
		workbook: fs.String("workbook", "reports.xlsx", "Workbook file name inside -out (empty to skip)"),
		upload:   fs.Bool("upload", false, "Upload exported files to GCS_BUCKET"),
		prefix:   fs.String("prefix", "", "Object prefix for uploads (defaults to reports/<timestamp>)"),
		names:    fs.String("reports", "", "Comma separated report names (default all)"),
	}
}

func (f outputFlags) output(cfg *config.Config) pipeline.Output {
	out := pipeline.Output{Dir: *f.dir}
	if *f.workbook != "" && *f.dir != "" {
		out.Workbook = filepath.Join(*f.dir, *f.workbook)
	}
	out.Reports = config.SplitList(*f.names)
	if *f.upload {
		out.Bucket = cfg.Bucket
		out.Prefix = *f.prefix
		if out.Prefix == "" {
			out.Prefix = "reports/" + time.Now().UTC().Format("20060102T150405Z")
		}
	}
	return out
}

func newContext(log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	return logger.WithContext(ctx, log), cancel
}

// newStorage opens a GCS client only when some input or output needs one.
func newStorage(ctx context.Context, log zerolog.Logger, inputs []string, upload bool) *gcsuploader.GCSStorageService {
	needed := upload
	for _, uri := range inputs {
		needed = needed || gcs.IsURI(uri)
	}
	if !needed {
		return nil
	}
	svc, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	return svc
}

func newRepository(ctx context.Context, cfg *config.Config, log zerolog.Logger) *infraBQ.BigQueryRepository {
	if err := cfg.RequireProject(); err != nil {
		log.Fatal().Err(err).Msg("BigQuery is not configured")
	}
	repo, err := infraBQ.NewBigQueryRepository(ctx, cfg.ProjectID, cfg.DatasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	return repo
}

func inputs(fs *flag.FlagSet, value string, cfg *config.Config, log zerolog.Logger) []string {
	uris := config.SplitList(value)
	uris = append(uris, fs.Args()...)
	if len(uris) == 0 {
		uris = cfg.InputURIs
	}
	if len(uris) == 0 {
		log.Fatal().Msg("Error: no input files; pass -input, positional paths or set INPUT_URIS")
	}
	return uris
}

func runLocal(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	input := fs.String("input", "", "Comma separated CSV paths or gs:// URIs")
	offset := fs.Duration("offset", cfg.TimeOffset, "Normalization offset subtracted from event times")
	outFlags := registerOutputFlags(fs)
	fs.Parse(os.Args[2:])

	cfg.TimeOffset = *offset
	uris := inputs(fs, *input, cfg, log)
	out := outFlags.output(cfg)

	ctx, cancel := newContext(log)
	defer cancel()

	deps := pipeline.Deps{}
	if svc := newStorage(ctx, log, uris, out.Bucket != ""); svc != nil {
		defer svc.Close()
		deps.Storage = svc
	}

	dataset := pipeline.NewDataset(cfg.Settings())
	engine := reports.NewEngine(pipeline.NewView(dataset, dataset.Settings()), cfg.ReportOptions())

	state, err := pipeline.RunLocal(ctx, deps, dataset, engine, out, uris...)
	if err != nil {
		log.Fatal().Err(err).Msg("Run failed")
	}

	printSummary(ctx, engine, state, log)
}

func runIngest(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	input := fs.String("input", "", "Comma separated CSV paths or gs:// URIs")
	rebuild := fs.Bool("rebuild", false, "Rebuild the clean table after ingesting")
	fs.Parse(os.Args[2:])

	uris := inputs(fs, *input, cfg, log)

	ctx, cancel := newContext(log)
	defer cancel()

	repo := newRepository(ctx, cfg, log)
	defer repo.Close()

	deps := pipeline.Deps{Raw: repo, Clean: repo}
	if svc := newStorage(ctx, log, uris, false); svc != nil {
		defer svc.Close()
		deps.Storage = svc
	}

	state, err := pipeline.Ingest(ctx, deps, uris...)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}
	fmt.Printf("Ingested %d rows as batch %s (%d rejected).\n",
		len(state.Batch.Rows), state.BatchID, len(state.Batch.Rejected))

	if *rebuild {
		rebuildAndPrint(ctx, deps, cfg, log)
	}
}

func runRebuild(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)
	offset := fs.Duration("offset", cfg.TimeOffset, "Normalization offset subtracted from event times")
	fs.Parse(os.Args[2:])
	cfg.TimeOffset = *offset

	ctx, cancel := newContext(log)
	defer cancel()

	repo := newRepository(ctx, cfg, log)
	defer repo.Close()

	rebuildAndPrint(ctx, pipeline.Deps{Raw: repo, Clean: repo}, cfg, log)
}

func rebuildAndPrint(ctx context.Context, deps pipeline.Deps, cfg *config.Config, log zerolog.Logger) {
	state, err := pipeline.Rebuild(ctx, deps, pipeline.NewDataset(cfg.Settings()))
	if err != nil {
		log.Fatal().Err(err).Msg("Rebuild failed")
	}
	fmt.Printf("Rebuilt clean table: build %s, %d rows.\n", state.Snapshot.BuildID, len(state.Snapshot.Clean))
}

func runReport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	save := fs.Bool("save", false, "Replace the report_<name> tables in BigQuery")
	outFlags := registerOutputFlags(fs)
	fs.Parse(os.Args[2:])

	out := outFlags.output(cfg)

	ctx, cancel := newContext(log)
	defer cancel()

	repo := newRepository(ctx, cfg, log)
	defer repo.Close()

	deps := pipeline.Deps{Raw: repo}
	if svc := newStorage(ctx, log, nil, out.Bucket != ""); svc != nil {
		defer svc.Close()
		deps.Storage = svc
	}

	dataset := pipeline.NewDataset(cfg.Settings())
	if _, err := pipeline.Rebuild(ctx, deps, dataset); err != nil {
		log.Fatal().Err(err).Msg("Loading raw table failed")
	}

	if *save {
		deps.Reports = repo
	}
	engine := reports.NewEngine(pipeline.NewView(dataset, dataset.Settings()), cfg.ReportOptions())
	state, err := pipeline.Report(ctx, deps, engine, out)
	if err != nil {
		log.Fatal().Err(err).Msg("Report failed")
	}

	printSummary(ctx, engine, state, log)
}

func printSummary(ctx context.Context, engine *reports.Engine, state *pipeline.PipelineState, log zerolog.Logger) {
	summary, err := engine.Summary(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to compute summary")
		return
	}

	fmt.Printf("\nTransactions:          %d\n", summary.Volume)
	fmt.Printf("Revenue:               %s\n", summary.Revenue.StringFixed(reports.Places))
	fmt.Printf("Global AOV:            %s\n", reports.CellString(summary.AOV))
	fmt.Printf("Registered users:      %d\n", summary.RegisteredUsers)
	fmt.Printf("Unlabelled revenue:    %s%%\n", reports.CellString(summary.UnlabelledRevenuePct))
	fmt.Printf("Unknown brand revenue: %s%%\n", reports.CellString(summary.UnknownBrandRevenuePct))
	if len(summary.CorruptYears) > 0 {
		years := make([]string, len(summary.CorruptYears))
		for i, y := range summary.CorruptYears {
			years[i] = fmt.Sprint(y)
		}
		fmt.Printf("Excluded years:        %s\n", strings.Join(years, ", "))
	}
	if summary.RejectedRows > 0 {
		fmt.Printf("Rejected rows:         %d\n", summary.RejectedRows)
	}
	if n := summary.AmbiguousCategoryIDs + summary.AmbiguousProductIDs; n > 0 {
		fmt.Printf("Ambiguous ids:         %d categories, %d products\n",
			summary.AmbiguousCategoryIDs, summary.AmbiguousProductIDs)
	}

	fmt.Printf("\nReports computed: %d\n", len(state.Tables))
	for _, p := range state.Exported {
		fmt.Printf("  %s\n", p)
	}
	for _, uri := range state.Uploaded {
		fmt.Printf("  %s\n", uri)
	}
}
