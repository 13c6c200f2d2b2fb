// Package main implements the logmill binary: batch analytics over one
// access-log dataset, partitioned by HTTP status code.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/logmill/logmill/internal/config"
	"github.com/logmill/logmill/internal/ingest"
	"github.com/logmill/logmill/internal/logging"
	"github.com/logmill/logmill/internal/orchestrator"
	"github.com/logmill/logmill/internal/sink"
	"github.com/logmill/logmill/internal/storage"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes: 0 full success, 1 one or more analyses failed, 2 ingestion
// or configuration failed.
const (
	exitOK            = 0
	exitAnalysisError = 1
	exitLoadError     = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitLoadError
	}

	switch args[0] {
	case "run":
		return runPipeline(args[1:])
	case "version", "--version":
		fmt.Printf("logmill version %s (commit: %s)\n", version, commit)
		return exitOK
	case "help", "--help", "-h":
		usage()
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		usage()
		return exitLoadError
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "logmill - partitioned access-log analytics\n\n")
	fmt.Fprintf(os.Stderr, "Usage: logmill run --input <path> --output <dir> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  run       Ingest a log file and compute all analyses\n")
	fmt.Fprintf(os.Stderr, "  version   Show version information\n\n")
	fmt.Fprintf(os.Stderr, "Environment Variables:\n")
	fmt.Fprintf(os.Stderr, "  LOGMILL_TOP_K                  Top-K entry count\n")
	fmt.Fprintf(os.Stderr, "  LOGMILL_FAILURE_STATUSES       Failure status set, e.g. 404,500\n")
	fmt.Fprintf(os.Stderr, "  LOGMILL_SUSPICIOUS_THRESHOLD   Suspicious-IP threshold\n")
	fmt.Fprintf(os.Stderr, "  LOGMILL_TREND_BUCKET           minute, hour, or day\n")
	fmt.Fprintf(os.Stderr, "  LOGMILL_PUBLISH_TYPE           none, local, or s3\n")
}

func runPipeline(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var (
		configFile  string
		input       string
		output      string
		topK        int
		threshold   int
		trendBucket string
		timeout     time.Duration
		workers     int
		strict      bool
		jsonLogs    bool
	)
	fs.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	fs.StringVar(&input, "input", "", "Path to the access-log file")
	fs.StringVar(&output, "output", "", "Directory for result files")
	fs.IntVar(&topK, "top-k", 0, "Number of entries for top-K analyses")
	fs.IntVar(&threshold, "threshold", -1, "Suspicious-IP failure threshold")
	fs.StringVar(&trendBucket, "trend-bucket", "", "Trend bucket granularity: minute, hour, day")
	fs.DurationVar(&timeout, "timeout", 0, "Per-analysis timeout (0 = none)")
	fs.IntVar(&workers, "workers", 0, "Concurrent analysis cap (0 = one per analysis)")
	fs.BoolVar(&strict, "strict", false, "Abort on the first malformed row")
	fs.BoolVar(&jsonLogs, "json-logs", false, "Emit logs as JSON")
	_ = fs.Parse(args)

	logging.Init(slog.LevelInfo, jsonLogs)
	log := logging.Component("main")

	cfg, err := loadConfig(configFile)
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		return exitLoadError
	}

	// Command line flags take highest priority.
	if input != "" {
		cfg.Input = input
	}
	if output != "" {
		cfg.Output.Dir = output
	}
	if topK > 0 {
		cfg.Analysis.TopK = topK
	}
	if threshold >= 0 {
		cfg.Analysis.SuspiciousThreshold = threshold
	}
	if trendBucket != "" {
		cfg.Analysis.TrendBucket = config.TrendBucket(trendBucket)
	}
	if timeout > 0 {
		cfg.Analysis.Timeout = timeout
	}
	if workers > 0 {
		cfg.Analysis.Workers = workers
	}
	if strict {
		cfg.Ingest.Strict = true
	}

	if cfg.Input == "" {
		log.Error("--input is required")
		return exitLoadError
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		return exitLoadError
	}
	if err := cfg.EnsureOutputDir(); err != nil {
		log.Error("cannot prepare output directory", "error", err)
		return exitLoadError
	}

	snk, err := buildSink(cfg)
	if err != nil {
		log.Error("cannot initialize result sink", "error", err)
		return exitLoadError
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	orch := orchestrator.New(cfg, snk)
	report, err := orch.Run(ctx, &ingest.FileSource{Path: cfg.Input})
	if err != nil {
		snk.Close()
		log.Error("ingestion failed", "error", err)
		printSummary(report)
		return exitLoadError
	}

	// Close before publishing so the uploaded files are fully flushed.
	if err := snk.Close(); err != nil {
		log.Error("sink close failed", "error", err)
		return exitAnalysisError
	}

	if cfg.Publish.Type != "none" {
		if err := publish(ctx, cfg, report.RunID); err != nil {
			log.Error("publish failed", "error", err)
			return exitAnalysisError
		}
	}

	printSummary(report)

	if failed := report.FailedAnalyses(); len(failed) > 0 {
		log.Error("analyses failed", "failed", failed)
		return exitAnalysisError
	}
	return exitOK
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)
	return cfg, nil
}

// buildSink assembles the configured result sinks.
func buildSink(cfg *config.Config) (sink.Sink, error) {
	dir, err := sink.NewDirSink(cfg.Output.Dir, cfg.Output.CompressExport)
	if err != nil {
		return nil, err
	}
	if !cfg.Output.SQLite {
		return dir, nil
	}
	db, err := sink.NewSQLiteSink(cfg.Output.Dir)
	if err != nil {
		return nil, err
	}
	return sink.NewMulti(dir, db), nil
}

// publish copies the output directory to the configured object storage.
func publish(ctx context.Context, cfg *config.Config, runID string) error {
	var store storage.ObjectStorage
	var err error

	switch cfg.Publish.Type {
	case "local":
		store, err = storage.NewLocalStorage(cfg.Publish.Path)
	case "s3":
		store, err = storage.NewS3Storage(ctx, cfg.Publish.S3.Bucket, storage.S3Config{
			Region:   cfg.Publish.S3.Region,
			Endpoint: cfg.Publish.S3.Endpoint,
		})
	}
	if err != nil {
		return err
	}

	_, err = storage.NewPublisher(store).Publish(ctx, runID, cfg.Output.Dir)
	return err
}

// printSummary writes the structured run summary to stdout.
func printSummary(report *orchestrator.Report) {
	if report == nil {
		return
	}

	fmt.Printf("run %s: %s\n", report.RunID, report.State)
	fmt.Printf("rows read: %d  parsed: %d  malformed: %d  invalid status: %d  bad timestamp: %d\n",
		report.Stats.RowsRead, report.Stats.Parsed, report.Stats.Malformed,
		report.Stats.InvalidStatus, report.Stats.BadTimestamp)

	for _, o := range report.Outcomes {
		if o.Err != nil {
			fmt.Printf("  %-20s FAILED  %v\n", o.Name, o.Err)
			continue
		}
		if o.Result.Scalar != nil {
			fmt.Printf("  %-20s ok  value=%d (%s)\n", o.Name, *o.Result.Scalar, o.Duration.Round(time.Millisecond))
		} else {
			fmt.Printf("  %-20s ok  rows=%d (%s)\n", o.Name, len(o.Result.Pairs), o.Duration.Round(time.Millisecond))
		}
	}
}
