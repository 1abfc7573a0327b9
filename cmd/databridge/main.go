// Command databridge runs the Bronze/Silver ETL pipeline as subcommands:
// ingest, enrich, transform, extract-relationships, consolidate,
// associate-labs, status, and metrics-serve.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lsats/databridge/internal/config"
	"github.com/lsats/databridge/internal/joblog"
	"github.com/lsats/databridge/internal/metrics"
	"github.com/lsats/databridge/internal/model"
	"github.com/lsats/databridge/internal/storage"
)

var (
	configPath   string
	jsonOutput   bool
	fullSync     bool
	dryRun       bool
	batchSize    int
	apiDelay     int
	maxWorkers   int
	stopOnErrors bool

	cfg *config.Config
	db  *storage.DB
)

var rootCmd = &cobra.Command{
	Use:   "databridge",
	Short: "LSA Technology Services Bronze/Silver data pipeline",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to databridge.yaml")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output job results as JSON")
	rootCmd.PersistentFlags().BoolVar(&fullSync, "full-sync", false, "Ignore the incremental watermark")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Compute the plan and counts without writing")
	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", 0, "Override the default batch size")
	rootCmd.PersistentFlags().IntVar(&apiDelay, "api-delay", 0, "Inter-call delay in seconds for rate-limited sources")
	rootCmd.PersistentFlags().IntVar(&maxWorkers, "max-workers", 0, "Override the default worker pool size")
	rootCmd.PersistentFlags().BoolVar(&stopOnErrors, "stop-on-errors", false, "Fail the run on any per-record error")

	rootCmd.AddCommand(ingestCmd, enrichCmd, transformCmd, relationshipsCmd, consolidateCmd, labsCmd, statusCmd, metricsServeCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads config and opens the database pool, shared by every
// subcommand's RunE. Mirrors the teacher's lazy store-init-on-first-use
// pattern, simplified since every databridge invocation needs the DB.
func setup(cmd *cobra.Command) (*joblog.Logger, error) {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	db, err = storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return joblog.Open(cfg.LogDir, cmd.Name(), !jsonOutput)
}

func jobOptions() model.JobOptions {
	opts := model.DefaultJobOptions()
	opts.FullSync = fullSync
	opts.DryRun = dryRun
	opts.StopOnErrors = stopOnErrors
	if batchSize > 0 {
		opts.BatchSize = batchSize
	}
	if maxWorkers > 0 {
		opts.MaxWorkers = maxWorkers
	}
	if apiDelay > 0 {
		opts.APIDelay = time.Duration(apiDelay) * time.Second
	}
	return opts
}

// reportAndExit logs a job's final counts, prints them (as JSON if
// requested), and exits per spec.md §7: 0 on success or "nothing to do",
// 1 on failure or on a per-record error when --stop-on-errors was set.
func reportAndExit(log *joblog.Logger, jobName string, stats model.Stats, err error) {
	defer log.Close()
	if err != nil {
		log.Errorf("%s failed: %v", jobName, err)
		if jsonOutput {
			printJSON(map[string]any{"job": jobName, "error": err.Error()})
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	log.Infof("%s: processed=%d created=%d updated=%d skipped_unchanged=%d errors=%d",
		jobName, stats.Processed, stats.Created, stats.Updated, stats.SkippedUnchanged, stats.Errors)

	if jsonOutput {
		printJSON(map[string]any{
			"job":               jobName,
			"processed":         stats.Processed,
			"created":           stats.Created,
			"updated":           stats.Updated,
			"skipped_unchanged": stats.SkippedUnchanged,
			"errors":            stats.Errors,
			"error_summary":     stats.ErrorSummary,
		})
	} else {
		fmt.Printf("%s: processed=%d created=%d updated=%d skipped_unchanged=%d errors=%d\n",
			jobName, stats.Processed, stats.Created, stats.Updated, stats.SkippedUnchanged, stats.Errors)
	}

	if stats.Failed(stopOnErrors) {
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// recordMetrics pushes one (source, entity) step's counts and duration
// into the Prometheus vectors scraped by `databridge metrics-serve`.
func recordMetrics(job, source, entity string, stats model.Stats, start time.Time, err error) {
	status := "completed"
	if err != nil {
		status = "failed"
	}
	metrics.RecordsProcessed.WithLabelValues(job, source, entity).Add(float64(stats.Processed))
	metrics.RecordsCreated.WithLabelValues(job, source, entity).Add(float64(stats.Created))
	metrics.RecordsUpdated.WithLabelValues(job, source, entity).Add(float64(stats.Updated))
	metrics.RecordsSkipped.WithLabelValues(job, source, entity).Add(float64(stats.SkippedUnchanged))
	metrics.RecordErrors.WithLabelValues(job, source, entity).Add(float64(stats.Errors))
	metrics.Observe(job, source, entity, status, time.Since(start))
}

// sourceEntityArg matches an optional "<source>-<entity>" positional
// argument against a (source, entity) pair, for scoping a job run to one
// pair instead of every registered one.
func sourceEntityArg(args []string, source, entity string) bool {
	if len(args) == 0 {
		return true
	}
	return args[0] == source+"-"+entity
}
