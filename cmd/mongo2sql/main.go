package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"mongo2sql/internal/config"
	"mongo2sql/internal/convert"
	"mongo2sql/internal/inference"
	"mongo2sql/internal/metrics"
	"mongo2sql/internal/metrics/datadog"
	"mongo2sql/internal/migrate"
	"mongo2sql/internal/source/mongo"
	"mongo2sql/internal/storage"

	// register all backends with the storage factory.
	// config specifies which to use but we build in support for all of them.
	_ "mongo2sql/internal/storage/all"
)

func main() {
	os.Exit(run())
}

// run loads the run config, optionally initializes a metrics backend, runs
// the migration and prints the per-collection outcome report. It returns the
// process exit code instead of calling os.Exit so deferred cleanup (metrics
// final flush, source/target closes) always runs first.
func run() int {
	var (
		cfgPath           string
		metricsBackendFlg string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/migration.json", "migration config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (datadog, none)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintln(os.Stderr, iss)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		return 1
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		return 0
	}

	config.Normalize(&cfg)

	// Decide metrics backend: flag first, then env, then the default.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		jobName := cfg.Job
		if jobName == "" {
			jobName = "mongo2sql"
		}
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))

		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName: jobName,
			Tags:    extraTags,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=%v job_name=%v tags=%v", backendName, jobName, extraTags)
			metrics.SetBackend(b)
			// Close stops the periodic flush loop and performs a final Flush.
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
				}
			}()
		}

	case "", "none":
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()
	start := time.Now()

	src, err := mongo.Connect(ctx, mongo.Config{
		URI:            cfg.Source.URI,
		Database:       cfg.Source.Database,
		ConnectTimeout: time.Duration(cfg.Source.ConnectTimeoutSeconds) * time.Second,
	})
	if err != nil {
		log.Printf("source: %v", err)
		return 1
	}
	defer func() {
		if err := src.Close(ctx); err != nil {
			log.Printf("source close: %v", err)
		}
	}()

	repo, err := storage.New(ctx, storage.Config{Kind: cfg.Target.Kind, DSN: cfg.Target.DSN})
	if err != nil {
		log.Printf("storage: %v", err)
		return 1
	}
	defer repo.Close()

	policy := convert.PolicyFallback
	if cfg.Migration.OnMismatch == config.MismatchReject {
		policy = convert.PolicyReject
	}

	m := &migrate.Migrator{
		Source: src,
		Repo:   repo,
		Logger: log.Default(),
		Options: migrate.Options{
			SampleSize: cfg.Migration.SampleSize,
			BatchSize:  cfg.Migration.BatchSize,
			Recreate:   cfg.Migration.Recreate,
			Workers:    cfg.Migration.Workers,
			OnMismatch: policy,
			Infer: inference.Options{
				DecimalPrecision: cfg.Migration.DecimalPrecision,
				DecimalScale:     cfg.Migration.DecimalScale,
			},
		},
	}

	outcomes, err := m.Run(ctx, cfg.Source.Collections)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}

	failed := printReport(os.Stdout, outcomes)

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	if failed > 0 {
		return 1
	}
	return 0
}

// printReport writes the per-collection summary and returns how many
// collections failed.
func printReport(w io.Writer, outcomes []migrate.Outcome) int {
	failed := 0
	for _, o := range outcomes {
		if o.Failed() {
			failed++
			fmt.Fprintf(w, "collection=%s table=%s state=%s rows_read=%d inserted=%d skipped=%d err=%v\n",
				o.Collection, o.Table, o.State, o.RowsRead, o.RowsInserted, o.RowsSkipped, o.Err)
			continue
		}
		fmt.Fprintf(w, "collection=%s table=%s state=%s docs_sampled=%d columns=%d rows_read=%d inserted=%d skipped=%d\n",
			o.Collection, o.Table, o.State, o.DocsSampled, o.Columns, o.RowsRead, o.RowsInserted, o.RowsSkipped)
		for _, f := range o.Failures {
			fmt.Fprintf(w, "  row=%d err=%v\n", f.Row, f.Err)
		}
	}
	return failed
}
