// Package pipeline runs one full job: extract the CSV exports, transform them
// in memory, then load staging and the star schema. Each stage is timed and
// reported through the metrics backend.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"olistetl/internal/config"
	"olistetl/internal/extract"
	"olistetl/internal/load"
	"olistetl/internal/metrics"
	"olistetl/internal/storage"
	"olistetl/internal/transform"
)

// Run executes the configured job against repo. A nil repo is allowed when
// the load stage is disabled; the run is then transform-only.
func Run(ctx context.Context, cfg config.Pipeline, repo storage.Repository) error {
	ex := extract.Extractor{
		Dir:     cfg.Source.Dir,
		Files:   cfg.Source.Files,
		Workers: cfg.Runtime.ExtractWorkers,
	}

	start := time.Now()
	datasets, err := ex.All(ctx)
	metrics.RecordStep(cfg.Job, "extract", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("pipeline: extract: %w", err)
	}
	var extracted int64
	for _, t := range datasets {
		extracted += int64(t.NumRows())
	}
	metrics.RecordRow(cfg.Job, "rows_extracted", extracted)
	log.Printf("pipeline: %s: extracted %d datasets, %d rows", cfg.Job, len(datasets), extracted)

	start = time.Now()
	tables, stats, err := transform.All(datasets)
	metrics.RecordStep(cfg.Job, "transform", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("pipeline: transform: %w", err)
	}
	metrics.RecordRow(cfg.Job, "nulls_replaced", stats.NullsReplaced)
	metrics.RecordRow(cfg.Job, "dates_coerced", stats.DatesCoerced)
	metrics.RecordRow(cfg.Job, "date_parse_errors", stats.DateParseErrors)
	metrics.RecordRow(cfg.Job, "delivery_outliers_suppressed", stats.OutliersSuppressed)

	if !cfg.Load.Enabled || repo == nil {
		log.Printf("pipeline: %s: load disabled, stopping after transform", cfg.Job)
		return nil
	}

	loader := &load.Loader{
		Repo:      repo,
		Job:       cfg.Job,
		Source:    cfg.Storage.SourceTag,
		BatchSize: cfg.Load.BatchSize,
	}

	start = time.Now()
	err = loader.Staging(ctx, tables)
	metrics.RecordStep(cfg.Job, "load_staging", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	start = time.Now()
	err = loader.Analytics(ctx, tables)
	metrics.RecordStep(cfg.Job, "load_analytics", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	log.Printf("pipeline: %s: done", cfg.Job)
	return nil
}
