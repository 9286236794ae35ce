// Package config defines the canonical, JSON-serializable configuration model
// for the pipeline. It is intentionally small, explicit, and dependency-free
// so that job files can be loaded from disk and passed through the program
// without additional glue code.
//
// Design goals:
//
//  1. Stability: Changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: Field names in Go mirror the JSON structure used in job files
//     under configs/*.json.
//  3. Minimalism: No third-party config libraries; decoding is performed by
//     the standard library over a defaults-populated value.
//
// Example (trimmed):
//
//	{
//	  "job":     "olist-daily",
//	  "source":  { "dir": "./data", "files": { "orders": "orders_fix.csv" } },
//	  "storage": { "kind": "postgres", "db": { "dsn": "postgresql://..." }, "source_tag": "csv" },
//	  "load":    { "enabled": true, "batch_size": 1000 }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Pipeline describes one full run in JSON. It is the top-level object decoded
// from a job file.
type Pipeline struct {
	// Job names the run; it labels metrics and the Pushgateway group.
	Job string `json:"job"`

	// Source describes where the CSV exports live.
	Source Source `json:"source"`

	// Storage describes the warehouse the loader writes to.
	Storage Storage `json:"storage"`

	// Load controls whether and how the load stage runs.
	Load Load `json:"load"`

	// Runtime controls concurrency.
	Runtime RuntimeConfig `json:"runtime"`

	// Metrics selects the metrics backend.
	Metrics Metrics `json:"metrics"`
}

// Source identifies the input directory and optional per-dataset file
// overrides.
type Source struct {
	// Dir is the directory holding the CSV exports.
	Dir string `json:"dir"`

	// Files overrides the default file name per dataset, keyed by canonical
	// dataset name ("orders", "customers", ...).
	Files map[string]string `json:"files"`
}

// Storage selects and configures the warehouse backend.
type Storage struct {
	// Kind selects the backend registered with the storage factory
	// ("postgres", "sqlite").
	Kind string `json:"kind"`

	// DB carries backend connection options.
	DB DBConfig `json:"db"`

	// AutoCreateSchema applies the idempotent warehouse DDL before loading.
	AutoCreateSchema bool `json:"auto_create_schema"`

	// SourceTag stamps staging rows; reloading the same tag replaces its
	// rows. Defaults to "csv".
	SourceTag string `json:"source_tag"`
}

// DBConfig configures the database connection.
type DBConfig struct {
	// DSN is the connection string, passed to the backend driver unchanged
	// (pgxpool URL for postgres, file path for sqlite).
	DSN string `json:"dsn"`
}

// Load controls the load stage.
type Load struct {
	// Enabled runs the load stage; disabling it makes a run transform-only.
	Enabled bool `json:"enabled"`

	// BatchSize bounds bulk-copy batches.
	BatchSize int `json:"batch_size"`
}

// RuntimeConfig controls concurrency.
type RuntimeConfig struct {
	// ExtractWorkers bounds concurrent CSV reads.
	ExtractWorkers int `json:"extract_workers"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is "none", "prompush", or "datadog".
	Backend string `json:"backend"`

	// PushgatewayURL is required when Backend is "prompush".
	PushgatewayURL string `json:"pushgateway_url"`

	// StatsdAddr is required when Backend is "datadog".
	StatsdAddr string `json:"statsd_addr"`
}

// Default returns a Pipeline populated with the values a job file may omit.
func Default() Pipeline {
	return Pipeline{
		Source:  Source{Dir: "./data"},
		Storage: Storage{SourceTag: "csv"},
		Load:    Load{Enabled: true, BatchSize: 1000},
		Runtime: RuntimeConfig{ExtractWorkers: 4},
		Metrics: Metrics{Backend: "none"},
	}
}

// FromFile decodes a job file over the defaults, so absent fields keep their
// default values.
func FromFile(path string) (Pipeline, error) {
	p := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("config: %w", err)
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return p, nil
}
