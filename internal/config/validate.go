// This file adds a lightweight linter for Pipeline values. It performs static
// checks over a decoded Pipeline and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"

	"olistetl/internal/schema"
	"olistetl/internal/storage"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "source.files.orders"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidatePipeline lints a decoded Pipeline and returns every finding, errors
// and warnings alike. Callers decide whether warnings block a run; an empty
// slice means the configuration is clean.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if p.Job == "" {
		issues = append(issues, Issue{SeverityError, "job", "job name is required"})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateStorage(p.Storage, p.Load.Enabled)...)
	issues = append(issues, validateLoad(p.Load)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue
	if s.Dir == "" {
		issues = append(issues, Issue{SeverityError, "source.dir", "input directory is required"})
	}
	known := make(map[string]bool, len(schema.Names))
	for _, name := range schema.Names {
		known[name] = true
	}
	for name := range s.Files {
		if !known[name] {
			issues = append(issues, Issue{
				SeverityWarning,
				"source.files." + name,
				"unknown dataset name; the override will be ignored",
			})
		}
	}
	return issues
}

func validateStorage(s Storage, loadEnabled bool) []Issue {
	var issues []Issue
	if !loadEnabled {
		// A transform-only run never touches the warehouse.
		return issues
	}
	if s.Kind == "" {
		issues = append(issues, Issue{SeverityError, "storage.kind", "storage kind is required when load is enabled"})
		return issues
	}
	registered := false
	for _, kind := range storage.ListKinds() {
		if kind == s.Kind {
			registered = true
			break
		}
	}
	if !registered {
		issues = append(issues, Issue{
			SeverityWarning,
			"storage.kind",
			fmt.Sprintf("%q is not a registered backend; available: %v", s.Kind, storage.ListKinds()),
		})
	}
	if s.DB.DSN == "" {
		issues = append(issues, Issue{SeverityError, "storage.db.dsn", "connection string is required"})
	}
	return issues
}

func validateLoad(l Load) []Issue {
	var issues []Issue
	if l.BatchSize < 0 {
		issues = append(issues, Issue{SeverityError, "load.batch_size", "batch size cannot be negative"})
	} else if l.BatchSize == 0 {
		issues = append(issues, Issue{SeverityWarning, "load.batch_size", "batch size 0 falls back to the default"})
	}
	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue
	if r.ExtractWorkers < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.extract_workers", "worker count cannot be negative"})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "prompush":
		if m.PushgatewayURL == "" {
			issues = append(issues, Issue{SeverityError, "metrics.pushgateway_url", "required for the prompush backend"})
		}
	case "datadog":
		if m.StatsdAddr == "" {
			issues = append(issues, Issue{SeverityError, "metrics.statsd_addr", "required for the datadog backend"})
		}
	default:
		issues = append(issues, Issue{
			SeverityWarning,
			"metrics.backend",
			fmt.Sprintf("unknown backend %q; metrics will be disabled", m.Backend),
		})
	}
	return issues
}
