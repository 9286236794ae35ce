package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"olistetl/internal/config"
	"olistetl/internal/metrics"
	"olistetl/internal/metrics/datadog"
	"olistetl/internal/metrics/prompush"
	"olistetl/internal/pipeline"
	"olistetl/internal/storage"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "olistetl/internal/storage/all"
)

// main is the entry point for the ETL binary. It loads the job config,
// optionally initializes a metrics backend, and executes the run.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		validate          bool
		skipLoad          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/olist.json", "job config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (prompush, none; overrides config)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&skipLoad, "skip-load", false, "run extract and transform only")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	// Local development convenience; a missing .env is fine.
	if err := godotenv.Load(); err == nil && *verbose {
		log.Printf("loaded environment from .env")
	}

	p, err := config.FromFile(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	if skipLoad {
		p.Load.Enabled = false
	}
	if p.Storage.DB.DSN == "" {
		p.Storage.DB.DSN = os.Getenv("OLIST_DB_DSN")
	}

	issues := config.ValidatePipeline(p)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}

	// If validate flag is set, only validate the configuration and exit
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	// Decide metrics backend: flag → config → env → none.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = p.Metrics.Backend
	}
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "prompush", "pushgateway":
		// Decide Pushgateway URL: flag → config → env → default.
		gwURL := pushGatewayURLFlg
		if gwURL == "" {
			gwURL = p.Metrics.PushgatewayURL
		}
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}

		jobName := p.Job
		if jobName == "" {
			jobName = "olist_etl"
		}

		b, err := prompush.NewBackend(jobName, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
		} else {
			log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, backendName, jobName)
			metrics.SetBackend(b)
			defer func() {
				if err := metrics.Flush(); err != nil {
					log.Printf("metrics: flush error: %v", err)
				}
			}()
		}

	case "datadog":
		addr := p.Metrics.StatsdAddr
		if addr == "" {
			addr = os.Getenv("DD_DOGSTATSD_ADDR")
		}
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       addr,
			Namespace:  "olist.",
			GlobalTags: []string{"job:" + p.Job},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: addr=%v, backend=%v", addr, backendName)
			metrics.SetBackend(b)
			defer func() {
				if err := metrics.Flush(); err != nil {
					log.Printf("metrics: flush error: %v", err)
				}
			}()
		}

	case "", "none":
		// metrics disabled; nop backend remains
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()
	start := time.Now()

	var repo storage.Repository
	if p.Load.Enabled {
		repo, err = storage.New(ctx, storage.Config{Kind: p.Storage.Kind, DSN: p.Storage.DB.DSN})
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		defer repo.Close()

		if p.Storage.AutoCreateSchema {
			if err := storage.EnsureSchema(ctx, p.Storage.Kind, repo); err != nil {
				log.Fatalf("storage: ensure schema: %v", err)
			}
		}
	}

	if *verbose {
		log.Printf("pipeline: job=%s dir=%s storage=%s load=%v",
			p.Job, p.Source.Dir, p.Storage.Kind, p.Load.Enabled)
	}

	if err := pipeline.Run(ctx, p, repo); err != nil {
		log.Fatalf("%v", err)
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
