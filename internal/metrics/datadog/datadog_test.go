package datadog

import (
	"reflect"
	"sort"
	"testing"

	"olistetl/internal/metrics"
)

func TestNewBackend(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Error("empty Addr: want error")
	}

	// DogStatsD is UDP; no agent needs to be listening.
	b, err := NewBackend(Config{
		Addr:       "127.0.0.1:18125",
		Namespace:  "olist.",
		GlobalTags: []string{"job:test"},
	})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	if b.client == nil {
		t.Fatal("client not set")
	}

	b.IncCounter("etl_step_total", 1, metrics.Labels{"step": "extract", "status": "success"})
	b.ObserveHistogram("etl_step_duration_seconds", 0.25, metrics.Labels{"step": "extract"})
	if err := b.Flush(); err != nil {
		t.Errorf("Flush: %v", err)
	}
}

func TestZeroValueBackendIsSafe(t *testing.T) {
	t.Parallel()

	var b Backend
	b.IncCounter("etl_step_total", 1, nil)
	b.ObserveHistogram("etl_step_duration_seconds", 0.5, nil)
	if err := b.Flush(); err != nil {
		t.Errorf("Flush on zero value: %v", err)
	}
}

func TestLabelsToTags(t *testing.T) {
	t.Parallel()

	if got := labelsToTags(nil); got != nil {
		t.Errorf("labelsToTags(nil) = %v, want nil", got)
	}

	got := labelsToTags(metrics.Labels{"step": "extract", "status": "success"})
	sort.Strings(got)
	want := []string{"status:success", "step:extract"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("labelsToTags = %v, want %v", got, want)
	}
}
