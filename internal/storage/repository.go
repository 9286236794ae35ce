// Package storage contains storage-agnostic contracts and the backend
// factory. Concrete backends (postgres, sqlite) register constructors at init
// time; callers open repositories through New and stay backend-agnostic.
//
// Logical table names are dotted ("staging.orders", "analytics.fact_orders").
// Backends without schema support flatten the dot to an underscore.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config selects and configures a backend.
type Config struct {
	// Kind names a registered backend ("postgres", "sqlite").
	Kind string
	// DSN is passed to the backend's driver unchanged.
	DSN string
}

// Repository is the warehouse surface the loader drives. Implementations must
// be safe for use from a single goroutine; the pipeline does not load
// concurrently.
type Repository interface {
	// Exec runs one statement, typically DDL.
	Exec(ctx context.Context, sql string) error

	// CopyFrom bulk-inserts rows (aligned to columns) into table using the
	// backend's fastest primitive and reports rows written.
	CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// DeleteBySource removes rows previously loaded under the given source
	// tag, making staging loads replayable per source.
	DeleteBySource(ctx context.Context, table, source string) error

	// Upsert inserts rows with conflict handling on conflictCols. With empty
	// updateCols conflicts are ignored; otherwise the named columns are
	// overwritten from the incoming row.
	Upsert(ctx context.Context, table string, columns, conflictCols, updateCols []string, rows [][]any) (int64, error)

	// KeyMap reads table into a map from the text form of keyCols (joined
	// with unit separators when composite) to the value of idCol. On
	// duplicate keys the first row wins.
	KeyMap(ctx context.Context, table, idCol string, keyCols ...string) (map[string]int64, error)

	// Close releases the underlying pool or handle.
	Close()
}

// Factory builds a Repository for a Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under the given kind. Re-registering a
// kind replaces the previous factory; backends call this from init.
func Register(kind string, fn Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = fn
}

// New opens a Repository for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	fn, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unknown kind %q (registered: %v)", cfg.Kind, ListKinds())
	}
	return fn(ctx, cfg)
}

// ListKinds returns the registered backend kinds, sorted, as a snapshot copy.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CompositeKey joins key column text values the way KeyMap implementations
// must: with the ASCII unit separator, so city names with commas cannot
// collide.
func CompositeKey(parts ...string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += "\x1f" + p
	}
	return out
}
