// Package extract reads the marketplace CSV exports into dataset tables.
//
// Extraction is deliberately forgiving: a missing file or a file whose header
// lacks expected columns skips that dataset with a warning, ragged rows and
// stray quotes are tolerated, and cell values are typed best-effort against
// the schema registry; a cell that does not parse becomes a null, never a
// failure.
package extract

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"olistetl/internal/dataset"
	"olistetl/internal/schema"
)

// DefaultWorkers bounds concurrent file reads when the caller does not.
const DefaultWorkers = 4

// Extractor reads the nine datasets from a directory of CSV files.
type Extractor struct {
	// Dir is the directory holding the CSV exports.
	Dir string
	// Files overrides the default file name per dataset.
	Files map[string]string
	// Workers bounds concurrent reads; <= 0 means DefaultWorkers.
	Workers int
}

// fileFor resolves the CSV file path for a dataset.
func (e *Extractor) fileFor(name string) string {
	if f, ok := e.Files[name]; ok && f != "" {
		return filepath.Join(e.Dir, f)
	}
	return filepath.Join(e.Dir, schema.Files[name])
}

// All reads every known dataset concurrently and returns the tables found.
// Datasets whose file is absent or whose header fails validation are omitted
// from the result; downstream stages degrade around them. I/O failures abort
// the whole extraction.
func (e *Extractor) All(ctx context.Context) (map[string]*dataset.Table, error) {
	workers := e.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	var mu sync.Mutex
	out := make(map[string]*dataset.Table, len(schema.Names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, name := range schema.Names {
		name := name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := e.One(name)
			if err != nil {
				return err
			}
			if t == nil {
				return nil
			}
			mu.Lock()
			out[name] = t
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// One reads a single dataset. A nil table with nil error means the dataset
// was skipped (file absent or header invalid).
func (e *Extractor) One(name string) (*dataset.Table, error) {
	spec, ok := schema.Specs[name]
	if !ok {
		return nil, fmt.Errorf("extract: unknown dataset %q", name)
	}

	path := e.fileFor(name)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("extract: %s: %s not found, skipping", name, path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", name, err)
	}
	defer f.Close()

	t, size, err := readCSV(f, spec)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", name, err)
	}
	if t == nil {
		log.Printf("extract: %s: header validation failed, skipping", name)
		return nil, nil
	}
	log.Printf("extract: %s: %s rows, %s from %s",
		name, humanize.Comma(int64(t.NumRows())), humanize.Bytes(uint64(size)), filepath.Base(path))
	return t, nil
}

// readCSV parses one export. It returns (nil, n, nil) when the header is
// missing expected columns, which callers treat as a skip.
func readCSV(f *os.File, spec schema.Spec) (*dataset.Table, int64, error) {
	var size int64
	if fi, err := f.Stat(); err == nil {
		size = fi.Size()
	}

	r := csv.NewReader(f)
	r.ReuseRecord = true
	// Exports carry the odd stray quote and short row; tolerate both. Rows
	// are read up to the expected width, extra fields are ignored.
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	rawHeader, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, size, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, size, err
	}
	// ReuseRecord recycles the record slice; the header must be copied out.
	header := make([]string, len(rawHeader))
	for i, h := range rawHeader {
		header[i] = cleanHeader(h)
	}
	if missing := missingColumns(header, spec); len(missing) > 0 {
		log.Printf("extract: header missing columns %v", missing)
		return nil, size, nil
	}

	types := make([]dataset.Type, len(header))
	for i, h := range header {
		types[i] = spec.TypeOf(h)
	}

	vals := make([][]any, len(header))
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, size, err
		}
		for i := range header {
			var cell string
			if i < len(rec) {
				cell = rec[i]
			}
			vals[i] = append(vals[i], parseCell(cell, types[i]))
		}
	}

	cols := make([]dataset.Column, len(header))
	for i, h := range header {
		cols[i] = dataset.Column{Name: h, Type: types[i], Vals: vals[i]}
	}
	t, err := dataset.New(cols...)
	if err != nil {
		return nil, size, err
	}
	return t, size, nil
}

// cleanHeader normalizes a raw CSV header cell: strip the UTF-8 BOM, NFC
// normalization so composed/decomposed accents compare equal, non-breaking
// spaces folded to plain spaces, surrounding whitespace trimmed.
func cleanHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = norm.NFC.String(h)
	h = strings.ReplaceAll(h, "\u00a0", " ")
	return strings.TrimSpace(h)
}

// missingColumns returns expected column names absent from the header.
func missingColumns(header []string, spec schema.Spec) []string {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[strings.ToLower(h)] = true
	}
	var missing []string
	for _, want := range spec.ColumnNames() {
		if !have[want] {
			missing = append(missing, want)
		}
	}
	return missing
}

// parseCell converts one CSV cell to its typed value. An empty cell is null
// for every type; a non-empty cell that fails to parse is null too.
func parseCell(cell string, typ dataset.Type) any {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	switch typ {
	case dataset.Int:
		if n, err := strconv.ParseInt(cell, 10, 64); err == nil {
			return n
		}
		// Exports sometimes carry integral values as "3.0".
		if f, err := strconv.ParseFloat(cell, 64); err == nil && f == float64(int64(f)) {
			return int64(f)
		}
		return nil
	case dataset.Float:
		if f, err := strconv.ParseFloat(cell, 64); err == nil {
			return f
		}
		return nil
	case dataset.Bool:
		if b, err := strconv.ParseBool(strings.ToLower(cell)); err == nil {
			return b
		}
		return nil
	default:
		return cell
	}
}
