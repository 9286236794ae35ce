// Batched bulk-copy helper shared by all backends. Backends implement the
// fast per-batch primitive (Postgres COPY, SQLite transactional INSERT); this
// wrapper slices the row set, forwards each batch, and logs running totals
// with instantaneous rows/sec per flush.
package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultBatchSize is used when the caller does not set one.
const DefaultBatchSize = 1000

// CopyBatches writes rows into table through repo.CopyFrom in batches of
// batchSize, returning the total rows reported. The first failed batch aborts
// the load; rows already copied stay copied, which is why staging loads are
// preceded by DeleteBySource.
func CopyBatches(
	ctx context.Context,
	repo Repository,
	table string,
	columns []string,
	rows [][]any,
	batchSize int,
) (int64, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("storage: no columns for %s", table)
	}

	var (
		total   int64
		batches int64
		start   = time.Now()
		last    = start
	)

	for off := 0; off < len(rows); off += batchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		end := off + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		n, err := repo.CopyFrom(ctx, table, columns, rows[off:end])
		total += n
		if err != nil {
			log.Printf("loader: %s: batch failed after=%d total=%d err=%v", table, n, total, err)
			return total, err
		}
		batches++
		now := time.Now()
		sinceLast := now.Sub(last)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(n) / sinceLast.Seconds()
		}
		log.Printf("loader: %s batch #%d: rps=%.0f inserted=%d total=%s elapsed=%s",
			table, batches, rps, n, humanize.Comma(total), now.Sub(start).Truncate(time.Millisecond))
		last = now
	}
	return total, nil
}
