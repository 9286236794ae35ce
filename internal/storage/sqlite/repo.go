// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql over modernc.org/sqlite. SQLite has no bulk-load protocol, so
// CopyFrom runs a prepared INSERT inside a single transaction. Dotted logical
// table names are flattened ("staging.orders" becomes "staging_orders")
// because SQLite has no schemas.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Config holds SQLite repository configuration.
type Config struct {
	DSN string // file path or file: URI, passed to database/sql
}

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db *sql.DB
}

// NewRepository opens a SQLite database and returns a Repository plus a Close
// function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db}, closeFn, nil
}

// Exec executes an arbitrary SQL statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

// CopyFrom inserts the given rows into table using a single transaction and a
// prepared INSERT statement.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: CopyFrom %s: columns must not be empty", table)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	stmtSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		flatName(table), strings.Join(columns, ", "), placeholders(len(columns)))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if len(row) != len(columns) {
			_ = tx.Rollback()
			return inserted, fmt.Errorf("sqlite: CopyFrom %s: row length %d != columns length %d", table, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, normalizeRow(row)...); err != nil {
			_ = tx.Rollback()
			return inserted, fmt.Errorf("sqlite: insert into %s: %w", table, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("sqlite: commit: %w", err)
	}
	return inserted, nil
}

// DeleteBySource removes rows carrying the given source tag.
func (r *Repository) DeleteBySource(ctx context.Context, table, source string) error {
	del := fmt.Sprintf("DELETE FROM %s WHERE source = ?", flatName(table))
	if _, err := r.db.ExecContext(ctx, del, source); err != nil {
		return fmt.Errorf("sqlite: delete %s source=%q: %w", table, source, err)
	}
	return nil
}

// Upsert inserts rows with ON CONFLICT handling inside one transaction. Empty
// updateCols means DO NOTHING on conflict.
func (r *Repository) Upsert(ctx context.Context, table string, columns, conflictCols, updateCols []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	stmtSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		flatName(table), strings.Join(columns, ", "), placeholders(len(columns)))
	if len(conflictCols) > 0 {
		if len(updateCols) == 0 {
			stmtSQL += fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", strings.Join(conflictCols, ", "))
		} else {
			sets := make([]string, len(updateCols))
			for i, c := range updateCols {
				sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
			}
			stmtSQL += fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s",
				strings.Join(conflictCols, ", "), strings.Join(sets, ", "))
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: prepare upsert: %w", err)
	}
	defer stmt.Close()

	var affected int64
	for _, row := range rows {
		if len(row) != len(columns) {
			_ = tx.Rollback()
			return affected, fmt.Errorf("sqlite: upsert %s: row length %d != columns length %d", table, len(row), len(columns))
		}
		res, err := stmt.ExecContext(ctx, normalizeRow(row)...)
		if err != nil {
			_ = tx.Rollback()
			return affected, fmt.Errorf("sqlite: upsert %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			affected += n
		}
	}

	if err := tx.Commit(); err != nil {
		return affected, fmt.Errorf("sqlite: commit: %w", err)
	}
	return affected, nil
}

// KeyMap reads a dimension into a natural-key -> surrogate-key map. First row
// wins on duplicates.
func (r *Repository) KeyMap(ctx context.Context, table, idCol string, keyCols ...string) (map[string]int64, error) {
	if len(keyCols) == 0 {
		return nil, fmt.Errorf("sqlite: keymap %s: no key columns", table)
	}
	sel := make([]string, 0, len(keyCols)+1)
	for _, c := range keyCols {
		sel = append(sel, fmt.Sprintf("CAST(%s AS TEXT)", c))
	}
	sel = append(sel, idCol)
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(sel, ", "), flatName(table))

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: keymap %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	parts := make([]sql.NullString, len(keyCols))
	dest := make([]any, len(keyCols)+1)
	var id int64
	for i := range parts {
		dest[i] = &parts[i]
	}
	dest[len(keyCols)] = &id
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("sqlite: keymap %s: %w", table, err)
		}
		key, ok := joinKey(parts)
		if !ok {
			continue
		}
		if _, seen := out[key]; !seen {
			out[key] = id
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: keymap %s: %w", table, err)
	}
	return out, nil
}

// joinKey assembles a composite key, rejecting rows with null key parts.
func joinKey(parts []sql.NullString) (string, bool) {
	vals := make([]string, len(parts))
	for i, p := range parts {
		if !p.Valid {
			return "", false
		}
		vals[i] = p.String
	}
	if len(vals) == 1 {
		return vals[0], true
	}
	return strings.Join(vals, "\x1f"), true
}

// flatName converts a dotted logical name to SQLite's flat namespace.
func flatName(table string) string {
	return strings.ReplaceAll(table, ".", "_")
}

func placeholders(n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = "?"
	}
	return strings.Join(out, ", ")
}

// normalizeRow converts values the driver cannot store canonically: time
// values become "2006-01-02 15:04:05" text so they compare and read back the
// same across runs.
func normalizeRow(row []any) []any {
	out := make([]any, len(row))
	for i, v := range row {
		if t, ok := v.(time.Time); ok {
			out[i] = t.Format("2006-01-02 15:04:05")
			continue
		}
		out[i] = v
	}
	return out
}
