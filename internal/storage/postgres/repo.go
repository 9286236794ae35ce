// Package postgres implements a Postgres repository using pgx v5. Bulk loads
// go through the COPY protocol; upserts use INSERT ... ON CONFLICT batched
// over a single round trip.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN string // connection string for pgxpool
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	closeFn := func() { pool.Close() }
	return &Repository{pool: pool}, closeFn, nil
}

// Exec runs a single statement, typically DDL.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	_, err := r.pool.Exec(ctx, sql)
	return err
}

// CopyFrom bulk-inserts rows via the COPY protocol.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	n, err := r.pool.CopyFrom(ctx, splitFQN(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return n, fmt.Errorf("copy into %s: %s (%s)", table, pgErr.Detail, pgErr.SQLState())
		}
		return n, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

// DeleteBySource removes rows carrying the given source tag.
func (r *Repository) DeleteBySource(ctx context.Context, table, source string) error {
	del := fmt.Sprintf("DELETE FROM %s WHERE source = $1", pgFQN(table))
	if _, err := r.pool.Exec(ctx, del, source); err != nil {
		return fmt.Errorf("delete %s source=%q: %w", table, source, err)
	}
	return nil
}

// Upsert inserts rows with ON CONFLICT handling, all batched into one round
// trip. Empty updateCols means DO NOTHING on conflict.
func (r *Repository) Upsert(ctx context.Context, table string, columns, conflictCols, updateCols []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgFQN(table), strings.Join(mapIdent(columns), ", "), strings.Join(placeholders, ", "))
	if len(conflictCols) > 0 {
		if len(updateCols) == 0 {
			stmt += fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", strings.Join(mapIdent(conflictCols), ", "))
		} else {
			stmt += fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s",
				strings.Join(mapIdent(conflictCols), ", "), strings.Join(updateColumns(updateCols), ", "))
		}
	}

	var batch pgx.Batch
	for _, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("upsert %s: row length %d != columns length %d", table, len(row), len(columns))
		}
		batch.Queue(stmt, row...)
	}

	br := r.pool.SendBatch(ctx, &batch)
	defer br.Close()

	var affected int64
	for range rows {
		tag, err := br.Exec()
		if err != nil {
			return affected, fmt.Errorf("upsert %s: %w", table, err)
		}
		affected += tag.RowsAffected()
	}
	return affected, nil
}

// KeyMap reads a dimension into a natural-key -> surrogate-key map. Key
// columns are cast to text server-side; composite keys are joined with the
// unit separator. First row wins on duplicates.
func (r *Repository) KeyMap(ctx context.Context, table, idCol string, keyCols ...string) (map[string]int64, error) {
	if len(keyCols) == 0 {
		return nil, fmt.Errorf("keymap %s: no key columns", table)
	}
	sel := make([]string, 0, len(keyCols)+1)
	for _, c := range keyCols {
		sel = append(sel, pgIdent(c)+"::text")
	}
	sel = append(sel, pgIdent(idCol))
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(sel, ", "), pgFQN(table))

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("keymap %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	parts := make([]*string, len(keyCols))
	dest := make([]any, len(keyCols)+1)
	var id int64
	for i := range parts {
		dest[i] = &parts[i]
	}
	dest[len(keyCols)] = &id
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("keymap %s: %w", table, err)
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
		return nil, fmt.Errorf("keymap %s: %w", table, err)
	}
	return out, nil
}

// joinKey assembles a composite key, rejecting rows with null key parts.
func joinKey(parts []*string) (string, bool) {
	vals := make([]string, len(parts))
	for i, p := range parts {
		if p == nil {
			return "", false
		}
		vals[i] = *p
	}
	if len(vals) == 1 {
		return vals[0], true
	}
	return strings.Join(vals, "\x1f"), true
}

// updateColumns generates a list of column updates in the format: "col = EXCLUDED.col"
func updateColumns(cols []string) []string {
	var updates []string
	for _, col := range cols {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", pgIdent(col), pgIdent(col)))
	}
	return updates
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "staging.orders" to
// "staging"."orders". If no dot is present, returns a single quoted ident.
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}
