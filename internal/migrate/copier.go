// Package migrate copies rows from the legacy Neon database into the new
// Postgres database. It is a one-shot ETL tool: no schema diffing and no
// resumable checkpoints beyond keyset pagination inside a run.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cabo/internal/metrics"
	"cabo/internal/worker"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

const (
	ConflictNothing = "nothing"
	ConflictError   = "error"
)

// DefaultTables is parent-to-child so foreign keys resolve.
var DefaultTables = []string{
	"users", "villas", "resorts", "adventures", "restaurants",
	"bookings", "leads", "guide_submissions", "images",
}

var ErrNoKeyColumn = errors.New("key column missing on one side")

type Options struct {
	Tables     []string
	KeyColumn  string
	BatchSize  int
	BatchDelay time.Duration
	OnConflict string
	DryRun     bool
	Retry      worker.RetryPolicy
}

// TableReport summarizes one table copy.
type TableReport struct {
	Table    string        `json:"table"`
	Columns  []string      `json:"columns"`
	Read     int           `json:"read"`
	Inserted int           `json:"inserted"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

type CountReport struct {
	Table  string `json:"table"`
	Source int64  `json:"source"`
	Dest   int64  `json:"dest"`
}

func (r CountReport) Match() bool { return r.Source == r.Dest }

type Copier struct {
	src    *sqlx.DB
	dst    *sqlx.DB
	opts   Options
	logger zerolog.Logger
}

func NewCopier(src, dst *sqlx.DB, opts Options, logger *zerolog.Logger) *Copier {
	if len(opts.Tables) == 0 {
		opts.Tables = DefaultTables
	}
	if opts.KeyColumn == "" {
		opts.KeyColumn = "id"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.OnConflict == "" {
		opts.OnConflict = ConflictNothing
	}
	if opts.Retry.MaxRetries == 0 {
		opts.Retry = worker.RetryPolicy{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: 10 * time.Second, BackoffFactor: 2}
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "migrate").Logger()
	}
	return &Copier{src: src, dst: dst, opts: opts, logger: l}
}

// Run copies every configured table in order. A table that fails is
// reported and the run moves on; the returned error joins all failures.
func (c *Copier) Run(ctx context.Context) ([]TableReport, error) {
	reports := make([]TableReport, 0, len(c.opts.Tables))
	var errs []error
	for _, table := range c.opts.Tables {
		rep, err := c.CopyTable(ctx, table)
		if err != nil {
			rep.Error = err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", table, err))
			c.logger.Error().Err(err).Str("table", table).Msg("table copy failed")
		}
		reports = append(reports, rep)
		if ctx.Err() != nil {
			break
		}
	}
	return reports, errors.Join(errs...)
}

func (c *Copier) CopyTable(ctx context.Context, table string) (TableReport, error) {
	rep := TableReport{Table: table}
	start := time.Now()
	defer func() { rep.Duration = time.Since(start) }()

	cols, err := c.commonColumns(ctx, table)
	if err != nil {
		return rep, err
	}
	rep.Columns = cols
	keyIdx := indexOf(cols, c.opts.KeyColumn)
	if keyIdx < 0 {
		return rep, fmt.Errorf("%w: %s.%s", ErrNoKeyColumn, table, c.opts.KeyColumn)
	}

	var lastKey interface{}
	for {
		rows, err := c.readBatch(ctx, table, cols, lastKey)
		if err != nil {
			return rep, err
		}
		if len(rows) == 0 {
			break
		}
		rep.Read += len(rows)
		lastKey = rows[len(rows)-1][keyIdx]

		if !c.opts.DryRun {
			inserted, failed := c.writeBatch(ctx, table, cols, rows)
			rep.Inserted += inserted
			rep.Failed += failed
			rep.Skipped += len(rows) - inserted - failed
		}
		c.logger.Debug().Str("table", table).Int("read", rep.Read).Msg("batch copied")

		if len(rows) < c.opts.BatchSize {
			break
		}
		if c.opts.BatchDelay > 0 {
			if err := sleepCtx(ctx, c.opts.BatchDelay); err != nil {
				return rep, err
			}
		}
	}

	if !c.opts.DryRun && c.dst.DriverName() == "postgres" && rep.Inserted > 0 {
		if err := c.resetSequence(ctx, table); err != nil {
			c.logger.Warn().Err(err).Str("table", table).Msg("sequence reset failed")
		}
	}

	metrics.AddMigrationRows(table, "inserted", rep.Inserted)
	metrics.AddMigrationRows(table, "skipped", rep.Skipped)
	metrics.AddMigrationRows(table, "failed", rep.Failed)
	c.logger.Info().
		Str("table", table).
		Int("read", rep.Read).
		Int("inserted", rep.Inserted).
		Int("skipped", rep.Skipped).
		Int("failed", rep.Failed).
		Bool("dry_run", c.opts.DryRun).
		Msg("table copied")
	return rep, nil
}

// Verify compares row counts on both sides.
func (c *Copier) Verify(ctx context.Context) ([]CountReport, error) {
	out := make([]CountReport, 0, len(c.opts.Tables))
	for _, table := range c.opts.Tables {
		r := CountReport{Table: table}
		q := "SELECT COUNT(*) FROM " + quote(table)
		if err := c.src.GetContext(ctx, &r.Source, q); err != nil {
			return out, fmt.Errorf("count source %s: %w", table, err)
		}
		if err := c.dst.GetContext(ctx, &r.Dest, q); err != nil {
			return out, fmt.Errorf("count dest %s: %w", table, err)
		}
		if !r.Match() {
			c.logger.Warn().Str("table", table).Int64("source", r.Source).Int64("dest", r.Dest).Msg("row count mismatch")
		}
		out = append(out, r)
	}
	return out, nil
}

func (c *Copier) readBatch(ctx context.Context, table string, cols []string, after interface{}) ([][]interface{}, error) {
	key := quote(c.opts.KeyColumn)
	q := "SELECT " + joinQuoted(cols) + " FROM " + quote(table)
	args := []interface{}{}
	if after != nil {
		q += " WHERE " + key + " > ?"
		args = append(args, after)
	}
	q += " ORDER BY " + key + " LIMIT ?"
	args = append(args, c.opts.BatchSize)

	rows, err := c.src.QueryxContext(ctx, c.src.Rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types %s: %w", table, err)
	}
	binary := make([]bool, len(types))
	for i, ct := range types {
		binary[i] = isBinaryType(ct.DatabaseTypeName())
	}

	var out [][]interface{}
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		for i, v := range vals {
			// lib/pq hands back text, numeric, json and uuid as []byte; re-sending
			// them would bind as bytea. Real binary columns keep their bytes.
			if b, ok := v.([]byte); ok && !binary[i] {
				vals[i] = string(b)
			}
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

func isBinaryType(name string) bool {
	switch strings.ToUpper(name) {
	case "BYTEA", "BLOB":
		return true
	}
	return false
}

// writeBatch inserts rows in one statement, retrying with backoff. When
// the batch keeps failing it falls back to row-by-row inserts.
func (c *Copier) writeBatch(ctx context.Context, table string, cols []string, rows [][]interface{}) (inserted, failed int) {
	var lastErr error
	for attempt := 1; attempt <= c.opts.Retry.MaxRetries; attempt++ {
		n, err := c.insert(ctx, table, cols, rows)
		if err == nil {
			return n, 0
		}
		lastErr = err
		if ctx.Err() != nil {
			return 0, len(rows)
		}
		if !c.opts.Retry.Exhausted(attempt) && c.opts.Retry.Wait(ctx, attempt) != nil {
			return 0, len(rows)
		}
	}

	c.logger.Warn().Err(lastErr).Str("table", table).Int("rows", len(rows)).Msg("batch insert failed; retrying row by row")
	for _, row := range rows {
		n, err := c.insert(ctx, table, cols, [][]interface{}{row})
		if err != nil {
			failed++
			c.logger.Error().Err(err).Str("table", table).Interface("key", row[indexOf(cols, c.opts.KeyColumn)]).Msg("row insert failed")
			continue
		}
		inserted += n
	}
	return inserted, failed
}

func (c *Copier) insert(ctx context.Context, table string, cols []string, rows [][]interface{}) (int, error) {
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",") + ")"
	values := make([]string, len(rows))
	args := make([]interface{}, 0, len(rows)*len(cols))
	for i, row := range rows {
		values[i] = placeholder
		args = append(args, row...)
	}

	q := "INSERT INTO " + quote(table) + " (" + joinQuoted(cols) + ") VALUES " + strings.Join(values, ",")
	if c.opts.OnConflict == ConflictNothing {
		q += " ON CONFLICT (" + quote(c.opts.KeyColumn) + ") DO NOTHING"
	}

	res, err := c.dst.ExecContext(ctx, c.dst.Rebind(q), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return len(rows), nil
	}
	return int(n), nil
}

func (c *Copier) resetSequence(ctx context.Context, table string) error {
	key := quote(c.opts.KeyColumn)
	q := fmt.Sprintf(
		"SELECT setval(pg_get_serial_sequence($1, $2), COALESCE(MAX(%s), 1), MAX(%s) IS NOT NULL) FROM %s",
		key, key, quote(table),
	)
	_, err := c.dst.ExecContext(ctx, q, table, c.opts.KeyColumn)
	return err
}

// commonColumns returns the source columns that also exist in the
// destination, in source order.
func (c *Copier) commonColumns(ctx context.Context, table string) ([]string, error) {
	srcCols, err := columns(ctx, c.src, table)
	if err != nil {
		return nil, fmt.Errorf("source columns: %w", err)
	}
	dstCols, err := columns(ctx, c.dst, table)
	if err != nil {
		return nil, fmt.Errorf("dest columns: %w", err)
	}
	if len(srcCols) == 0 || len(dstCols) == 0 {
		return nil, fmt.Errorf("table %s not found on both sides", table)
	}

	dst := make(map[string]bool, len(dstCols))
	for _, col := range dstCols {
		dst[col] = true
	}
	var out []string
	var dropped []string
	for _, col := range srcCols {
		if dst[col] {
			out = append(out, col)
		} else {
			dropped = append(dropped, col)
		}
	}
	if len(dropped) > 0 {
		c.logger.Info().Str("table", table).Strs("columns", dropped).Msg("source columns without destination are skipped")
	}
	return out, nil
}

func columns(ctx context.Context, db *sqlx.DB, table string) ([]string, error) {
	var cols []string
	var err error
	switch db.DriverName() {
	case "postgres", "pgx":
		err = db.SelectContext(ctx, &cols,
			`SELECT column_name FROM information_schema.columns
			 WHERE table_schema = current_schema() AND table_name = $1
			 ORDER BY ordinal_position`, table)
	case "sqlite3":
		err = db.SelectContext(ctx, &cols, `SELECT name FROM pragma_table_info(?) ORDER BY cid`, table)
	default:
		err = fmt.Errorf("unsupported driver %q", db.DriverName())
	}
	return cols, err
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func joinQuoted(cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = quote(c)
	}
	return strings.Join(q, ", ")
}

func indexOf(items []string, s string) int {
	for i, v := range items {
		if v == s {
			return i
		}
	}
	return -1
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
