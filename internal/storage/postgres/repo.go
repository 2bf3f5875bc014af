// Package postgres is the PostgreSQL index store on a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bidsevents/internal/errors"
	"bidsevents/internal/storage"
	"bidsevents/internal/summary"
)

// maxParams is the wire protocol's bind parameter limit.
const maxParams = 65535

var dialect = storage.Dialect{
	Quote:       pgIdent,
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
}

// Repo implements storage.Repository for Postgres.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a pool for cfg.DSN and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// EnsureSchema creates every index table and lookup index if missing.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, t := range storage.Tables() {
		for _, stmt := range buildCreateSQL(t) {
			if _, err := r.pool.Exec(ctx, stmt); err != nil {
				return errors.Wrapf(err, "postgres: create %s", t.Name)
			}
		}
	}
	return nil
}

func (r *Repo) SaveIndex(ctx context.Context, dataset string, files []storage.FileRow) (int64, error) {
	var n int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, t := range []string{storage.EntitiesTable, storage.FilesTable} {
			if _, err := tx.Exec(ctx, dialect.DeleteDatasetSQL(t), dataset); err != nil {
				return errors.Wrapf(err, "postgres: clear %s", t)
			}
		}
		var err error
		if n, err = insertRows(ctx, tx, storage.FilesSpec, storage.FileValues(dataset, files)); err != nil {
			return err
		}
		_, err = insertRows(ctx, tx, storage.EntitiesSpec, storage.EntityValues(dataset, files))
		return err
	})
	return n, err
}

func (r *Repo) SaveSummary(ctx context.Context, dataset string, values []storage.ColumnValueRow) (int64, error) {
	var n int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, dialect.DeleteDatasetSQL(storage.ColumnValuesTable), dataset); err != nil {
			return errors.Wrapf(err, "postgres: clear %s", storage.ColumnValuesTable)
		}
		var err error
		n, err = insertRows(ctx, tx, storage.ColumnValuesSpec, storage.ColumnValueValues(dataset, values))
		return err
	})
	return n, err
}

func (r *Repo) FindByEntity(ctx context.Context, dataset, entity, value string) ([]storage.FileRow, error) {
	rows, err := r.pool.Query(ctx, dialect.FindFilesSQL(), dataset, entity, value)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: find files")
	}
	files, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.FileRow, error) {
		var f storage.FileRow
		err := row.Scan(&f.Key, &f.Path, &f.Suffix)
		return f, err
	})
	if err != nil || len(files) == 0 {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, dialect.FindEntitiesSQL(), dataset, entity, value)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: find entities")
	}
	ents, err := pgx.CollectRows(rows, pgx.RowToStructByPos[storage.EntityValue])
	if err != nil {
		return nil, err
	}
	storage.AttachEntities(files, ents)
	return files, nil
}

func (r *Repo) ColumnValues(ctx context.Context, dataset, column string) ([]storage.ColumnValueRow, error) {
	filter, args := storage.ColumnValueArgs(dataset, column)
	rows, err := r.pool.Query(ctx, dialect.ColumnValuesSQL(filter), args...)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: column values")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.ColumnValueRow, error) {
		var (
			v    storage.ColumnValueRow
			kind string
		)
		err := row.Scan(&v.Column, &kind, &v.Value, &v.TotalCount, &v.FileCount)
		v.Kind = summary.Kind(kind)
		return v, err
	})
}

func insertRows(ctx context.Context, tx pgx.Tx, t storage.TableSpec, rows [][]any) (int64, error) {
	var total int64
	cols := t.ColumnNames()
	for _, part := range storage.Batches(rows, len(cols), maxParams) {
		q, args := buildInsertSQL(t.Name, cols, part, t.Unique)
		tag, err := tx.Exec(ctx, q, args...)
		if err != nil {
			return total, errors.Wrapf(err, "postgres: insert %s", t.Name)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

// buildInsertSQL constructs a multi-row INSERT statement and its args.
//
// It is pure and deterministic, so placeholder numbering and the
// ON CONFLICT clause are unit tested without a database.
//
// Constraints:
//   - rows must have the same length as columns for every row.
//   - columns must be non-empty.
func buildInsertSQL(table string, columns []string, rows [][]any, dedupeColumns []string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(fmt.Sprintf("$%d", p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	// Duplicate natural keys within one batch are dropped, not failed.
	if len(dedupeColumns) > 0 {
		b.WriteString(" ON CONFLICT (")
		for i, c := range dedupeColumns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(pgIdent(c))
		}
		b.WriteString(") DO NOTHING")
	}

	b.WriteString(";")
	return b.String(), args
}

// buildCreateSQL returns the CREATE TABLE and optional CREATE INDEX
// statements for t.
func buildCreateSQL(t storage.TableSpec) []string {
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		defs = append(defs, fmt.Sprintf("%s %s NOT NULL", pgIdent(c.Name), pgType(c.Type)))
	}
	if len(t.Unique) > 0 {
		defs = append(defs, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)", pgIdent("uq_"+t.Name), joinIdents(t.Unique)))
	}
	out := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", pgIdent(t.Name), strings.Join(defs, ", "))}
	if len(t.Lookup) > 0 {
		out = append(out, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			pgIdent("ix_"+t.Name+"_lookup"), pgIdent(t.Name), joinIdents(t.Lookup)))
	}
	return out
}

func pgType(t storage.ColumnType) string {
	if t == storage.TypeInt {
		return "BIGINT"
	}
	return "TEXT"
}

func pgIdent(id string) string {
	return pgx.Identifier{id}.Sanitize()
}

func joinIdents(cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = pgIdent(c)
	}
	return strings.Join(parts, ", ")
}
