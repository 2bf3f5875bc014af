// Package mssql is the Microsoft SQL Server index store.
//
// Inserts use INSERT ... SELECT ... WHERE NOT EXISTS for idempotence. Unlike
// Postgres ON CONFLICT, that does not collapse duplicates inside one VALUES
// source, so each batch is deduped on the natural key first (first
// occurrence wins). Statements are chunked to stay under the server's
// 2100-parameter limit.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"bidsevents/internal/errors"
	"bidsevents/internal/storage"
	"bidsevents/internal/summary"
)

// maxParams leaves headroom under SQL Server's 2100 parameter limit.
const maxParams = 2000

var dialect = storage.Dialect{
	Quote:       mssqlIdent,
	Placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
}

// Repo implements storage.Repository for SQL Server.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

// New opens cfg.DSN with the "sqlserver" driver and validates connectivity
// via PingContext.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	raw.SetMaxOpenConns(16)
	raw.SetMaxIdleConns(16)

	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Repo{db: raw}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// EnsureSchema creates every index table and lookup index if missing.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, t := range storage.Tables() {
		for _, stmt := range buildCreateSQL(t) {
			if _, err := r.db.ExecContext(ctx, stmt); err != nil {
				return errors.Wrapf(err, "mssql: create %s", t.Name)
			}
		}
	}
	return nil
}

func (r *Repo) SaveIndex(ctx context.Context, dataset string, files []storage.FileRow) (int64, error) {
	var n int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		for _, t := range []string{storage.EntitiesTable, storage.FilesTable} {
			if _, err := tx.ExecContext(ctx, dialect.DeleteDatasetSQL(t), dataset); err != nil {
				return errors.Wrapf(err, "mssql: clear %s", t)
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
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, dialect.DeleteDatasetSQL(storage.ColumnValuesTable), dataset); err != nil {
			return errors.Wrapf(err, "mssql: clear %s", storage.ColumnValuesTable)
		}
		var err error
		n, err = insertRows(ctx, tx, storage.ColumnValuesSpec, storage.ColumnValueValues(dataset, values))
		return err
	})
	return n, err
}

func (r *Repo) FindByEntity(ctx context.Context, dataset, entity, value string) ([]storage.FileRow, error) {
	rows, err := r.db.QueryContext(ctx, dialect.FindFilesSQL(), dataset, entity, value)
	if err != nil {
		return nil, errors.Wrap(err, "mssql: find files")
	}
	var files []storage.FileRow
	for rows.Next() {
		var f storage.FileRow
		if err := rows.Scan(&f.Key, &f.Path, &f.Suffix); err != nil {
			_ = rows.Close()
			return nil, err
		}
		files = append(files, f)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	rows, err = r.db.QueryContext(ctx, dialect.FindEntitiesSQL(), dataset, entity, value)
	if err != nil {
		return nil, errors.Wrap(err, "mssql: find entities")
	}
	defer rows.Close()
	var ents []storage.EntityValue
	for rows.Next() {
		var e storage.EntityValue
		if err := rows.Scan(&e.Key, &e.Entity, &e.Value); err != nil {
			return nil, err
		}
		ents = append(ents, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	storage.AttachEntities(files, ents)
	return files, nil
}

func (r *Repo) ColumnValues(ctx context.Context, dataset, column string) ([]storage.ColumnValueRow, error) {
	filter, args := storage.ColumnValueArgs(dataset, column)
	rows, err := r.db.QueryContext(ctx, dialect.ColumnValuesSQL(filter), args...)
	if err != nil {
		return nil, errors.Wrap(err, "mssql: column values")
	}
	defer rows.Close()

	var out []storage.ColumnValueRow
	for rows.Next() {
		var (
			v    storage.ColumnValueRow
			kind string
		)
		if err := rows.Scan(&v.Column, &kind, &v.Value, &v.TotalCount, &v.FileCount); err != nil {
			return nil, err
		}
		v.Kind = summary.Kind(kind)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *Repo) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// insertRows dedupes rows on the table's natural key, then inserts them in
// parameter-limited chunks.
func insertRows(ctx context.Context, tx *sql.Tx, t storage.TableSpec, rows [][]any) (int64, error) {
	cols := t.ColumnNames()
	rows, err := storage.DedupeRows(rows, cols, t.Unique)
	if err != nil {
		return 0, errors.Wrapf(err, "mssql: insert %s", t.Name)
	}

	var total int64
	for _, part := range storage.Batches(rows, len(cols), maxParams) {
		q, args := buildInsertNotExistsSQL(t.Name, cols, part, t.Unique)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return total, errors.Wrapf(err, "mssql: insert %s", t.Name)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// buildInsertNotExistsSQL constructs a single INSERT...SELECT...WHERE NOT
// EXISTS for a chunk of rows.
//
// It materializes incoming rows as a derived table v via VALUES, then inserts
// only those rows that do not match existing rows per dedupeColumns.
func buildInsertNotExistsSQL(table string, columns []string, rows [][]any, dedupeColumns []string) (string, []any) {
	var b strings.Builder

	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlIdent(table))
	b.WriteString(" (")
	b.WriteString(joinIdents("", columns))
	b.WriteString(") SELECT ")
	b.WriteString(joinIdents("v.", columns))
	b.WriteString(" FROM (VALUES ")

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
			b.WriteString(fmt.Sprintf("@p%d", p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	b.WriteString(") AS v(")
	b.WriteString(joinIdents("", columns))
	b.WriteString(") WHERE NOT EXISTS (SELECT 1 FROM ")
	b.WriteString(mssqlIdent(table))
	b.WriteString(" t WHERE ")

	for i, dc := range dedupeColumns {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString("t.")
		b.WriteString(mssqlIdent(dc))
		b.WriteString(" = v.")
		b.WriteString(mssqlIdent(dc))
	}
	b.WriteString(")")

	return b.String(), args
}

// buildCreateSQL returns OBJECT_ID / sys.indexes guarded DDL for t, since
// SQL Server has no IF NOT EXISTS for tables or indexes.
func buildCreateSQL(t storage.TableSpec) []string {
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		defs = append(defs, fmt.Sprintf("%s %s NOT NULL", mssqlIdent(c.Name), mssqlType(c.Type)))
	}
	if len(t.Unique) > 0 {
		defs = append(defs, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)", mssqlIdent("uq_"+t.Name), joinIdents("", t.Unique)))
	}
	out := []string{fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		t.Name, mssqlIdent(t.Name), strings.Join(defs, ", "),
	)}

	if len(t.Lookup) > 0 {
		ix := "ix_" + t.Name + "_lookup"
		out = append(out, fmt.Sprintf(
			"IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'%s') BEGIN CREATE INDEX %s ON %s (%s); END;",
			ix, mssqlIdent(ix), mssqlIdent(t.Name), joinIdents("", t.Lookup),
		))
	}
	return out
}

// mssqlType maps portable types. Key columns are bounded so a composite
// unique constraint stays under the 1700-byte index key limit.
func mssqlType(t storage.ColumnType) string {
	switch t {
	case storage.TypeInt:
		return "BIGINT"
	case storage.TypeKey:
		return "NVARCHAR(255)"
	default:
		return "NVARCHAR(MAX)"
	}
}

func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func joinIdents(prefix string, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = prefix + mssqlIdent(c)
	}
	return strings.Join(parts, ", ")
}
