// Package sqlite is the SQLite index store, built on the pure-Go
// modernc.org/sqlite driver so no cgo toolchain is needed.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"bidsevents/internal/errors"
	"bidsevents/internal/storage"
	"bidsevents/internal/summary"
)

// maxParams stays under SQLite's default bind-variable limit.
const maxParams = 32000

var dialect = storage.Dialect{
	Quote:       storage.QuoteDouble,
	Placeholder: func(int) string { return "?" },
}

// Repo implements storage.Repository for SQLite.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

// New opens cfg.DSN (a file path, "file:" URI or ":memory:") and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// A :memory: database is private to its connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// EnsureSchema creates every index table and lookup index if missing.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, t := range storage.Tables() {
		for _, stmt := range buildCreateSQL(t) {
			if _, err := r.db.ExecContext(ctx, stmt); err != nil {
				return errors.Wrapf(err, "sqlite: create %s", t.Name)
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
				return errors.Wrapf(err, "sqlite: clear %s", t)
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
			return errors.Wrapf(err, "sqlite: clear %s", storage.ColumnValuesTable)
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
		return nil, errors.Wrap(err, "sqlite: find files")
	}
	var out []storage.FileRow
	for rows.Next() {
		var f storage.FileRow
		if err := rows.Scan(&f.Key, &f.Path, &f.Suffix); err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, f)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}

	rows, err = r.db.QueryContext(ctx, dialect.FindEntitiesSQL(), dataset, entity, value)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: find entities")
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
	storage.AttachEntities(out, ents)
	return out, nil
}

func (r *Repo) ColumnValues(ctx context.Context, dataset, column string) ([]storage.ColumnValueRow, error) {
	filter, args := storage.ColumnValueArgs(dataset, column)
	rows, err := r.db.QueryContext(ctx, dialect.ColumnValuesSQL(filter), args...)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: column values")
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

// insertRows performs batched multi-row inserts. "INSERT OR IGNORE" relies
// on the table's UNIQUE constraint to drop duplicate natural keys.
func insertRows(ctx context.Context, tx *sql.Tx, t storage.TableSpec, rows [][]any) (int64, error) {
	var total int64
	cols := t.ColumnNames()
	for _, part := range storage.Batches(rows, len(cols), maxParams) {
		q, args := buildInsertSQL(t.Name, cols, part)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return total, errors.Wrapf(err, "sqlite: insert %s", t.Name)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// buildInsertSQL builds one INSERT OR IGNORE for rows. Pure, for testing.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
	}
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	b.WriteString("INSERT OR IGNORE INTO ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		args = append(args, row...)
	}
	return b.String(), args
}

// buildCreateSQL returns the CREATE TABLE and optional CREATE INDEX
// statements for t.
func buildCreateSQL(t storage.TableSpec) []string {
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		defs = append(defs, fmt.Sprintf("%s %s NOT NULL", sqlIdent(c.Name), sqliteType(c.Type)))
	}
	if len(t.Unique) > 0 {
		defs = append(defs, "UNIQUE ("+joinIdentList(t.Unique)+")")
	}
	out := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", sqlIdent(t.Name), strings.Join(defs, ", "))}

	if len(t.Lookup) > 0 {
		out = append(out, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			sqlIdent("ix_"+t.Name+"_lookup"), sqlIdent(t.Name), joinIdentList(t.Lookup)))
	}
	return out
}

func sqliteType(t storage.ColumnType) string {
	if t == storage.TypeInt {
		return "INTEGER"
	}
	return "TEXT"
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return storage.QuoteDouble(id)
}

func joinIdentList(columns []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = sqlIdent(c)
	}
	return strings.Join(parts, ", ")
}
