package tsv

import (
	"context"
	"io"
	"os"

	"bidsevents/internal/config"
	"bidsevents/internal/errors"
)

// RowError is a non-fatal problem with one record.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string { return e.Err.Error() }

// Table is a fully materialized tabular file.
type Table struct {
	Columns []string
	Rows    [][]string
	// RowErrors holds non-fatal per-record problems seen while reading.
	RowErrors []RowError
}

// ColumnIndex returns the position of column name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the values of column name, or nil if absent.
// Rows too short to hold the column yield "".
func (t *Table) Column(name string) []string {
	ix := t.ColumnIndex(name)
	if ix < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		if ix < len(r) {
			out[i] = r[ix]
		}
	}
	return out
}

// Read materializes every record of r.
func Read(ctx context.Context, r io.Reader, opt config.Options) (*Table, error) {
	t := &Table{}
	err := StreamRows(ctx, io.NopCloser(r), opt,
		func(cols []string) error {
			t.Columns = append([]string(nil), cols...)
			return nil
		},
		func(_ int, rec []string) error {
			t.Rows = append(t.Rows, append([]string(nil), rec...))
			return nil
		},
		func(line int, err error) {
			t.RowErrors = append(t.RowErrors, RowError{Line: line, Err: err})
		},
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ReadFile opens path, materializes it and closes it again, also when
// parsing fails.
func ReadFile(ctx context.Context, path string, opt config.Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	t, err := Read(ctx, f, opt)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return t, nil
}

// Reader is the tabular-reader seam used by the index and aggregator.
type Reader interface {
	// Open returns a stream for path. The caller owns and must close it.
	Open(path string) (io.ReadCloser, error)
	// Options are passed to StreamRows for every file.
	Options() config.Options
}

// FileReader reads from the local filesystem.
type FileReader struct {
	Opt config.Options
}

// Open implements Reader.
func (f FileReader) Open(path string) (io.ReadCloser, error) {
	rc, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return rc, nil
}

// Options implements Reader.
func (f FileReader) Options() config.Options { return f.Opt }

// Stream opens path through r and streams it. The handle is released before
// Stream returns, whatever the outcome.
func Stream(ctx context.Context, r Reader, path string, onHeader func([]string) error, onRow RowFunc, onErr func(int, error)) error {
	rc, err := r.Open(path)
	if err != nil {
		return err
	}
	if err := StreamRows(ctx, rc, r.Options(), onHeader, onRow, onErr); err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	return nil
}
