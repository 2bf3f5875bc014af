package summary

import (
	"context"

	"bidsevents/internal/errors"
	"bidsevents/internal/fileindex"
	"bidsevents/internal/parser/tsv"
)

// Aggregator owns a DatasetSummary while it is being built.
//
// An Aggregator is not safe for concurrent use; MakeCombined gives each
// worker its own and merges the results.
type Aggregator struct {
	skip  map[string]bool
	value map[string]bool
	sum   *DatasetSummary
	done  bool
}

// New returns an Aggregator. Columns in skip are ignored; columns in value
// are Continuous; every other column is Categorical.
func New(skip, value []string) *Aggregator {
	return &Aggregator{skip: toSet(skip), value: toSet(value), sum: newDatasetSummary()}
}

func toSet(xs []string) map[string]bool {
	m := make(map[string]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}

// fileFold accumulates one file before it is committed, so a file that fails
// halfway contributes nothing.
type fileFold struct {
	a       *Aggregator
	columns []string
	keep    []int
	counts  []map[string]int
	rows    int
}

func (a *Aggregator) newFold() *fileFold { return &fileFold{a: a} }

func (f *fileFold) header(cols []string) error {
	f.columns = append([]string(nil), cols...)
	seen := map[string]bool{}
	for i, c := range cols {
		if f.a.skip[c] || seen[c] {
			continue
		}
		seen[c] = true
		f.keep = append(f.keep, i)
	}
	f.counts = make([]map[string]int, len(f.keep))
	for i := range f.counts {
		f.counts[i] = map[string]int{}
	}
	return nil
}

func (f *fileFold) row(_ int, rec []string) error {
	f.rows++
	for i, ix := range f.keep {
		if f.a.value[f.columns[ix]] {
			continue
		}
		v := ""
		if ix < len(rec) {
			v = rec[ix]
		}
		f.counts[i][v]++
	}
	return nil
}

func (f *fileFold) commit(name string) {
	s := f.a.sum
	s.files[name] = struct{}{}
	s.TotalFiles++
	s.TotalRows += f.rows

	for i, ix := range f.keep {
		col := f.columns[ix]
		cs, ok := s.columns[col]
		if !ok {
			if f.a.value[col] {
				cs = &Continuous{}
			} else {
				cs = newCategorical()
			}
			s.columns[col] = cs
			s.order = append(s.order, col)
		}
		switch c := cs.(type) {
		case *Continuous:
			c.FileCount++
			c.RowCount += f.rows
		case *Categorical:
			c.FileCount++
			c.RowCount += f.rows
			for v, n := range f.counts[i] {
				vc, ok := c.Values[v]
				if !ok {
					vc = &ValueCount{}
					c.Values[v] = vc
				}
				vc.TotalCount += n
				vc.FileCount++
			}
		}
	}
}

func (a *Aggregator) check(name string) error {
	if a.done {
		return ErrFrozen
	}
	if _, ok := a.sum.files[name]; ok {
		return errors.Wrapf(ErrFileSeen, "%q", name)
	}
	return nil
}

// Update folds one materialized file. name identifies the file; folding the
// same name twice fails with ErrFileSeen.
func (a *Aggregator) Update(name string, t *tsv.Table) error {
	if err := a.check(name); err != nil {
		return err
	}
	f := a.newFold()
	if err := f.header(t.Columns); err != nil {
		return err
	}
	for i, r := range t.Rows {
		if err := f.row(i+2, r); err != nil {
			return err
		}
	}
	f.commit(name)
	return nil
}

// UpdateStream folds the file at path, read through r, without
// materializing it. The file is registered under its path.
func (a *Aggregator) UpdateStream(ctx context.Context, r tsv.Reader, path string) error {
	if err := a.check(path); err != nil {
		return err
	}
	f := a.newFold()
	if err := tsv.Stream(ctx, r, path, f.header, f.row, nil); err != nil {
		return err
	}
	f.commit(path)
	return nil
}

// FileError is a per-file failure that was isolated from the run.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return e.Path + ": " + e.Err.Error() }
func (e FileError) Unwrap() error { return e.Err }

// UpdateFiles folds every record in order. A file that cannot be read is
// collected in the returned slice and contributes nothing.
//
// Errors:
//   - ctx cancellation or ErrFrozen stop the run. Failures already collected
//     are returned alongside.
func (a *Aggregator) UpdateFiles(ctx context.Context, records []*fileindex.Record, r tsv.Reader) ([]FileError, error) {
	var failed []FileError
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return failed, err
		}
		if err := a.UpdateStream(ctx, r, rec.Path); err != nil {
			if errors.Is(err, ErrFrozen) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return failed, err
			}
			failed = append(failed, FileError{Path: rec.Path, Err: err})
		}
	}
	return failed, nil
}

// Merge folds a summary produced elsewhere (e.g. by another worker).
func (a *Aggregator) Merge(other *DatasetSummary) error {
	if a.done {
		return ErrFrozen
	}
	return mergeInto(a.sum, other)
}

// Freeze ends aggregation and returns the summary. Later updates fail with
// ErrFrozen. Callers must treat the returned summary as read-only.
func (a *Aggregator) Freeze() *DatasetSummary {
	a.done = true
	return a.sum
}

// Snapshot returns a copy of the running summary without freezing.
func (a *Aggregator) Snapshot() *DatasetSummary { return a.sum.Clone() }
