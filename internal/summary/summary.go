package summary

import (
	"maps"
	"slices"

	"bidsevents/internal/errors"
)

var (
	// ErrVariantConflict is returned when one column is Categorical in one
	// summary and Continuous in another.
	ErrVariantConflict = errors.New("summary: column variant conflict")
	// ErrOverlap is returned when merged summaries share a file; merging
	// would count that file twice.
	ErrOverlap = errors.New("summary: summaries share a file")
	// ErrFrozen is returned by updates after the summary was frozen.
	ErrFrozen = errors.New("summary: frozen")
	// ErrFileSeen is returned when the same file is folded twice.
	ErrFileSeen = errors.New("summary: file already folded")
)

// DatasetSummary is column name → ColumnSummary plus dataset counters.
//
// Columns iterate in first-seen order. Content equality (Equal) ignores that
// order; column order only matters for presentation.
type DatasetSummary struct {
	columns map[string]ColumnSummary
	order   []string
	files   map[string]struct{}

	TotalFiles int
	TotalRows  int
}

func newDatasetSummary() *DatasetSummary {
	return &DatasetSummary{columns: map[string]ColumnSummary{}, files: map[string]struct{}{}}
}

// Columns returns column names in first-seen order.
func (s *DatasetSummary) Columns() []string { return slices.Clone(s.order) }

// Column returns the summary of name.
func (s *DatasetSummary) Column(name string) (ColumnSummary, bool) {
	c, ok := s.columns[name]
	return c, ok
}

// Categorical returns name's summary if it is categorical.
func (s *DatasetSummary) Categorical(name string) (*Categorical, bool) {
	c, ok := s.columns[name].(*Categorical)
	return c, ok
}

// FileNames returns the names of the folded files, sorted.
func (s *DatasetSummary) FileNames() []string {
	return slices.Sorted(maps.Keys(s.files))
}

// Len returns the number of columns.
func (s *DatasetSummary) Len() int { return len(s.order) }

// Clone returns a deep copy.
func (s *DatasetSummary) Clone() *DatasetSummary {
	out := newDatasetSummary()
	out.order = slices.Clone(s.order)
	out.TotalFiles, out.TotalRows = s.TotalFiles, s.TotalRows
	for k, c := range s.columns {
		out.columns[k] = c.clone()
	}
	for f := range s.files {
		out.files[f] = struct{}{}
	}
	return out
}

// Equal compares content: counters, columns, variants and counts.
func (s *DatasetSummary) Equal(o *DatasetSummary) bool {
	if s.TotalFiles != o.TotalFiles || s.TotalRows != o.TotalRows || len(s.columns) != len(o.columns) {
		return false
	}
	for k, c := range s.columns {
		oc, ok := o.columns[k]
		if !ok || !c.equal(oc) {
			return false
		}
	}
	return true
}

// mergeInto folds src into dst. dst is modified only when the merge
// succeeds.
func mergeInto(dst, src *DatasetSummary) error {
	for f := range src.files {
		if _, ok := dst.files[f]; ok {
			return errors.Wrapf(ErrOverlap, "file %q", f)
		}
	}
	for _, name := range src.order {
		if dc, ok := dst.columns[name]; ok && dc.Kind() != src.columns[name].Kind() {
			return errors.Wrapf(ErrVariantConflict, "column %q: %s vs %s", name, dc.Kind(), src.columns[name].Kind())
		}
	}

	for _, name := range src.order {
		sc := src.columns[name]
		if dc, ok := dst.columns[name]; ok {
			dc.mergeFrom(sc)
			continue
		}
		dst.columns[name] = sc.clone()
		dst.order = append(dst.order, name)
	}
	for f := range src.files {
		dst.files[f] = struct{}{}
	}
	dst.TotalFiles += src.TotalFiles
	dst.TotalRows += src.TotalRows
	return nil
}

// Merge returns a new summary combining the inputs. Inputs are not
// modified. Column order is first-seen across the inputs in argument order;
// content does not depend on argument order.
//
// Errors:
//   - ErrOverlap if two inputs folded the same file.
//   - ErrVariantConflict if a column has different variants.
func Merge(summaries ...*DatasetSummary) (*DatasetSummary, error) {
	out := newDatasetSummary()
	for _, s := range summaries {
		if s == nil {
			continue
		}
		if err := mergeInto(out, s); err != nil {
			return nil, err
		}
	}
	return out, nil
}
