package storage

import (
	"maps"
	"slices"

	"bidsevents/internal/fileindex"
	"bidsevents/internal/summary"
)

// FileRow is one stored file with its entity map.
type FileRow struct {
	Key      string
	Path     string
	Suffix   string
	Entities map[string]string
}

// ColumnValueRow is one stored summary row. Continuous columns have a single
// row with an empty Value whose counts are the column's row and file totals.
type ColumnValueRow struct {
	Column     string
	Kind       summary.Kind
	Value      string
	TotalCount int64
	FileCount  int64
}

// EntityValue is one scanned bids_entities row.
type EntityValue struct {
	Key    string
	Entity string
	Value  string
}

// FileRowsFromIndex converts ix to rows in key order.
func FileRowsFromIndex(ix *fileindex.Index) []FileRow {
	if ix == nil {
		return nil
	}
	recs := ix.Records()
	out := make([]FileRow, len(recs))
	for i, r := range recs {
		out[i] = FileRow{Key: r.Key, Path: r.Path, Suffix: r.Suffix, Entities: maps.Clone(r.Entities)}
	}
	return out
}

// ColumnRowsFromSummary converts s to rows in column order, values sorted.
func ColumnRowsFromSummary(s *summary.DatasetSummary) []ColumnValueRow {
	if s == nil {
		return nil
	}
	var out []ColumnValueRow
	for _, name := range s.Columns() {
		col, _ := s.Column(name)
		switch c := col.(type) {
		case *summary.Categorical:
			for _, v := range c.SortedValues() {
				vc := c.Count(v)
				out = append(out, ColumnValueRow{
					Column:     name,
					Kind:       summary.KindCategorical,
					Value:      v,
					TotalCount: int64(vc.TotalCount),
					FileCount:  int64(vc.FileCount),
				})
			}
		case *summary.Continuous:
			out = append(out, ColumnValueRow{
				Column:     name,
				Kind:       summary.KindContinuous,
				TotalCount: int64(c.RowCount),
				FileCount:  int64(c.FileCount),
			})
		}
	}
	return out
}

// FileValues flattens files into bids_files insert rows.
func FileValues(dataset string, files []FileRow) [][]any {
	out := make([][]any, len(files))
	for i, f := range files {
		out[i] = []any{dataset, f.Key, f.Path, f.Suffix}
	}
	return out
}

// EntityValues flattens every file's entity map into bids_entities insert
// rows, entities sorted by name within a file.
func EntityValues(dataset string, files []FileRow) [][]any {
	var out [][]any
	for _, f := range files {
		for _, name := range slices.Sorted(maps.Keys(f.Entities)) {
			out = append(out, []any{dataset, f.Key, name, f.Entities[name]})
		}
	}
	return out
}

// ColumnValueValues flattens values into bids_column_values insert rows.
func ColumnValueValues(dataset string, values []ColumnValueRow) [][]any {
	out := make([][]any, len(values))
	for i, v := range values {
		out[i] = []any{dataset, v.Column, string(v.Kind), v.Value, v.TotalCount, v.FileCount}
	}
	return out
}

// AttachEntities fills each file's Entities from ents, matched by key.
func AttachEntities(files []FileRow, ents []EntityValue) {
	pos := make(map[string]int, len(files))
	for i := range files {
		pos[files[i].Key] = i
	}
	for _, e := range ents {
		i, ok := pos[e.Key]
		if !ok {
			continue
		}
		if files[i].Entities == nil {
			files[i].Entities = map[string]string{}
		}
		files[i].Entities[e.Entity] = e.Value
	}
}

// Batches splits rows so no statement binds more than maxParams parameters.
func Batches(rows [][]any, columns, maxParams int) [][][]any {
	per := maxParams / max(1, columns)
	if per < 1 {
		per = 1
	}
	var out [][][]any
	for start := 0; start < len(rows); start += per {
		out = append(out, rows[start:min(start+per, len(rows))])
	}
	return out
}
