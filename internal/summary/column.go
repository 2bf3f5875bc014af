// Package summary folds per-file column statistics into a cross-file
// dataset summary.
//
// Every column is classified once, by membership in the caller's value
// column set, as either Categorical (each distinct value counted) or
// Continuous (only file and row counters). The classification never depends
// on what the data looks like, so the result is the same whatever order files
// are folded in. Summaries built over disjoint file sets merge associatively
// and commutatively; that is what makes MakeCombined safe to shard across
// workers.
package summary

import (
	"maps"
	"slices"
)

// Kind names a column variant.
type Kind string

const (
	KindCategorical Kind = "categorical"
	KindContinuous  Kind = "continuous"
)

// ColumnSummary is one of *Categorical or *Continuous.
type ColumnSummary interface {
	Kind() Kind
	// Files is the number of files that contained the column.
	Files() int
	// Rows is the number of rows, across those files, that contained it.
	Rows() int

	clone() ColumnSummary
	mergeFrom(other ColumnSummary)
	equal(other ColumnSummary) bool
}

// ValueCount tracks one categorical value.
type ValueCount struct {
	// TotalCount is the number of occurrences across all files.
	TotalCount int
	// FileCount is the number of distinct files containing the value.
	FileCount int
}

// Categorical enumerates every distinct value of a column.
type Categorical struct {
	Values    map[string]*ValueCount
	FileCount int
	RowCount  int
}

func newCategorical() *Categorical {
	return &Categorical{Values: map[string]*ValueCount{}}
}

func (c *Categorical) Kind() Kind { return KindCategorical }
func (c *Categorical) Files() int { return c.FileCount }
func (c *Categorical) Rows() int { return c.RowCount }

// SortedValues returns the distinct values in lexicographic order.
func (c *Categorical) SortedValues() []string {
	return slices.Sorted(maps.Keys(c.Values))
}

// Count returns the counts for v, zero if unseen.
func (c *Categorical) Count(v string) ValueCount {
	if vc, ok := c.Values[v]; ok {
		return *vc
	}
	return ValueCount{}
}

func (c *Categorical) clone() ColumnSummary {
	out := &Categorical{Values: make(map[string]*ValueCount, len(c.Values)), FileCount: c.FileCount, RowCount: c.RowCount}
	for v, vc := range c.Values {
		cp := *vc
		out.Values[v] = &cp
	}
	return out
}

func (c *Categorical) mergeFrom(other ColumnSummary) {
	o := other.(*Categorical)
	c.FileCount += o.FileCount
	c.RowCount += o.RowCount
	for v, ovc := range o.Values {
		vc, ok := c.Values[v]
		if !ok {
			vc = &ValueCount{}
			c.Values[v] = vc
		}
		vc.TotalCount += ovc.TotalCount
		vc.FileCount += ovc.FileCount
	}
}

func (c *Categorical) equal(other ColumnSummary) bool {
	o, ok := other.(*Categorical)
	if !ok || c.FileCount != o.FileCount || c.RowCount != o.RowCount || len(c.Values) != len(o.Values) {
		return false
	}
	for v, vc := range c.Values {
		ovc, ok := o.Values[v]
		if !ok || *vc != *ovc {
			return false
		}
	}
	return true
}

// Continuous is a free-valued column; values are not enumerated.
type Continuous struct {
	FileCount int
	RowCount  int
}

func (c *Continuous) Kind() Kind { return KindContinuous }
func (c *Continuous) Files() int { return c.FileCount }
func (c *Continuous) Rows() int { return c.RowCount }

func (c *Continuous) clone() ColumnSummary {
	cp := *c
	return &cp
}

func (c *Continuous) mergeFrom(other ColumnSummary) {
	o := other.(*Continuous)
	c.FileCount += o.FileCount
	c.RowCount += o.RowCount
}

func (c *Continuous) equal(other ColumnSummary) bool {
	o, ok := other.(*Continuous)
	return ok && *c == *o
}
