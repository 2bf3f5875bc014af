package summary

import (
	"fmt"
	"sort"
	"strings"
)

// Report renders a per-column cardinality table: distinct values, rows and
// distinct/rows ratio, lowest ratio first. It helps choose value columns; it
// does not change classification.
//
// Continuous columns are listed with "-" for unique since their values are
// not enumerated.
func (s *DatasetSummary) Report() string {
	if s.TotalRows <= 0 {
		return "cardinality: no rows aggregated"
	}

	type row struct {
		Col   string
		Kind  Kind
		Dist  int
		Rows  int
		Ratio float64
	}

	rows := make([]row, 0, len(s.order))
	for _, col := range s.order {
		c := s.columns[col]
		if c.Rows() <= 0 {
			continue
		}
		r := row{Col: col, Kind: c.Kind(), Rows: c.Rows(), Dist: -1}
		if cat, ok := c.(*Categorical); ok {
			r.Dist = len(cat.Values)
			r.Ratio = float64(r.Dist) / float64(r.Rows)
		}
		rows = append(rows, r)
	}

	// Continuous columns sort last; ties by name.
	sort.SliceStable(rows, func(i, j int) bool {
		if (rows[i].Dist < 0) != (rows[j].Dist < 0) {
			return rows[j].Dist < 0
		}
		if rows[i].Ratio == rows[j].Ratio {
			return rows[i].Col < rows[j].Col
		}
		return rows[i].Ratio < rows[j].Ratio
	})

	var b strings.Builder
	fmt.Fprintf(&b, "cardinality report:\tfiles=%d\trows=%d\n", s.TotalFiles, s.TotalRows)
	fmt.Fprintf(&b, "%-15s\t%-11s\t%-7s\t%-7s\tratio\n", "col", "kind", "unique", "rows")
	for _, r := range rows {
		if r.Dist < 0 {
			fmt.Fprintf(&b, "%-15s\t%-11s\t%-7s\t%-7d\t-\n", r.Col, r.Kind, "-", r.Rows)
			continue
		}
		fmt.Fprintf(&b, "%-15s\t%-11s\t%-7d\t%-7d\t%.1f%%\n", r.Col, r.Kind, r.Dist, r.Rows, r.Ratio*100)
	}
	return b.String()
}
