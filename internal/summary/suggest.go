package summary

import (
	"sort"
	"strconv"
	"strings"
)

// DefaultSuggestRatio is the distinct/rows ratio above which an all-numeric
// categorical column is suggested as a value column.
const DefaultSuggestRatio = 0.5

// Suggestion is one value column candidate.
type Suggestion struct {
	Column string
	// Distinct is the number of distinct non-n/a values.
	Distinct int
	Rows     int
	Ratio    float64
}

// SuggestValueColumns lists categorical columns that look continuous: every
// value is numeric (n/a and empty cells are ignored) and the distinct/rows
// ratio exceeds minRatio (<= 0 means DefaultSuggestRatio). Highest ratio
// first; ties by name.
//
// It is advisory. A column only becomes continuous when the caller lists it
// as a value column on the next run.
func SuggestValueColumns(s *DatasetSummary, minRatio float64) []Suggestion {
	if minRatio <= 0 {
		minRatio = DefaultSuggestRatio
	}

	var out []Suggestion
	for _, col := range s.order {
		c, ok := s.columns[col].(*Categorical)
		if !ok || c.RowCount <= 0 {
			continue
		}

		dist, numeric := 0, true
		for v := range c.Values {
			v = strings.TrimSpace(v)
			if v == "" || v == "n/a" {
				continue
			}
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				numeric = false
				break
			}
			dist++
		}
		if !numeric || dist == 0 {
			continue
		}

		r := float64(dist) / float64(c.RowCount)
		if r <= minRatio {
			continue
		}
		out = append(out, Suggestion{Column: col, Distinct: dist, Rows: c.RowCount, Ratio: r})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Ratio == out[j].Ratio {
			return out[i].Column < out[j].Column
		}
		return out[i].Ratio > out[j].Ratio
	})
	return out
}
