package storage

import (
	"fmt"
	"strings"

	"bidsevents/internal/errors"
)

// NormalizeKey converts a scalar column value to a canonical string form,
// suitable for in-memory dedupe keys (e.g. "sub-01" or "42").
//
// Backends must not assume a particular underlying type for values; this
// helper keeps batch dedupe consistent across backends.
func NormalizeKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case int64:
		return fmt.Sprintf("%d", t)
	case []byte:
		return strings.TrimSpace(string(t))
	case int:
		return fmt.Sprintf("%d", t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// DedupeRows keeps the first row per combination of the dedupe columns,
// preserving input order.
//
// Errors:
//   - A dedupe column that is not in columns.
func DedupeRows(rows [][]any, columns, dedupe []string) ([][]any, error) {
	idx := make([]int, len(dedupe))
	for i, dc := range dedupe {
		pos := -1
		for j, c := range columns {
			if c == dc {
				pos = j
				break
			}
		}
		if pos < 0 {
			return nil, errors.Newf("dedupe column %q not present in columns", dc)
		}
		idx[i] = pos
	}

	seen := make(map[string]bool, len(rows))
	out := make([][]any, 0, len(rows))
	parts := make([]string, len(idx))
	for _, row := range rows {
		for i, p := range idx {
			parts[i] = NormalizeKey(row[p])
		}
		k := strings.Join(parts, "\x1f")
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, row)
	}
	return out, nil
}
