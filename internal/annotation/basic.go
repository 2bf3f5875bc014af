package annotation

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	pjson "bidsevents/internal/parser/json"
)

// Placeholder marks where a value column's cell value is substituted.
const Placeholder = "#"

// NotAvailable is the missing-value marker in data files.
const NotAvailable = "n/a"

// Basic is the schema-free structural Validator.
type Basic struct{}

var _ Validator = Basic{}

// ValidateSidecar checks entry shapes, placeholders, parentheses and tag
// prefixes of one document.
func (Basic) ValidateSidecar(doc *pjson.Object, schemas []SchemaVersion) []Issue {
	var issues []Issue
	prefixes := declaredPrefixes(schemas)

	for _, col := range doc.Keys() {
		v, _ := doc.Get(col)
		entry, ok := v.(*pjson.Object)
		if !ok {
			issues = append(issues, Issue{Severity: SeverityError, Code: CodeSidecarInvalid, Column: col,
				Message: fmt.Sprintf("entry must be an object, got %s", kindOf(v))})
			continue
		}
		if _, ok := entry.Get("Description"); !ok {
			issues = append(issues, Issue{Severity: SeverityWarning, Code: CodeDescriptionMissing, Column: col,
				Message: "entry has no Description"})
		}

		hed, hasHED := entry.Get("HED")
		switch h := hed.(type) {
		case nil:
			if hasHED {
				issues = append(issues, Issue{Severity: SeverityError, Code: CodeSidecarInvalid, Column: col, Message: "HED is null"})
			}
		case string:
			if n := strings.Count(h, Placeholder); n != 1 {
				issues = append(issues, Issue{Severity: SeverityError, Code: CodePlaceholderInvalid, Column: col,
					Message: fmt.Sprintf("value column HED must contain exactly one %q, found %d", Placeholder, n)})
			}
			issues = append(issues, checkHED(h, col, prefixes)...)
		case *pjson.Object:
			for _, val := range h.Keys() {
				raw, _ := h.Get(val)
				s, ok := raw.(string)
				if !ok {
					issues = append(issues, Issue{Severity: SeverityError, Code: CodeSidecarInvalid, Column: col,
						Message: fmt.Sprintf("HED for value %q must be a string, got %s", val, kindOf(raw))})
					continue
				}
				if strings.Contains(s, Placeholder) {
					issues = append(issues, Issue{Severity: SeverityError, Code: CodePlaceholderInvalid, Column: col,
						Message: fmt.Sprintf("HED for categorical value %q must not contain %q", val, Placeholder)})
				}
				issues = append(issues, checkHED(s, col, prefixes)...)
			}
		default:
			issues = append(issues, Issue{Severity: SeverityError, Code: CodeSidecarInvalid, Column: col,
				Message: fmt.Sprintf("HED must be a string or object, got %s", kindOf(hed))})
		}

		issues = append(issues, checkLevels(entry, col)...)
	}
	return issues
}

func checkLevels(entry *pjson.Object, col string) []Issue {
	lv, ok := entry.Get("Levels")
	if !ok {
		return nil
	}
	levels, ok := lv.(*pjson.Object)
	if !ok {
		return []Issue{{Severity: SeverityError, Code: CodeSidecarInvalid, Column: col,
			Message: fmt.Sprintf("Levels must be an object, got %s", kindOf(lv))}}
	}
	var issues []Issue
	h, _ := entry.Get("HED")
	hedMap, _ := h.(*pjson.Object)
	for _, k := range levels.Keys() {
		d, _ := levels.Get(k)
		if _, ok := d.(string); !ok {
			issues = append(issues, Issue{Severity: SeverityError, Code: CodeSidecarInvalid, Column: col,
				Message: fmt.Sprintf("Levels description for %q must be a string, got %s", k, kindOf(d))})
		}
		if hedMap != nil {
			if _, ok := hedMap.Get(k); !ok {
				issues = append(issues, Issue{Severity: SeverityWarning, Code: CodeLevelNotAnnotated, Column: col,
					Message: fmt.Sprintf("level %q has no HED annotation", k)})
			}
		}
	}
	return issues
}

// checkHED checks one annotation string.
func checkHED(s, col string, prefixes map[string]bool) []Issue {
	var issues []Issue
	if ok, why := checkParentheses(s); !ok {
		issues = append(issues, Issue{Severity: SeverityError, Code: CodeParentheses, Column: col,
			Message: fmt.Sprintf("%s in %q", why, s)})
	}
	tags, empty := splitTags(s)
	if empty {
		issues = append(issues, Issue{Severity: SeverityError, Code: CodeTagEmpty, Column: col,
			Message: fmt.Sprintf("empty tag in %q", s)})
	}
	for _, tag := range tags {
		if p, ok := tagPrefix(tag); ok && !prefixes[p] {
			issues = append(issues, Issue{Severity: SeverityError, Code: CodeUnknownPrefix, Column: col,
				Message: fmt.Sprintf("tag %q uses prefix %q, which no schema declares", tag, p)})
		}
	}
	return issues
}

// ValidateFile checks the data rows against the effective sidecar: every
// categorical value must be annotated, onsets must be numeric, cells of a
// HED column must be well formed.
func (Basic) ValidateFile(ctx context.Context, in Input, schemas []SchemaVersion) []Issue {
	var issues []Issue
	prefixes := declaredPrefixes(schemas)
	annotated := 0

	for ci, col := range in.Columns {
		if ctx.Err() != nil {
			return issues
		}
		switch col {
		case "onset":
			issues = append(issues, checkOnsets(in.Rows, ci)...)
			continue
		case "HED":
			annotated++
			for ri, row := range in.Rows {
				cell := cellAt(row, ci)
				if cell == "" || cell == NotAvailable {
					continue
				}
				for _, is := range checkHED(cell, col, prefixes) {
					is.Line = ri + 2
					issues = append(issues, is)
				}
			}
			continue
		}

		v, ok := in.Sidecar.Get(col)
		if !ok {
			continue
		}
		entry, ok := v.(*pjson.Object)
		if !ok {
			continue
		}
		hed, ok := entry.Get("HED")
		if !ok {
			continue
		}
		annotated++
		hedMap, ok := hed.(*pjson.Object)
		if !ok {
			continue
		}

		reported := map[string]bool{}
		for ri, row := range in.Rows {
			cell := cellAt(row, ci)
			if cell == "" || cell == NotAvailable || reported[cell] {
				continue
			}
			if _, ok := hedMap.Get(cell); !ok {
				reported[cell] = true
				issues = append(issues, Issue{Severity: SeverityWarning, Code: CodeValueNotAnnotated, Column: col, Line: ri + 2,
					Message: fmt.Sprintf("value %q has no HED annotation", cell)})
			}
		}
	}

	if annotated == 0 {
		issues = append(issues, Issue{Severity: SeverityWarning, Code: CodeNoAnnotatedColumns,
			Message: "no column of this file is annotated"})
	}
	return issues
}

func checkOnsets(rows [][]string, ci int) []Issue {
	var issues []Issue
	for ri, row := range rows {
		cell := cellAt(row, ci)
		if cell == NotAvailable {
			continue
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			issues = append(issues, Issue{Severity: SeverityError, Code: CodeOnsetInvalid, Column: "onset", Line: ri + 2,
				Message: fmt.Sprintf("onset %q is not a number", cell)})
		}
	}
	return issues
}

func declaredPrefixes(schemas []SchemaVersion) map[string]bool {
	m := make(map[string]bool, len(schemas))
	for _, s := range schemas {
		if s.Prefix != "" {
			m[s.Prefix] = true
		}
	}
	return m
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case *pjson.Object:
		return "object"
	default:
		return "number"
	}
}

// SortIssues orders issues by line, then column, then code. Issues without
// a line come first.
func SortIssues(issues []Issue) {
	slices.SortStableFunc(issues, func(a, b Issue) int {
		if a.Line != b.Line {
			return a.Line - b.Line
		}
		if c := strings.Compare(a.Column, b.Column); c != 0 {
			return c
		}
		return strings.Compare(a.Code, b.Code)
	})
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
