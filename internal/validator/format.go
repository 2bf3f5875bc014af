package validator

import (
	"fmt"
	"strings"

	"bidsevents/internal/annotation"
)

// FormatIssues renders one line per issue:
//
//	[file] SEVERITY CODE [column c] [line n]: message
//
// The file is left out when skipFilename is set.
func FormatIssues(issues []Issue, skipFilename bool) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		var b strings.Builder
		if !skipFilename && is.File != "" {
			b.WriteString(is.File)
			b.WriteByte(' ')
		}
		b.WriteString(strings.ToUpper(string(is.Severity)))
		b.WriteByte(' ')
		b.WriteString(is.Code)
		if is.Column != "" {
			fmt.Fprintf(&b, " [column %s]", is.Column)
		}
		if is.Line > 0 {
			fmt.Fprintf(&b, " [line %d]", is.Line)
		}
		b.WriteString(": ")
		b.WriteString(is.Message)
		out[i] = b.String()
	}
	return out
}

// Summary counts issues.
type Summary struct {
	Errors   int
	Warnings int
	// ByFile counts issues per file, in first-seen order via Files.
	ByFile map[string]int
	Files  []string
}

// Summarize counts issues by severity and by file.
func Summarize(issues []Issue) Summary {
	s := Summary{ByFile: map[string]int{}}
	for _, is := range issues {
		switch is.Severity {
		case annotation.SeverityError:
			s.Errors++
		case annotation.SeverityWarning:
			s.Warnings++
		}
		if _, ok := s.ByFile[is.File]; !ok {
			s.Files = append(s.Files, is.File)
		}
		s.ByFile[is.File]++
	}
	return s
}
