// Package annotation defines the annotation-validator collaborator and a
// basic implementation of it.
//
// A Validator is handed an effective sidecar, the rows of one data file and
// the dataset's schema versions, and reports issues. The full vocabulary
// grammar lives outside this module; Basic checks the structural subset that
// can be decided without a schema: entry shapes, placeholder counts,
// parenthesis balance, library prefixes and value coverage.
package annotation

import (
	"context"
	"fmt"

	pjson "bidsevents/internal/parser/json"
)

// Severity of an issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue codes reported by Basic.
const (
	CodeSidecarInvalid     = "SIDECAR_INVALID"
	CodeDescriptionMissing = "SIDECAR_DESCRIPTION_MISSING"
	CodePlaceholderInvalid = "PLACEHOLDER_INVALID"
	CodeParentheses        = "PARENTHESES_MISMATCH"
	CodeTagEmpty           = "TAG_EMPTY"
	CodeUnknownPrefix      = "TAG_PREFIX_INVALID"
	CodeLevelNotAnnotated  = "SIDECAR_LEVEL_UNANNOTATED"
	CodeValueNotAnnotated  = "VALUE_UNANNOTATED"
	CodeOnsetInvalid       = "TSV_ONSET_INVALID"
	CodeNoAnnotatedColumns = "HED_MISSING"
)

// Issue is one finding. Column and Line are zero when not applicable; Line
// is the 1-based physical line in the data file (header is line 1).
type Issue struct {
	Severity Severity
	Code     string
	Message  string
	Column   string
	Line     int
}

func (i Issue) String() string {
	loc := ""
	if i.Column != "" {
		loc = fmt.Sprintf(" [column %s]", i.Column)
	}
	if i.Line > 0 {
		loc += fmt.Sprintf(" [line %d]", i.Line)
	}
	return fmt.Sprintf("%s: %s%s %s", i.Severity, i.Code, loc, i.Message)
}

// Input is one data file submitted for validation.
type Input struct {
	File    string
	Columns []string
	// Rows are data records aligned with Columns; row i is on line i+2.
	Rows    [][]string
	Sidecar *pjson.Object
}

// Validator checks sidecars and data files.
type Validator interface {
	// ValidateSidecar checks one document in isolation.
	ValidateSidecar(doc *pjson.Object, schemas []SchemaVersion) []Issue
	// ValidateFile checks one data file against its effective sidecar.
	ValidateFile(ctx context.Context, in Input, schemas []SchemaVersion) []Issue
}
