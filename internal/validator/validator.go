// Package validator checks a dataset's annotation metadata.
//
// Validation runs in two phases after the dataset descriptor is read: every
// sidecar document is checked in isolation, then every data file is checked
// against its effective sidecar (see package sidecar). Issues are returned
// with sidecar issues first, each phase in file-list order. Only dataset-level
// failures (missing descriptor, unusable schema version) abort a run.
package validator

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bidsevents/internal/annotation"
	"bidsevents/internal/errors"
	"bidsevents/internal/files"
	"bidsevents/internal/logger"
	"bidsevents/internal/metrics"
	"bidsevents/internal/parser/tsv"
	"bidsevents/internal/sidecar"
)

// Issue codes raised by the validator itself; the annotation validator adds
// its own.
const (
	CodeSidecarMalformed  = "SIDECAR_MALFORMED"
	CodeSidecarAmbiguous  = "SIDECAR_AMBIGUOUS"
	CodeFileUnreadable    = "FILE_UNREADABLE"
	CodeRowWidth          = "TSV_ROW_WIDTH"
	CodeResolutionFailure = "SIDECAR_RESOLUTION_FAILED"
)

// Issue is one finding for one file.
type Issue struct {
	File     string
	Severity annotation.Severity
	Code     string
	Message  string
	Line     int
	Column   string
}

// Dataset locates the files to validate.
type Dataset struct {
	Root string
	// Suffix selects data files and their sidecars, e.g. "events".
	Suffix string
	// Extensions of data files; defaults to [".tsv"].
	Extensions  []string
	ExcludeDirs []string
}

// Options wires collaborators. Zero values get defaults.
type Options struct {
	// Annotator defaults to annotation.Basic.
	Annotator annotation.Validator
	// Reader defaults to tsv.FileReader with default options.
	Reader tsv.Reader
	// Resolver defaults to a fresh sidecar.Resolver on the dataset root.
	Resolver *sidecar.Resolver
	// Workers bounds concurrent data-file checks; <= 0 means 4.
	Workers int
	Logger  *zap.SugaredLogger
}

// Validator validates one dataset.
type Validator struct {
	ds   Dataset
	opts Options
	log  *zap.SugaredLogger
}

// New returns a Validator for ds.
func New(ds Dataset, opts Options) *Validator {
	if ds.Suffix == "" {
		ds.Suffix = "events"
	}
	if len(ds.Extensions) == 0 {
		ds.Extensions = []string{".tsv"}
	}
	if opts.Annotator == nil {
		opts.Annotator = annotation.Basic{}
	}
	if opts.Reader == nil {
		opts.Reader = tsv.FileReader{}
	}
	if opts.Resolver == nil {
		opts.Resolver = sidecar.New(ds.Root, sidecar.WithLogger(opts.Logger))
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Validator{ds: ds, opts: opts, log: logger.Named(opts.Logger, "validator")}
}

// Validate runs both phases.
//
// checkForWarnings=false drops warning-severity issues from the result; it
// never hides errors.
//
// Errors:
//   - *SchemaVersionError if the descriptor is missing or its HEDVersion is
//     missing or unparseable. Nothing else is checked in that case.
//   - File discovery failure or ctx cancellation.
func (v *Validator) Validate(ctx context.Context, checkForWarnings bool) ([]Issue, error) {
	start := time.Now()
	issues, err := v.validate(ctx)
	metrics.RecordStep("validate", err, time.Since(start))
	if err != nil {
		return nil, err
	}

	if !checkForWarnings {
		kept := issues[:0]
		for _, is := range issues {
			if is.Severity != annotation.SeverityWarning {
				kept = append(kept, is)
			}
		}
		issues = kept
	}

	s := Summarize(issues)
	metrics.RecordIssues(string(annotation.SeverityError), s.Errors)
	metrics.RecordIssues(string(annotation.SeverityWarning), s.Warnings)
	v.log.Infow("validation finished", "issues", len(issues), "errors", s.Errors, "warnings", s.Warnings, "elapsed", time.Since(start))
	return issues, nil
}

func (v *Validator) validate(ctx context.Context) ([]Issue, error) {
	schemas, err := LoadSchemaVersions(v.ds.Root)
	if err != nil {
		return nil, err
	}
	v.log.Debugw("schema versions", "versions", schemas)

	docs, err := files.List(v.ds.Root, []string{sidecar.DocumentExt}, v.ds.Suffix, v.ds.ExcludeDirs)
	if err != nil {
		return nil, errors.Wrap(err, "list sidecars")
	}
	data, err := files.List(v.ds.Root, v.ds.Extensions, v.ds.Suffix, v.ds.ExcludeDirs)
	if err != nil {
		return nil, errors.Wrap(err, "list data files")
	}
	v.log.Infow("validating dataset", "root", v.ds.Root, "sidecars", len(docs), "files", len(data))

	var issues []Issue
	for _, p := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		issues = append(issues, v.checkSidecar(p, schemas)...)
	}

	perFile := make([][]Issue, len(data))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.opts.Workers)
	for i, p := range data {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perFile[i] = v.checkFile(gctx, p, schemas)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, fi := range perFile {
		issues = append(issues, fi...)
	}
	metrics.RecordFiles(metrics.FileValidated, len(data))
	return issues, nil
}

func (v *Validator) checkSidecar(path string, schemas []annotation.SchemaVersion) []Issue {
	rel := v.rel(path)
	doc, err := sidecar.ReadDocument(path)
	if err != nil {
		return []Issue{{File: rel, Severity: annotation.SeverityError, Code: CodeSidecarMalformed, Message: rootCause(err)}}
	}
	return fromAnnotation(rel, v.opts.Annotator.ValidateSidecar(doc, schemas))
}

func (v *Validator) checkFile(ctx context.Context, path string, schemas []annotation.SchemaVersion) []Issue {
	rel := v.rel(path)
	var out []Issue

	res, err := v.opts.Resolver.Resolve(path)
	if err != nil {
		return []Issue{{File: rel, Severity: annotation.SeverityError, Code: CodeResolutionFailure, Message: err.Error()}}
	}
	for _, a := range res.Ambiguities {
		out = append(out, Issue{File: rel, Severity: annotation.SeverityWarning, Code: CodeSidecarAmbiguous,
			Message: fmt.Sprintf("in %s, %s was used and %v ignored", a.Dir, a.Chosen, a.Others)})
	}

	tbl := &tsv.Table{}
	err = tsv.Stream(ctx, v.opts.Reader, path,
		func(cols []string) error {
			tbl.Columns = append([]string(nil), cols...)
			return nil
		},
		func(_ int, rec []string) error {
			tbl.Rows = append(tbl.Rows, append([]string(nil), rec...))
			return nil
		},
		func(line int, err error) {
			if line <= 1 {
				return
			}
			out = append(out, Issue{File: rel, Severity: annotation.SeverityError, Code: CodeRowWidth, Line: line, Message: err.Error()})
		},
	)
	if err != nil {
		if ctx.Err() != nil {
			return out
		}
		out = append(out, Issue{File: rel, Severity: annotation.SeverityError, Code: CodeFileUnreadable, Message: rootCause(err)})
		metrics.RecordFiles(metrics.FileFailed, 1)
		return out
	}

	found := v.opts.Annotator.ValidateFile(ctx, annotation.Input{
		File:    path,
		Columns: tbl.Columns,
		Rows:    tbl.Rows,
		Sidecar: res.Sidecar,
	}, schemas)
	annotation.SortIssues(found)
	return append(out, fromAnnotation(rel, found)...)
}

func (v *Validator) rel(path string) string {
	if r, err := filepath.Rel(v.ds.Root, path); err == nil {
		return filepath.ToSlash(r)
	}
	return path
}

func fromAnnotation(file string, in []annotation.Issue) []Issue {
	out := make([]Issue, len(in))
	for i, is := range in {
		out[i] = Issue{File: file, Severity: is.Severity, Code: is.Code, Message: is.Message, Line: is.Line, Column: is.Column}
	}
	return out
}

// rootCause returns the innermost error message.
func rootCause(err error) string { return errors.UnwrapAll(err).Error() }
