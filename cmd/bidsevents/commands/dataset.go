package commands

import (
	"context"
	"path/filepath"
	"time"

	"bidsevents/internal/fileindex"
	"bidsevents/internal/files"
	"bidsevents/internal/metrics"
	"bidsevents/internal/summary"
)

// buildIndex discovers the dataset's event files and indexes them. Skipped
// files are logged; with index.strict a duplicate key is an error.
func (a *app) buildIndex() (*fileindex.Index, *fileindex.BuildReport, error) {
	start := time.Now()
	ix, rep, err := a.buildIndexOnce()
	metrics.RecordStep("index", err, time.Since(start))
	return ix, rep, err
}

func (a *app) buildIndexOnce() (*fileindex.Index, *fileindex.BuildReport, error) {
	ds := a.cfg.Dataset
	paths, err := files.List(ds.Root, ds.Extensions, ds.Suffix, ds.ExcludeDirs)
	if err != nil {
		return nil, nil, err
	}
	a.log.Infow("files discovered", "root", ds.Root, "count", len(paths))

	ix, rep, err := fileindex.Build(paths, a.cfg.Index.Entities, fileindex.Options{Strict: a.cfg.Index.Strict})
	if rep != nil {
		for _, m := range rep.Malformed {
			a.log.Warnw("file not indexed", "error", m)
		}
		for _, d := range rep.Duplicates {
			a.log.Warnw("duplicate key", "key", d.Key, "path", d.Path, "existing", d.Existing)
		}
		metrics.RecordFiles(metrics.FileMalformed, len(rep.Malformed))
		metrics.RecordFiles(metrics.FileDuplicate, len(rep.Duplicates))
	}
	if err != nil {
		return nil, rep, err
	}
	metrics.RecordFiles(metrics.FileIndexed, ix.Len())
	return ix, rep, nil
}

// summarize aggregates every indexed file. Unreadable files are logged and
// left out.
func (a *app) summarize(ctx context.Context, ix *fileindex.Index) (*summary.Combined, error) {
	start := time.Now()
	byName := make(map[string]string, ix.Len())
	for _, r := range ix.Records() {
		byName[a.rel(r.Path)] = r.Path
	}

	sc := a.cfg.Summary
	c, err := summary.MakeCombined(ctx, a.reader(), byName, sc.SkipColumns, sc.ValueColumns, sc.Workers)
	metrics.RecordStep("summarize", err, time.Since(start))
	if err != nil {
		return nil, err
	}
	for _, f := range c.Failed {
		a.log.Warnw("file not summarized", "path", f.Path, "error", f.Err)
	}
	metrics.RecordFiles(metrics.FileSummarized, len(c.PerFile))
	metrics.RecordFiles(metrics.FileFailed, len(c.Failed))
	return c, nil
}

// rel returns path relative to the dataset root when possible.
func (a *app) rel(path string) string {
	r, err := filepath.Rel(a.cfg.Dataset.Root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(r)
}
