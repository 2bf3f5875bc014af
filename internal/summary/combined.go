package summary

import (
	"context"
	"maps"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"bidsevents/internal/parser/tsv"
)

// Combined is the output of MakeCombined.
type Combined struct {
	// Summary merges every file that could be read.
	Summary *DatasetSummary
	// PerFile maps file name to that file's own summary.
	PerFile map[string]*DatasetSummary
	// Failed lists files that could not be read, sorted by name.
	Failed []FileError
}

// MakeCombined builds one summary per file and their merge in a single scan.
//
// files maps a display name to a path read through r. Per-file summaries are
// computed by up to workers goroutines (workers <= 0 means GOMAXPROCS) and
// merged in name order, so the combined column order is reproducible. The
// merged content would be the same in any order.
//
// Errors:
//   - Only ctx cancellation; unreadable files are reported in Failed.
func MakeCombined(ctx context.Context, r tsv.Reader, files map[string]string, skip, value []string, workers int) (*Combined, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	names := slices.Sorted(maps.Keys(files))

	var (
		mu      sync.Mutex
		perFile = make(map[string]*DatasetSummary, len(files))
		failed  []FileError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, name := range names {
		path := files[name]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a := New(skip, value)
			err := a.UpdateStream(gctx, r, path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed = append(failed, FileError{Path: path, Err: err})
				return nil
			}
			perFile[name] = a.Freeze()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	agg := New(skip, value)
	for _, name := range names {
		s, ok := perFile[name]
		if !ok {
			continue
		}
		if err := agg.Merge(s); err != nil {
			return nil, err
		}
	}
	slices.SortFunc(failed, func(a, b FileError) int {
		switch {
		case a.Path < b.Path:
			return -1
		case a.Path > b.Path:
			return 1
		}
		return 0
	})
	return &Combined{Summary: agg.Freeze(), PerFile: perFile, Failed: failed}, nil
}
