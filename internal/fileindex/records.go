package fileindex

import (
	"context"
	"iter"

	"bidsevents/internal/parser/tsv"
)

// FileInfo is the row/column metadata of one indexed file.
type FileInfo struct {
	Key      string
	Path     string
	RowCount int
	Columns  []string
}

// Iter returns a lazy sequence of FileInfo in key order. Each step opens one
// file through r, counts its rows and closes it before yielding.
//
// The sequence is finite and restartable: ranging over it again re-reads the
// files. A file that cannot be read yields (FileInfo{Key, Path}, err) and
// iteration continues with the next key. Cancelling ctx ends the sequence
// with a final ctx.Err() element.
func (ix *Index) Iter(ctx context.Context, r tsv.Reader) iter.Seq2[FileInfo, error] {
	keys := ix.Keys()
	return func(yield func(FileInfo, error) bool) {
		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				yield(FileInfo{}, err)
				return
			}
			rec := ix.records[k]
			fi := FileInfo{Key: k, Path: rec.Path}
			err := tsv.Stream(ctx, r, rec.Path,
				func(cols []string) error {
					fi.Columns = append([]string(nil), cols...)
					return nil
				},
				func(int, []string) error {
					fi.RowCount++
					return nil
				},
				nil,
			)
			if err != nil {
				if !yield(FileInfo{Key: k, Path: rec.Path}, err) {
					return
				}
				continue
			}
			if !yield(fi, nil) {
				return
			}
		}
	}
}
