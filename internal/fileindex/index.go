// Package fileindex maps composite entity keys to file records.
//
// An Index is built once from a file list and an entity tuple. Each record
// keeps the full entity map of its filename, so an index can later be
// partitioned by any entity, including ones not in the key tuple.
package fileindex

import (
	"fmt"
	"maps"
	"slices"

	"bidsevents/internal/entity"
	"bidsevents/internal/errors"
)

// Record is one indexed file.
type Record struct {
	Path     string
	Entities map[string]string
	Suffix   string
	Key      string
}

// DuplicateKeyError reports a file whose key is already held by another.
type DuplicateKeyError struct {
	Key      string
	Path     string
	Existing string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %q: %s collides with %s", e.Key, e.Path, e.Existing)
}

// Is lets errors.Is(err, errors.ErrDuplicateKey) match.
func (e *DuplicateKeyError) Is(target error) bool { return target == errors.ErrDuplicateKey }

// Options controls Build.
type Options struct {
	// Strict makes the first duplicate key a Build error. Otherwise the
	// first-seen file keeps the key and later ones are only reported.
	Strict bool
}

// BuildReport lists the paths Build did not index.
type BuildReport struct {
	// Malformed holds paths whose names have no entity segments, or none of
	// the tuple's entities.
	Malformed []error
	// Duplicates holds every losing file of a key collision.
	Duplicates []*DuplicateKeyError
}

// Clean reports whether every path was indexed.
func (r *BuildReport) Clean() bool {
	return len(r.Malformed) == 0 && len(r.Duplicates) == 0
}

// Index is key → Record with one record per key.
type Index struct {
	tuple   []string
	records map[string]*Record
}

func newIndex(tuple []string) *Index {
	return &Index{tuple: slices.Clone(tuple), records: map[string]*Record{}}
}

// Build parses every path and indexes it under its key for tuple.
//
// Edge cases:
//   - Paths are processed in the given order; first-seen wins a collision.
//   - A path listed more than once is indexed once and is not a collision.
//   - A name with no parseable entities, or with none of the tuple's
//     entities (empty key), is reported in Malformed and skipped.
//
// Errors:
//   - With opts.Strict, the first duplicate is returned as a
//     *DuplicateKeyError (errors.Is ErrDuplicateKey). The partial index and
//     report are still returned.
func Build(paths []string, tuple []string, opts Options) (*Index, *BuildReport, error) {
	if len(tuple) == 0 {
		return nil, nil, errors.New("fileindex: empty entity tuple")
	}
	ix := newIndex(tuple)
	rep := &BuildReport{}

	for _, p := range paths {
		n, err := entity.Parse(p)
		if err != nil {
			rep.Malformed = append(rep.Malformed, err)
			continue
		}
		key := n.Key(tuple)
		if key == "" {
			rep.Malformed = append(rep.Malformed, &entity.MalformedNameError{
				Path:   p,
				Reason: fmt.Sprintf("none of the key entities %v present", tuple),
			})
			continue
		}
		if prev, ok := ix.records[key]; ok {
			if prev.Path == p {
				continue
			}
			dup := &DuplicateKeyError{Key: key, Path: p, Existing: prev.Path}
			rep.Duplicates = append(rep.Duplicates, dup)
			if opts.Strict {
				return ix, rep, dup
			}
			continue
		}
		ix.records[key] = &Record{Path: p, Entities: n.Entities(), Suffix: n.Suffix, Key: key}
	}
	return ix, rep, nil
}

// Tuple returns the entity tuple keys were built from.
func (ix *Index) Tuple() []string { return slices.Clone(ix.tuple) }

// Len returns the number of records.
func (ix *Index) Len() int { return len(ix.records) }

// Get returns the record for key.
func (ix *Index) Get(key string) (*Record, bool) {
	r, ok := ix.records[key]
	return r, ok
}

// Keys returns all keys, sorted.
func (ix *Index) Keys() []string {
	return slices.Sorted(maps.Keys(ix.records))
}

// Records returns the records in key order.
func (ix *Index) Records() []*Record {
	keys := ix.Keys()
	out := make([]*Record, len(keys))
	for i, k := range keys {
		out[i] = ix.records[k]
	}
	return out
}

// Paths returns the record paths in key order.
func (ix *Index) Paths() []string {
	keys := ix.Keys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = ix.records[k].Path
	}
	return out
}

// SplitByEntity partitions the index by the value name takes in each
// record's filename. Records without that entity land in leftover. The union
// of all partition keys and leftover keys is the original key set; records
// are shared, not copied.
func (ix *Index) SplitByEntity(name string) (map[string]*Index, *Index) {
	parts := map[string]*Index{}
	leftover := newIndex(ix.tuple)
	for k, r := range ix.records {
		v, ok := r.Entities[name]
		if !ok {
			leftover.records[k] = r
			continue
		}
		p, ok := parts[v]
		if !ok {
			p = newIndex(ix.tuple)
			parts[v] = p
		}
		p.records[k] = r
	}
	return parts, leftover
}

// Merge returns the union of indexes built over the same tuple.
//
// Errors:
//   - A key present in more than one input with different paths is a
//     *DuplicateKeyError.
func Merge(indexes ...*Index) (*Index, error) {
	var out *Index
	for _, ix := range indexes {
		if ix == nil {
			continue
		}
		if out == nil {
			out = newIndex(ix.tuple)
		}
		for k, r := range ix.records {
			if prev, ok := out.records[k]; ok && prev.Path != r.Path {
				return nil, &DuplicateKeyError{Key: k, Path: r.Path, Existing: prev.Path}
			}
			out.records[k] = r
		}
	}
	if out == nil {
		return nil, errors.New("fileindex: nothing to merge")
	}
	return out, nil
}
