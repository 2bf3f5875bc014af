// Package sidecar resolves the effective metadata document of a data file
// by walking its ancestor directories.
//
// Starting at the dataset root and descending to the file's own directory,
// each level may contribute one document: a *.json file with the same suffix
// as the data file whose entities are a subset of the data file's entities.
// Documents are merged as they are found, so a document closer to the file
// overrides a farther one per key, and keys only the farther one defines are
// kept.
//
// The walk is an explicit state machine (ROOT, DESCENDING, MERGED) recorded
// step by step in Resolution.Trace.
package sidecar

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"bidsevents/internal/entity"
	"bidsevents/internal/errors"
	"bidsevents/internal/logger"
	pjson "bidsevents/internal/parser/json"
)

// DocumentExt is the extension of metadata documents.
const DocumentExt = ".json"

// State is a resolver step.
type State int

const (
	StateRoot State = iota
	StateDescending
	StateMerged
)

func (s State) String() string {
	switch s {
	case StateRoot:
		return "ROOT"
	case StateDescending:
		return "DESCENDING"
	case StateMerged:
		return "MERGED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Step is one trace entry. Dir is relative to the dataset root.
type Step struct {
	State State
	Dir   string
	// Document is the contributing document path, or "" if the level had
	// none or its document failed.
	Document string
	Err      error
}

// Ambiguity reports a level with more than one equally specific candidate.
// Chosen is the lexicographically first; Others were ignored.
type Ambiguity struct {
	Dir    string
	Chosen string
	Others []string
}

// MalformedDocumentError reports a document that could not be read as a
// JSON object.
type MalformedDocumentError struct {
	Path string
	Err  error
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed document %s: %v", e.Path, e.Err)
}

func (e *MalformedDocumentError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, errors.ErrMalformedDocument) match.
func (e *MalformedDocumentError) Is(target error) bool { return target == errors.ErrMalformedDocument }

// Resolution is the result for one data file.
type Resolution struct {
	File string
	// Sidecar is the effective document. It may be shared with other files
	// that have the same document chain and must not be modified.
	Sidecar *pjson.Object
	// Chain lists the merged documents, farthest first.
	Chain       []string
	Trace       []Step
	Errors      []error
	Ambiguities []Ambiguity
}

// Empty reports whether no document contributed.
func (r *Resolution) Empty() bool { return r.Sidecar.Len() == 0 }

type docResult struct {
	obj *pjson.Object
	err error
}

type merged struct {
	obj    *pjson.Object
	chain  []string
	errors []error
}

// Resolver resolves files under one dataset root. It is safe for concurrent
// use. Directory listings, parsed documents and merged chains are cached for
// the life of the Resolver.
type Resolver struct {
	root string
	log  *zap.SugaredLogger

	group singleflight.Group

	mu    sync.Mutex
	dirs  map[string][]string
	docs  map[string]docResult
	memo  map[string]*merged
	stats Stats
}

// Stats counts cache activity.
type Stats struct {
	Resolved  int
	ChainHits int
	DocsRead  int
	DirsRead  int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger; the package logger is used otherwise.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Resolver) { r.log = l }
}

// New returns a Resolver for the dataset at root.
func New(root string, opts ...Option) *Resolver {
	r := &Resolver{
		root: filepath.Clean(root),
		dirs: map[string][]string{},
		docs: map[string]docResult{},
		memo: map[string]*merged{},
	}
	for _, o := range opts {
		o(r)
	}
	r.log = logger.Named(r.log, "sidecar")
	return r
}

// Root returns the dataset root.
func (r *Resolver) Root() string { return r.root }

// Stats returns a snapshot of cache counters.
func (r *Resolver) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// ancestors returns the directories from root to dir, relative to root,
// root first ("." for the root itself).
func (r *Resolver) ancestors(file string) ([]string, error) {
	rel, err := filepath.Rel(r.root, filepath.Clean(file))
	if err != nil {
		return nil, errors.Wrapf(err, "sidecar: %s relative to %s", file, r.root)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, errors.Newf("sidecar: %s is outside dataset root %s", file, r.root)
	}
	dir := filepath.Dir(rel)
	out := []string{"."}
	if dir == "." {
		return out, nil
	}
	parts := strings.Split(dir, string(filepath.Separator))
	for i := range parts {
		out = append(out, filepath.Join(parts[:i+1]...))
	}
	return out, nil
}

// Resolve returns the effective sidecar of file, which must lie under the
// root (absolute, or relative to the working directory like root).
//
// A level whose document is malformed contributes nothing; the error is
// recorded in Resolution.Errors and Trace and the walk continues. A chain
// with no documents yields an empty sidecar.
//
// Errors:
//   - file is outside the root, or a directory on the chain cannot be
//     listed.
func (r *Resolver) Resolve(file string) (*Resolution, error) {
	levels, err := r.ancestors(file)
	if err != nil {
		return nil, err
	}
	name := entity.Split(file)
	res := &Resolution{File: file}

	// First pass: pick one document per level. Selection is cheap once
	// listings are cached; the chain it yields is the memo key.
	picks := make([]string, len(levels))
	for i, lvl := range levels {
		abs := filepath.Join(r.root, lvl)
		names, err := r.listDir(abs)
		if err != nil {
			return nil, err
		}
		chosen, others := selectDocument(names, name)
		if chosen != "" {
			picks[i] = filepath.Join(abs, chosen)
		}
		if len(others) > 0 {
			res.Ambiguities = append(res.Ambiguities, Ambiguity{Dir: lvl, Chosen: chosen, Others: others})
		}
	}

	chainKey := strings.Join(picks, "\x00")
	m, hit := r.cachedChain(chainKey)
	if !hit {
		m = r.mergeChain(picks)
		r.storeChain(chainKey, m)
	}

	// Second pass: the trace. It is rebuilt per file so memo hits still
	// report their own walk.
	state := StateRoot
	for i, lvl := range levels {
		st := Step{State: state, Dir: lvl}
		if p := picks[i]; p != "" {
			if d := r.loadDoc(p); d.err != nil {
				st.Err = d.err
			} else {
				st.Document = p
			}
		}
		res.Trace = append(res.Trace, st)
		state = StateDescending
	}
	res.Trace = append(res.Trace, Step{State: StateMerged, Dir: levels[len(levels)-1]})

	res.Sidecar = m.obj
	res.Chain = m.chain
	res.Errors = m.errors

	r.mu.Lock()
	r.stats.Resolved++
	if hit {
		r.stats.ChainHits++
	}
	r.mu.Unlock()

	for _, a := range res.Ambiguities {
		r.log.Debugw("ambiguous sidecar candidates", "file", file, "dir", a.Dir, "chosen", a.Chosen, "others", a.Others)
	}
	return res, nil
}

func (r *Resolver) mergeChain(picks []string) *merged {
	m := &merged{obj: pjson.NewObject()}
	for _, p := range picks {
		if p == "" {
			continue
		}
		d := r.loadDoc(p)
		if d.err != nil {
			m.errors = append(m.errors, d.err)
			r.log.Warnw("sidecar level skipped", "document", p, "error", d.err)
			continue
		}
		m.obj = Merge(m.obj, d.obj)
		m.chain = append(m.chain, p)
	}
	return m
}

func (r *Resolver) cachedChain(key string) (*merged, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memo[key]
	return m, ok
}

func (r *Resolver) storeChain(key string, m *merged) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.memo[key]; !ok {
		r.memo[key] = m
	}
}

// listDir returns the sorted regular file names of dir; a missing directory
// lists as empty.
func (r *Resolver) listDir(dir string) ([]string, error) {
	r.mu.Lock()
	names, ok := r.dirs[dir]
	r.mu.Unlock()
	if ok {
		return names, nil
	}

	v, err, _ := r.group.Do("dir:"+dir, func() (any, error) {
		entries, err := os.ReadDir(dir)
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "sidecar: list %s", dir)
		}
		var names []string
		for _, e := range entries {
			if e.Type().IsRegular() && strings.HasSuffix(e.Name(), DocumentExt) && !strings.HasPrefix(e.Name(), ".") {
				names = append(names, e.Name())
			}
		}
		slices.Sort(names)

		r.mu.Lock()
		r.dirs[dir] = names
		r.stats.DirsRead++
		r.mu.Unlock()
		return names, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (r *Resolver) loadDoc(path string) docResult {
	r.mu.Lock()
	d, ok := r.docs[path]
	r.mu.Unlock()
	if ok {
		return d
	}

	v, _, _ := r.group.Do("doc:"+path, func() (any, error) {
		obj, err := ReadDocument(path)
		d := docResult{obj: obj, err: err}
		r.mu.Lock()
		r.docs[path] = d
		r.stats.DocsRead++
		r.mu.Unlock()
		return d, nil
	})
	return v.(docResult)
}

// ReadDocument reads one metadata document.
//
// Errors:
//   - *MalformedDocumentError if the file cannot be read or is not a JSON
//     object.
func ReadDocument(path string) (*pjson.Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &MalformedDocumentError{Path: path, Err: err}
	}
	defer f.Close()

	obj, err := pjson.Decode(f)
	if err != nil {
		return nil, &MalformedDocumentError{Path: path, Err: err}
	}
	return obj, nil
}

// selectDocument picks the candidate for data file n among one directory's
// document names. The most specific candidate (most entities) wins; ties go
// to the lexicographically first name and the rest are returned as others.
func selectDocument(names []string, n entity.Name) (chosen string, others []string) {
	best := -1
	var tied []string
	for _, fn := range names {
		c := entity.Split(fn)
		if c.Ext != DocumentExt || c.Suffix != n.Suffix || n.Suffix == "" || !c.Matches(n) {
			continue
		}
		switch {
		case len(c.Pairs) > best:
			best = len(c.Pairs)
			tied = []string{fn}
		case len(c.Pairs) == best:
			tied = append(tied, fn)
		}
	}
	if len(tied) == 0 {
		return "", nil
	}
	// names is sorted, so tied is too.
	return tied[0], tied[1:]
}
