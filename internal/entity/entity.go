// Package entity parses structured filenames and builds composite keys.
//
// A structured filename is a run of `name-value` segments joined by `_` and
// terminated by a `_suffix.ext` tail:
//
//	sub-01_ses-2_task-faces_run-1_events.tsv
//	└──────── entities ─────────┘ └sfx┘└ext┘
//
// Keys are built from an ordered entity tuple: for each tuple name that
// occurs in the filename, the `name-value` pair is emitted in tuple order and
// the pairs are joined with `_`. Tuple names absent from the filename are
// skipped, so keys built from the same tuple may differ in length.
//
// Everything here is pure: no I/O, no global state.
package entity

import (
	"fmt"
	"path/filepath"
	"strings"

	"bidsevents/internal/errors"
)

// Pair is one `name-value` filename segment.
type Pair struct {
	Name  string
	Value string
}

// String renders the pair as it appears in a filename.
func (p Pair) String() string { return p.Name + "-" + p.Value }

// Name is a parsed structured filename.
type Name struct {
	// Pairs holds the entity segments in filename order.
	Pairs []Pair
	// Suffix is the final segment without a '-', e.g. "events"; may be empty.
	Suffix string
	// Ext is everything from the first '.' of the base name, e.g. ".tsv".
	Ext string
}

// Get returns the value of the first occurrence of entity name.
func (n Name) Get(name string) (string, bool) {
	for _, p := range n.Pairs {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Entities returns the pairs as a map. The first occurrence of a repeated
// name wins, matching Get.
func (n Name) Entities() map[string]string {
	out := make(map[string]string, len(n.Pairs))
	for _, p := range n.Pairs {
		if _, ok := out[p.Name]; !ok {
			out[p.Name] = p.Value
		}
	}
	return out
}

// MalformedNameError reports a filename with no parseable entity segment.
type MalformedNameError struct {
	Path   string
	Reason string
}

func (e *MalformedNameError) Error() string {
	return fmt.Sprintf("malformed name %q: %s", e.Path, e.Reason)
}

// Is lets errors.Is(err, errors.ErrMalformedName) match.
func (e *MalformedNameError) Is(target error) bool { return target == errors.ErrMalformedName }

// Parse splits the base name of path into entity pairs, suffix and
// extension.
//
// Edge cases:
//   - Directory components are ignored; only the base name is parsed.
//   - A segment without '-' in a non-final position is not an entity and is
//     ignored (e.g. stray "bold" in "sub-01_bold_run-1_events.tsv").
//   - A segment with an empty name or value ("-x", "sub-") is ignored.
//   - If the final segment contains '-', it is an entity and Suffix is "".
//
// Errors:
//   - Returns *MalformedNameError if no entity segment is parseable.
func Parse(path string) (Name, error) {
	n := Split(path)
	if len(n.Pairs) == 0 {
		return Name{}, &MalformedNameError{Path: path, Reason: "no name-value entity segments"}
	}
	return n, nil
}

// Split is Parse without the entity requirement. Sidecars such as a
// root-level "events.json" legitimately carry a suffix and no entities.
func Split(path string) Name {
	base := filepath.Base(path)

	stem, ext := base, ""
	if i := strings.IndexByte(base, '.'); i >= 0 {
		stem, ext = base[:i], base[i:]
	}

	segs := strings.Split(stem, "_")
	n := Name{Ext: ext}

	last := len(segs) - 1
	if last >= 0 && !strings.Contains(segs[last], "-") {
		n.Suffix = segs[last]
		segs = segs[:last]
	}

	n.Pairs = make([]Pair, 0, len(segs))
	for _, s := range segs {
		name, value, ok := strings.Cut(s, "-")
		if !ok || name == "" || value == "" {
			continue
		}
		n.Pairs = append(n.Pairs, Pair{Name: name, Value: value})
	}
	return n
}

// Key joins the tuple entities present in n, in tuple order.
func (n Name) Key(tuple []string) string {
	var b strings.Builder
	for _, name := range tuple {
		v, ok := n.Get(name)
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('_')
		}
		b.WriteString(name)
		b.WriteByte('-')
		b.WriteString(v)
	}
	return b.String()
}

// BuildKey parses filename and returns its composite key for tuple.
//
// Entity order in the filename does not matter; each tuple name is searched
// for. The key may be empty when the filename has entities but none from the
// tuple; callers that need a non-empty key must check.
//
// Errors:
//   - Returns *MalformedNameError if the filename has no entity segments.
func BuildKey(filename string, tuple []string) (string, error) {
	n, err := Parse(filename)
	if err != nil {
		return "", err
	}
	return n.Key(tuple), nil
}

// Matches reports whether every pair of n also appears, with the same value,
// in other. An empty pair set matches everything.
func (n Name) Matches(other Name) bool {
	for _, p := range n.Pairs {
		v, ok := other.Get(p.Name)
		if !ok || v != p.Value {
			return false
		}
	}
	return true
}
