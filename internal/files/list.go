// Package files discovers dataset files on disk.
package files

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"bidsevents/internal/errors"
)

// List walks root and returns the paths of regular files whose extension is
// one of extensions and whose name ends with "_"+suffix before the
// extension. Directories named in excludeDirs are not descended into.
//
// An empty extensions slice accepts every extension. An empty suffix accepts
// every name. Hidden entries (leading '.') are skipped. Results are sorted so
// downstream indexes and issue lists are reproducible.
func List(root string, extensions []string, suffix string, excludeDirs []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(err, "stat dataset root %s", root)
	}
	if !info.IsDir() {
		return nil, errors.Newf("dataset root %s is not a directory", root)
	}

	var out []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || slices.Contains(excludeDirs, name)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(name, ".") {
			return nil
		}
		if Match(name, extensions, suffix) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk %s", root)
	}
	slices.Sort(out)
	return out, nil
}

// Match reports whether base name fits the extension and suffix filters.
// The extension is everything from the first '.'.
func Match(name string, extensions []string, suffix string) bool {
	stem, ext := name, ""
	if i := strings.IndexByte(name, '.'); i >= 0 {
		stem, ext = name[:i], name[i:]
	}
	if len(extensions) > 0 && !slices.Contains(extensions, ext) {
		return false
	}
	if suffix == "" {
		return true
	}
	return stem == suffix || strings.HasSuffix(stem, "_"+suffix)
}
