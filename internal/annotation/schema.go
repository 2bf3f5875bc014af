package annotation

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"bidsevents/internal/errors"
)

// SchemaVersion is one entry of a dataset's HEDVersion field:
// [prefix:][library_]MAJOR.MINOR.PATCH.
type SchemaVersion struct {
	Prefix  string
	Library string
	Version *semver.Version
}

// String renders the version in descriptor form.
func (s SchemaVersion) String() string {
	var b strings.Builder
	if s.Prefix != "" {
		b.WriteString(s.Prefix)
		b.WriteByte(':')
	}
	if s.Library != "" {
		b.WriteString(s.Library)
		b.WriteByte('_')
	}
	if s.Version != nil {
		b.WriteString(s.Version.String())
	}
	return b.String()
}

// ParseSchemaVersion parses one version string.
//
// Errors:
//   - Empty string, an invalid prefix or library name, or a version that is
//     not strict MAJOR.MINOR.PATCH semver.
func ParseSchemaVersion(s string) (SchemaVersion, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return SchemaVersion{}, errors.New("empty schema version")
	}
	var out SchemaVersion
	rest := raw
	if p, r, ok := strings.Cut(rest, ":"); ok {
		if !isWord(p) {
			return SchemaVersion{}, errors.Newf("schema version %q: invalid prefix %q", raw, p)
		}
		out.Prefix, rest = p, r
	}
	if i := strings.LastIndexByte(rest, '_'); i >= 0 {
		lib := rest[:i]
		if !isWord(lib) {
			return SchemaVersion{}, errors.Newf("schema version %q: invalid library %q", raw, lib)
		}
		out.Library, rest = lib, rest[i+1:]
	}
	v, err := semver.StrictNewVersion(rest)
	if err != nil {
		return SchemaVersion{}, errors.Wrapf(err, "schema version %q", raw)
	}
	out.Version = v
	return out, nil
}

// ParseSchemaVersions parses a HEDVersion value: a string or a list of
// strings. At most one entry may be without a prefix, and prefixes must be
// unique.
func ParseSchemaVersions(v any) ([]SchemaVersion, error) {
	var raw []string
	switch t := v.(type) {
	case string:
		raw = []string{t}
	case []any:
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, errors.Newf("schema version list entry %v is not a string", e)
			}
			raw = append(raw, s)
		}
	case []string:
		raw = t
	case nil:
		return nil, errors.New("schema version missing")
	default:
		return nil, errors.Newf("schema version has type %T, want string or list", v)
	}
	if len(raw) == 0 {
		return nil, errors.New("schema version list is empty")
	}

	out := make([]SchemaVersion, 0, len(raw))
	prefixes := map[string]bool{}
	for _, s := range raw {
		sv, err := ParseSchemaVersion(s)
		if err != nil {
			return nil, err
		}
		if prefixes[sv.Prefix] {
			if sv.Prefix == "" {
				return nil, errors.Newf("schema version %q: more than one unprefixed schema", s)
			}
			return nil, errors.Newf("schema version %q: duplicate prefix %q", s, sv.Prefix)
		}
		prefixes[sv.Prefix] = true
		out = append(out, sv)
	}
	return out, nil
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
