package config

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Options is a loosely typed option bag for parsers and readers.
//
// Values arrive either from Go literals (tests, defaults) or from decoded
// config files, where numbers are float64 and lists are []any. The typed
// getters below accept both shapes and fall back to the given default on a
// missing key or an unusable value; they never fail.
type Options map[string]any

// Any returns the raw value for key, or nil.
func (o Options) Any(key string) any {
	if o == nil {
		return nil
	}
	return o[key]
}

// String returns key as a string.
func (o Options) String(key, def string) string {
	switch v := o.Any(key).(type) {
	case string:
		return v
	case nil:
		return def
	default:
		return fmt.Sprint(v)
	}
}

// Bool returns key as a bool. Strings are parsed with strconv.ParseBool.
func (o Options) Bool(key string, def bool) bool {
	switch v := o.Any(key).(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

// Int returns key as an int.
func (o Options) Int(key string, def int) int {
	switch v := o.Any(key).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}

// Rune returns the first rune of a string option. The escape "\t" is
// accepted so tab delimiters can be written in JSON/YAML config files.
func (o Options) Rune(key string, def rune) rune {
	switch v := o.Any(key).(type) {
	case rune:
		return v
	case string:
		if v == `\t` {
			return '\t'
		}
		r, size := utf8.DecodeRuneInString(v)
		if size == 0 || r == utf8.RuneError {
			return def
		}
		return r
	default:
		return def
	}
}

// StringSlice returns key as []string. A comma-separated string is split.
func (o Options) StringSlice(key string) []string {
	switch v := o.Any(key).(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return nil
	}
}

// StringMap returns key as map[string]string. Non-string values are skipped.
func (o Options) StringMap(key string) map[string]string {
	switch v := o.Any(key).(type) {
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, e := range v {
			if s, ok := e.(string); ok {
				out[k] = s
			}
		}
		return out
	default:
		return map[string]string{}
	}
}
