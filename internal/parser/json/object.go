// Package json reads and writes JSON metadata documents with key order
// preserved.
//
// Sidecar documents are hand-edited and read by humans; column order in a
// document (and in anything merged or generated from it) should follow the
// order the author wrote, which map[string]any loses. Decoding is done on
// the token stream so each object's keys are captured as they appear.
//
// Decoded values are one of: nil, bool, string, json.Number, []any, *Object.
package json

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"bidsevents/internal/errors"
)

// Object is a JSON object with insertion-ordered keys.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{values: map[string]any{}}
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys returns the keys in insertion order. The slice is a copy.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return append([]string(nil), o.keys...)
}

// Get returns the value for key.
func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Set stores v under key. A new key is appended; an existing key keeps its
// position.
func (o *Object) Set(key string, v any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Clone returns a deep copy.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	out := &Object{keys: append([]string(nil), o.keys...), values: make(map[string]any, len(o.values))}
	for k, v := range o.values {
		out.values[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case *Object:
		return t.Clone()
	case []any:
		cp := make([]any, len(t))
		for i := range t {
			cp[i] = cloneValue(t[i])
		}
		return cp
	default:
		return v
	}
}

// MarshalJSON writes keys in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		b.Write(kb)
		b.WriteByte(':')
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", k, err)
		}
		b.Write(vb)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// DuplicateKeyError reports a key repeated within one JSON object.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string { return fmt.Sprintf("duplicate object key %q", e.Key) }

// Decode reads a single JSON object from r.
//
// Errors:
//   - The root value is not an object.
//   - Syntax errors, and a repeated key within any object.
//   - Trailing data after the root object.
func Decode(r io.Reader) (*Object, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New("json: empty document")
		}
		return nil, errors.Wrap(err, "json: read first token")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.Newf("json: root must be an object, got %v", tok)
	}

	obj, err := decodeObject(dec)
	if err != nil {
		return nil, err
	}

	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("json: trailing data after root object")
	}
	return obj, nil
}

// DecodeBytes is Decode over a byte slice.
func DecodeBytes(b []byte) (*Object, error) {
	return Decode(bytes.NewReader(b))
}

// decodeObject reads key/value pairs after an opening '{'.
func decodeObject(dec *json.Decoder) (*Object, error) {
	obj := NewObject()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "json: read key")
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.Newf("json: expected string key, got %v", tok)
		}
		if _, dup := obj.values[key]; dup {
			return nil, &DuplicateKeyError{Key: key}
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, errors.Wrapf(err, "key %q", key)
		}
		obj.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, errors.Wrap(err, "json: read '}'")
	}
	return obj, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(err, "json: read value")
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			arr := []any{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, errors.Wrap(err, "json: read ']'")
			}
			return arr, nil
		default:
			return nil, errors.Newf("json: unexpected delimiter %v", t)
		}
	default:
		// string, json.Number, bool, nil
		return t, nil
	}
}

// Encode writes v as indented JSON with a trailing newline. Objects keep
// their key order.
func Encode(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}
