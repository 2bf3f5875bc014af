// Package template synthesizes an annotation sidecar skeleton from a
// dataset summary.
package template

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	pjson "bidsevents/internal/parser/json"
	"bidsevents/internal/summary"
)

// NotAvailable is the missing-value marker; it never gets a level entry.
const NotAvailable = "n/a"

const placeholder = "#"

// Options customizes placeholder text. Zero values use the defaults below.
type Options struct {
	// Description is a format with one %s for the column name.
	Description string
	// Level is a format with %s for the value and %s for the column.
	Level string
	// HED is a format with %s for the column and %s for the value ("#" for
	// continuous columns).
	HED string
}

func (o Options) withDefaults() Options {
	if o.Description == "" {
		o.Description = "Description for %s"
	}
	if o.Level == "" {
		o.Level = "Here describe column value %s of column %s"
	}
	if o.HED == "" {
		o.HED = "(Label/%s, ID/%s)"
	}
	return o
}

// Document is a sidecar: column name → column entry, in column order.
type Document struct {
	obj *pjson.Object
}

// FromObject wraps a decoded sidecar.
func FromObject(o *pjson.Object) *Document {
	if o == nil {
		o = pjson.NewObject()
	}
	return &Document{obj: o}
}

// Object returns the underlying ordered object.
func (d *Document) Object() *pjson.Object { return d.obj }

// Columns returns column names in document order.
func (d *Document) Columns() []string { return d.obj.Keys() }

// Column returns the entry for name.
func (d *Document) Column(name string) (*pjson.Object, bool) {
	v, ok := d.obj.Get(name)
	if !ok {
		return nil, false
	}
	o, ok := v.(*pjson.Object)
	return o, ok
}

// Extract builds the template for s.
//
// Categorical columns get a Description, a HED entry per value and a Levels
// entry per value, values in lexicographic order. Continuous columns get a
// Description and one wildcard HED string. Columns keep the summary's
// first-seen order. The n/a marker and empty values are left out; a
// categorical column with only those values still gets its Description.
// A value containing the "#" placeholder gets a Levels entry but no HED
// entry, since categorical HED strings cannot carry a placeholder; it is
// left for manual annotation.
func Extract(s *summary.DatasetSummary, opts Options) *Document {
	opts = opts.withDefaults()
	doc := pjson.NewObject()

	for _, col := range s.Columns() {
		cs, _ := s.Column(col)
		entry := pjson.NewObject()
		entry.Set("Description", fmt.Sprintf(opts.Description, col))

		switch c := cs.(type) {
		case *summary.Continuous:
			entry.Set("HED", fmt.Sprintf(opts.HED, col, placeholder))
		case *summary.Categorical:
			hed := pjson.NewObject()
			levels := pjson.NewObject()
			for _, v := range c.SortedValues() {
				if v == NotAvailable || v == "" {
					continue
				}
				if !strings.Contains(v, placeholder) {
					hed.Set(v, fmt.Sprintf(opts.HED, col, v))
				}
				levels.Set(v, fmt.Sprintf(opts.Level, v, col))
			}
			entry.Set("HED", hed)
			entry.Set("Levels", levels)
		}
		doc.Set(col, entry)
	}
	return &Document{obj: doc}
}

// MarshalJSON writes the document in column order.
func (d *Document) MarshalJSON() ([]byte, error) { return d.obj.MarshalJSON() }

// MarshalYAML writes the document in column order.
func (d *Document) MarshalYAML() (any, error) { return ToYAMLNode(d.obj), nil }

// WriteJSON writes indented JSON.
func (d *Document) WriteJSON(w io.Writer) error { return pjson.Encode(w, d.obj) }

// WriteYAML writes YAML with two-space indentation.
func (d *Document) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ToYAMLNode(d.obj)); err != nil {
		return err
	}
	return enc.Close()
}
