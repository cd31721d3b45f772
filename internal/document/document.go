// Package document models one schemaless source record as an ordered list of
// dynamically typed fields. Order matters: the schema merger derives column
// order from the first time a field name is seen, so documents must preserve
// the field order the source delivered.
package document

// Field is one key/value pair of a document. Value holds whatever dynamic
// type the source driver decoded (nil, bool, int32/int64, float64, string,
// []byte, time-like values, identifier values, nested maps and arrays).
type Field struct {
	Name  string
	Value any
}

// Doc is a read-only view of one source document.
type Doc []Field

// Get returns the value for name and whether the field is present. A present
// field with a nil value is distinct from an absent field: present-nil votes
// for nullability, absent marks the column nullable.
func (d Doc) Get(name string) (any, bool) {
	for _, f := range d {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Has reports whether the field is present, regardless of value.
func (d Doc) Has(name string) bool {
	_, ok := d.Get(name)
	return ok
}

// FromMap builds a Doc from an unordered map. Intended for tests; map
// iteration order is not stable, so production sources should construct Doc
// directly from their ordered wire form.
func FromMap(m map[string]any, order []string) Doc {
	out := make(Doc, 0, len(m))
	for _, k := range order {
		if v, ok := m[k]; ok {
			out = append(out, Field{Name: k, Value: v})
		}
	}
	return out
}
