package inference

import (
	"mongo2sql/internal/document"
	"mongo2sql/internal/schema"
)

// idField is the source identifier field. It is pinned to the first column of
// every committed schema, matching how downstream consumers expect migrated
// tables to look.
const idField = "_id"

// Merger folds per-document field observations into one CollectionSchema.
//
// The fold is order-insensitive in outcome: the final type for a field
// depends only on the set of observed types (schema.Merge is commutative and
// associative), so repeated runs over the same sample commit the same schema.
// Column order is first-seen order, which is deterministic for a fixed sample
// order.
//
// Merger is not safe for concurrent use; each collection gets its own.
type Merger struct {
	collection string
	opts       Options

	order   []string
	types   map[string]schema.FieldType
	present map[string]int
	nulls   map[string]bool
	docs    int
}

// NewMerger returns a Merger for one collection's sample pass.
func NewMerger(collection string, opts Options) *Merger {
	return &Merger{
		collection: collection,
		opts:       opts,
		types:      make(map[string]schema.FieldType),
		present:    make(map[string]int),
		nulls:      make(map[string]bool),
	}
}

// Observe folds one sampled document into the running schema.
func (m *Merger) Observe(doc document.Doc) {
	m.docs++

	for _, f := range doc {
		if m.present[f.Name] == 0 {
			m.order = append(m.order, f.Name)
		}
		m.present[f.Name]++

		ft, ok := Infer(f.Value, m.opts)
		if !ok {
			// Null value: nullability signal only.
			m.nulls[f.Name] = true
			continue
		}
		m.types[f.Name] = schema.Merge(m.types[f.Name], ft)
	}
}

// Docs returns the number of documents observed so far.
func (m *Merger) Docs() int { return m.docs }

// Schema commits the merged schema.
//
// Rules applied at commit time:
//   - a field with no value evidence (all null across the sample) defaults to
//     varchar(255) nullable
//   - a field absent in at least one document, or ever seen null, is nullable
//   - _id is pinned first; if the sample never produced one (empty
//     collection), a nullable identifier column is synthesized so the target
//     table always exists with at least its key column
func (m *Merger) Schema() schema.CollectionSchema {
	cols := make([]schema.Column, 0, len(m.order)+1)

	if _, ok := m.present[idField]; !ok {
		cols = append(cols, schema.Column{
			Name:     idField,
			Type:     schema.ObjectID(),
			Nullable: true,
		})
	}

	ordered := make([]string, 0, len(m.order))
	for _, name := range m.order {
		if name == idField {
			ordered = append([]string{idField}, ordered...)
			continue
		}
		ordered = append(ordered, name)
	}

	for _, name := range ordered {
		ft := m.types[name]
		if !ft.IsValid() {
			ft = schema.Varchar255()
		}
		nullable := m.present[name] < m.docs || m.nulls[name]
		cols = append(cols, schema.Column{Name: name, Type: ft, Nullable: nullable})
	}

	return schema.CollectionSchema{Collection: m.collection, Columns: cols}
}
