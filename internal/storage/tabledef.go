package storage

// The neutral create-table definition lives in this package so the table
// manager and every backend can consume it without circular imports.

import (
	"mongo2sql/internal/schema"
)

// ColumnDef is one target column. SourceField keeps the original document
// field name so the migrator can report which field a column came from even
// after identifier normalization.
type ColumnDef struct {
	Name        string
	SourceField string
	Type        schema.FieldType
	Nullable    bool
}

// TableDef is a complete target table definition. Column order matches the
// CollectionSchema exactly; this ordering is part of the compatibility
// contract of the generated DDL.
type TableDef struct {
	Name    string
	Columns []ColumnDef
}

// ColumnNames returns the target column names in definition order.
func (d TableDef) ColumnNames() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// DefFromSchema builds the table definition for a committed collection
// schema. The table name is the normalized collection name; column names are
// normalized identifiers, deduplicated deterministically when two source
// fields normalize to the same identifier.
func DefFromSchema(cs schema.CollectionSchema) TableDef {
	def := TableDef{Name: NormalizeIdent(cs.Collection)}

	taken := make(map[string]bool, len(cs.Columns))
	for _, col := range cs.Columns {
		name := uniqueIdent(NormalizeIdent(col.Name), taken)
		taken[name] = true

		def.Columns = append(def.Columns, ColumnDef{
			Name:        name,
			SourceField: col.Name,
			Type:        col.Type,
			Nullable:    col.Nullable,
		})
	}
	return def
}
