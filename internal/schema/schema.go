// Package schema defines the relational column model a migration commits to:
// the FieldType variant, the generality lattice used to reconcile conflicting
// per-document types, and the immutable CollectionSchema produced by sampling.
//
// Design constraints:
//   - FieldType is a closed variant. Backends switch over Kind exhaustively.
//   - Merge must be commutative and associative so the committed schema does
//     not depend on document scan order.
package schema

import "fmt"

// Kind enumerates the closed set of column type families.
type Kind int

const (
	KindInvalid Kind = iota

	// Scalar chain, narrowest to widest. The ordering of these constants is
	// NOT the generality order; see generalityRank.
	KindBool
	KindInt64
	KindDecimal
	KindFloat64
	KindFixedString
	KindVarchar255
	KindVarcharMax
	KindJSONText

	// Families outside the scalar chain. They merge only with themselves;
	// any cross-family conflict widens to JSONText.
	KindDateTime
	KindObjectID
	KindBytes
)

// FieldType is one committed column type. Parameters are meaningful only for
// the kinds that carry them (Precision/Scale for Decimal, Length for
// FixedString and ObjectID).
type FieldType struct {
	Kind      Kind
	Length    int
	Precision int
	Scale     int
}

// Constructors. Backends and the inferencer always build FieldTypes through
// these so parameter defaults stay in one place.

func Bool() FieldType    { return FieldType{Kind: KindBool} }
func Int64() FieldType   { return FieldType{Kind: KindInt64} }
func Float64() FieldType { return FieldType{Kind: KindFloat64} }

// Decimal returns a fixed-precision numeric type. Precision/scale come from
// configuration; zero values are normalized to the 38/18 defaults.
func Decimal(precision, scale int) FieldType {
	if precision <= 0 {
		precision = DefaultDecimalPrecision
	}
	if scale < 0 {
		scale = DefaultDecimalScale
	}
	return FieldType{Kind: KindDecimal, Precision: precision, Scale: scale}
}

func DateTime() FieldType { return FieldType{Kind: KindDateTime} }

// ObjectID is a source identifier stored as a fixed-length hex string.
func ObjectID() FieldType { return FieldType{Kind: KindObjectID, Length: ObjectIDHexLen} }

func FixedString(n int) FieldType {
	if n <= 0 {
		n = 1
	}
	return FieldType{Kind: KindFixedString, Length: n}
}

func Varchar255() FieldType { return FieldType{Kind: KindVarchar255} }
func VarcharMax() FieldType { return FieldType{Kind: KindVarcharMax} }
func JSONText() FieldType   { return FieldType{Kind: KindJSONText} }
func Bytes() FieldType      { return FieldType{Kind: KindBytes} }

const (
	// DefaultDecimalPrecision/Scale match the widest numeric the migration
	// may need to hold (128-bit source decimals, >int64 integers).
	DefaultDecimalPrecision = 38
	DefaultDecimalScale     = 18

	// ObjectIDHexLen is the canonical hex string length of a source object
	// identifier.
	ObjectIDHexLen = 24
)

// IsValid reports whether t carries a usable kind.
func (t FieldType) IsValid() bool { return t.Kind != KindInvalid }

// String renders a stable, backend-neutral label used in logs and errors.
func (t FieldType) String() string {
	switch t.Kind {
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindDecimal:
		return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale)
	case KindFloat64:
		return "float64"
	case KindFixedString:
		return fmt.Sprintf("char(%d)", t.Length)
	case KindVarchar255:
		return "varchar(255)"
	case KindVarcharMax:
		return "varchar(max)"
	case KindJSONText:
		return "json"
	case KindDateTime:
		return "datetime"
	case KindObjectID:
		return fmt.Sprintf("objectid(%d)", t.Length)
	case KindBytes:
		return "bytes"
	default:
		return "invalid"
	}
}

// generalityRank places the scalar chain in widening order. Kinds absent from
// the map are outside the chain.
var generalityRank = map[Kind]int{
	KindBool:        1,
	KindInt64:       2,
	KindDecimal:     3,
	KindFloat64:     4,
	KindFixedString: 5,
	KindVarchar255:  6,
	KindVarcharMax:  7,
	KindJSONText:    8,
}

// Merge resolves two observed types into the narrowest type able to represent
// values of both.
//
// Rules:
//   - An invalid side yields the other side (lets callers fold without a
//     "first observation" special case).
//   - Same kind: keep it, widening parameters (max precision/scale/length).
//   - Both in the scalar chain: the more general wins.
//   - Anything else is a cross-family conflict and widens to JSONText.
//
// Merge is commutative and associative: the chain is a total order, parameter
// merges take maxima, and JSONText absorbs every conflict.
func Merge(a, b FieldType) FieldType {
	if !a.IsValid() {
		return b
	}
	if !b.IsValid() {
		return a
	}

	if a.Kind == b.Kind {
		return mergeSameKind(a, b)
	}

	ra, aChained := generalityRank[a.Kind]
	rb, bChained := generalityRank[b.Kind]
	if aChained && bChained {
		if ra >= rb {
			return a
		}
		return b
	}

	return JSONText()
}

func mergeSameKind(a, b FieldType) FieldType {
	switch a.Kind {
	case KindDecimal:
		return Decimal(maxInt(a.Precision, b.Precision), maxInt(a.Scale, b.Scale))
	case KindFixedString, KindObjectID:
		out := a
		out.Length = maxInt(a.Length, b.Length)
		return out
	default:
		return a
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Column is one committed column of a CollectionSchema.
type Column struct {
	Name     string
	Type     FieldType
	Nullable bool
}

// CollectionSchema is the ordered column set committed once per collection.
// Column names are unique and order is first-seen order across the sample,
// which keeps DDL stable across runs over the same data.
type CollectionSchema struct {
	// Collection is the source collection name (pre-normalization).
	Collection string
	Columns    []Column
}

// ColumnNames returns the column names in committed order.
func (s CollectionSchema) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Lookup returns the column with the given name, if present.
func (s CollectionSchema) Lookup(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}
