// Package convert turns source documents into rows aligned with a committed
// CollectionSchema.
//
// Conversion is the failure-tolerant counterpart of inference: the schema is
// fixed once per collection, but any later document may still violate it. A
// value that cannot be coerced to its column's committed type degrades to its
// text rendering instead of failing the row. Whether the target store accepts
// that text is the batch writer's problem (row-level isolation), not ours.
package convert

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"mongo2sql/internal/document"
	"mongo2sql/internal/schema"
)

// Policy selects what happens when a value does not fit its committed column
// type.
type Policy int

const (
	// PolicyFallback stores the value's text rendering (default).
	PolicyFallback Policy = iota
	// PolicyReject fails the row with a MismatchError so the caller can log
	// the full original value for manual reconciliation.
	PolicyReject
)

// Options tune conversion for one collection.
type Options struct {
	Policy Policy
}

// MismatchError reports a value that violated its committed column type under
// PolicyReject.
type MismatchError struct {
	Field string
	Want  schema.FieldType
	Value any
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("field %q: value %v does not fit committed type %s", e.Field, e.Value, e.Want)
}

// Row converts one document into a value slice aligned 1:1 with the schema's
// columns. Absent fields and explicit nulls both become nil.
//
// Under PolicyFallback, Row never fails. Under PolicyReject it returns a
// *MismatchError for the first non-coercible value.
func Row(doc document.Doc, cs schema.CollectionSchema, opts Options) ([]any, error) {
	out := make([]any, len(cs.Columns))

	for i, col := range cs.Columns {
		v, present := doc.Get(col.Name)
		if !present || v == nil {
			out[i] = nil
			continue
		}

		cv, ok := coerce(v, col.Type)
		if ok {
			out[i] = cv
			continue
		}

		if opts.Policy == PolicyReject {
			return nil, &MismatchError{Field: col.Name, Want: col.Type, Value: v}
		}
		out[i] = textFallback(v)
	}

	return out, nil
}

// coerce attempts a native conversion of v into the committed column type.
// It returns ok=false when no lossless-enough conversion exists; the caller
// decides between text fallback and rejection.
func coerce(v any, ft schema.FieldType) (any, bool) {
	switch ft.Kind {
	case schema.KindBool:
		b, ok := v.(bool)
		return b, ok

	case schema.KindInt64:
		return coerceInt64(v)

	case schema.KindDecimal:
		return coerceDecimal(v)

	case schema.KindFloat64:
		return coerceFloat64(v)

	case schema.KindDateTime:
		return coerceDateTime(v)

	case schema.KindObjectID:
		switch t := v.(type) {
		case bson.ObjectID:
			return t.Hex(), true
		case string:
			if len(t) <= ft.Length {
				return t, true
			}
			return nil, false
		default:
			return nil, false
		}

	case schema.KindFixedString, schema.KindVarchar255, schema.KindVarcharMax:
		s, ok := stringify(v)
		return s, ok

	case schema.KindJSONText:
		s, err := CanonicalJSON(v)
		if err != nil {
			return nil, false
		}
		return s, true

	case schema.KindBytes:
		switch t := v.(type) {
		case []byte:
			return t, true
		case bson.Binary:
			return t.Data, true
		case string:
			return []byte(t), true
		default:
			return nil, false
		}

	default:
		return nil, false
	}
}

func coerceInt64(v any) (any, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint:
		return int64(t), uint64(t) <= math.MaxInt64
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		if t > math.MaxInt64 {
			return nil, false
		}
		return int64(t), true
	case float32:
		return coerceInt64(float64(t))
	case float64:
		if t == math.Trunc(t) && t >= math.MinInt64 && t <= math.MaxInt64 {
			return int64(t), true
		}
		return nil, false
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	default:
		return nil, false
	}
}

// coerceDecimal passes numerics through in whatever form the target driver
// binds most faithfully: integers natively, wide values as their exact
// decimal string.
func coerceDecimal(v any) (any, bool) {
	switch t := v.(type) {
	case bson.Decimal128:
		return t.String(), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		return v, true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case string:
		if _, err := strconv.ParseFloat(t, 64); err != nil {
			return nil, false
		}
		return t, true
	default:
		return nil, false
	}
}

func coerceFloat64(v any) (any, bool) {
	switch t := v.(type) {
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case bson.Decimal128:
		f, err := strconv.ParseFloat(t.String(), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return nil, false
	}
}

func coerceDateTime(v any) (any, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case bson.DateTime:
		return t.Time().UTC(), true
	case string:
		ts, err := time.Parse(time.RFC3339, t)
		return ts, err == nil
	default:
		return nil, false
	}
}

// stringify renders a scalar as the string a text-family column stores.
// Compound values are not scalars; they coerce only via CanonicalJSON.
func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32), true
	case bson.Decimal128:
		return t.String(), true
	case bson.ObjectID:
		return t.Hex(), true
	case bson.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano), true
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), true
	case []byte:
		return string(t), true
	default:
		return "", false
	}
}

// textFallback is the last-resort rendering used under PolicyFallback. It
// always produces something: scalars via stringify, everything else via
// canonical JSON, and as a final resort fmt.
func textFallback(v any) string {
	if s, ok := stringify(v); ok {
		return s
	}
	if s, err := CanonicalJSON(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}

// CanonicalJSON serializes a value to deterministic JSON text: source
// document order is dropped in favor of sorted object keys, identifier and
// time values take their canonical string forms. Two structurally equal
// values always serialize identically, which keeps repeated migrations
// byte-stable.
func CanonicalJSON(v any) (string, error) {
	b, err := json.Marshal(jsonValue(v))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// jsonValue rewrites driver-specific types into plain JSON-marshalable Go
// values. encoding/json sorts map keys, which provides the canonical form.
func jsonValue(v any) any {
	switch t := v.(type) {
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = jsonValue(e.Value)
		}
		return m
	case bson.M:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = jsonValue(val)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = jsonValue(val)
		}
		return m
	case bson.A:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = jsonValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = jsonValue(val)
		}
		return out
	case bson.ObjectID:
		return t.Hex()
	case bson.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case bson.Decimal128:
		return t.String()
	case bson.Binary:
		return t.Data
	default:
		return v
	}
}
