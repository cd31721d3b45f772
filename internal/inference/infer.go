// Package inference turns sampled schemaless documents into one committed
// relational schema.
//
// It has two halves that deliberately stay separate:
//   - Infer maps a single dynamic value to a candidate FieldType.
//   - Merger folds per-document observations into a CollectionSchema using
//     the generality lattice in internal/schema.
//
// Inference is type-seeking and best-effort: malformed or unrecognized values
// degrade to a text representation, they never fail the run. The
// failure-tolerant counterpart (coercing later documents into the committed
// schema) lives in internal/convert.
package inference

import (
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"mongo2sql/internal/schema"
)

// Options tune inference for one collection.
type Options struct {
	// DecimalPrecision/DecimalScale are applied to every Decimal candidate.
	// Zero values fall back to schema defaults (38/18).
	DecimalPrecision int
	DecimalScale     int
}

func (o Options) decimal() schema.FieldType {
	scale := o.DecimalScale
	if scale <= 0 {
		scale = schema.DefaultDecimalScale
	}
	return schema.Decimal(o.DecimalPrecision, scale)
}

// Infer maps one scalar or compound value to a candidate FieldType.
//
// A nil value casts no type vote and returns ok=false; it contributes only a
// nullability signal, which the Merger tracks separately.
//
// Numeric rules:
//   - signed integers always fit Int64
//   - unsigned values above MaxInt64 need Decimal(precision, 0)
//   - source 128-bit decimals carry configured precision/scale
//   - binary floats stay Float64
func Infer(v any, opts Options) (schema.FieldType, bool) {
	switch t := v.(type) {
	case nil:
		return schema.FieldType{}, false

	case bool:
		return schema.Bool(), true

	case int, int8, int16, int32, int64:
		return schema.Int64(), true

	case uint, uint8, uint16, uint32:
		return schema.Int64(), true

	case uint64:
		if t > math.MaxInt64 {
			return schema.Decimal(opts.DecimalPrecision, 0), true
		}
		return schema.Int64(), true

	case float32, float64:
		return schema.Float64(), true

	case bson.Decimal128:
		return opts.decimal(), true

	case time.Time, bson.DateTime:
		return schema.DateTime(), true

	case bson.ObjectID:
		return schema.ObjectID(), true

	case string:
		return stringType(len(t)), true

	case []byte:
		return schema.Bytes(), true

	case bson.Binary:
		return schema.Bytes(), true

	case bson.D, bson.M, bson.A, map[string]any, []any:
		return schema.JSONText(), true

	default:
		// Unknown driver types degrade to their string rendering.
		return stringType(len(fmt.Sprint(v))), true
	}
}

// stringType applies the length thresholds for string-family candidates:
// single characters stay fixed-width, short strings take the 255-class, and
// anything longer takes the unbounded class.
func stringType(n int) schema.FieldType {
	switch {
	case n <= 1:
		return schema.FixedString(1)
	case n <= 255:
		return schema.Varchar255()
	default:
		return schema.VarcharMax()
	}
}
