package inference

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"mongo2sql/internal/schema"
)

func TestInfer_Scalars(t *testing.T) {
	t.Parallel()

	oid, err := bson.ObjectIDFromHex("65f2a1b2c3d4e5f601234567")
	require.NoError(t, err)
	dec, err := bson.ParseDecimal128("12.34")
	require.NoError(t, err)

	tests := []struct {
		name string
		in   any
		want schema.FieldType
	}{
		{"bool", true, schema.Bool()},
		{"int", 42, schema.Int64()},
		{"int32", int32(7), schema.Int64()},
		{"int64", int64(-1), schema.Int64()},
		{"uint32", uint32(7), schema.Int64()},
		{"uint64_in_range", uint64(7), schema.Int64()},
		{"uint64_above_maxint64", uint64(math.MaxInt64) + 1, schema.Decimal(38, 0)},
		{"float64", 2.5, schema.Float64()},
		{"float32", float32(2.5), schema.Float64()},
		{"decimal128", dec, schema.Decimal(38, 18)},
		{"time", time.Now(), schema.DateTime()},
		{"bson_datetime", bson.NewDateTimeFromTime(time.Now()), schema.DateTime()},
		{"objectid", oid, schema.ObjectID()},
		{"single_char", "x", schema.FixedString(1)},
		{"empty_string", "", schema.FixedString(1)},
		{"short_string", "hello", schema.Varchar255()},
		{"boundary_255", strings.Repeat("a", 255), schema.Varchar255()},
		{"long_string", strings.Repeat("a", 256), schema.VarcharMax()},
		{"bytes", []byte{1, 2}, schema.Bytes()},
		{"bson_binary", bson.Binary{Data: []byte{1}}, schema.Bytes()},
		{"bson_d", bson.D{{Key: "a", Value: 1}}, schema.JSONText()},
		{"bson_m", bson.M{"a": 1}, schema.JSONText()},
		{"bson_a", bson.A{1, 2}, schema.JSONText()},
		{"map", map[string]any{"a": 1}, schema.JSONText()},
		{"slice", []any{1, "x"}, schema.JSONText()},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Infer(tc.in, Options{})
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestInfer_NilCastsNoVote(t *testing.T) {
	t.Parallel()

	_, ok := Infer(nil, Options{})
	assert.False(t, ok)
}

func TestInfer_DecimalOptions(t *testing.T) {
	t.Parallel()

	dec, err := bson.ParseDecimal128("1.5")
	require.NoError(t, err)

	got, ok := Infer(dec, Options{DecimalPrecision: 20, DecimalScale: 4})
	require.True(t, ok)
	assert.Equal(t, schema.Decimal(20, 4), got)
}
