package mssql

import (
	"reflect"
	"testing"

	"mongo2sql/internal/schema"
	"mongo2sql/internal/storage"
)

func testDef() storage.TableDef {
	return storage.TableDef{
		Name: "orders",
		Columns: []storage.ColumnDef{
			{Name: "_id", Type: schema.ObjectID()},
			{Name: "active", Type: schema.Bool(), Nullable: true},
			{Name: "total", Type: schema.Decimal(38, 18), Nullable: true},
			{Name: "payload", Type: schema.JSONText(), Nullable: true},
		},
	}
}

func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	got, err := buildCreateSQL(testDef())
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	want := `CREATE TABLE [orders] ([_id] NCHAR(24) NOT NULL, [active] BIT, [total] DECIMAL(38,18), [payload] NVARCHAR(MAX))`
	if got != want {
		t.Fatalf("DDL mismatch:\n got: %s\nwant: %s", got, want)
	}
}

func TestMSSQLType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ft   schema.FieldType
		want string
	}{
		{schema.Bool(), "BIT"},
		{schema.Int64(), "BIGINT"},
		{schema.Decimal(20, 4), "DECIMAL(20,4)"},
		{schema.Float64(), "FLOAT"},
		{schema.DateTime(), "DATETIME2"},
		{schema.ObjectID(), "NCHAR(24)"},
		{schema.FixedString(1), "NCHAR(1)"},
		{schema.Varchar255(), "NVARCHAR(255)"},
		{schema.VarcharMax(), "NVARCHAR(MAX)"},
		{schema.JSONText(), "NVARCHAR(MAX)"},
		{schema.Bytes(), "VARBINARY(MAX)"},
	}
	for _, tc := range tests {
		got, err := mssqlType(tc.ft)
		if err != nil {
			t.Fatalf("mssqlType(%s): %v", tc.ft, err)
		}
		if got != tc.want {
			t.Fatalf("mssqlType(%s)=%q, want %q", tc.ft, got, tc.want)
		}
	}

	if _, err := mssqlType(schema.FieldType{}); err == nil {
		t.Fatalf("expected error for invalid kind")
	}
}

func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	sql, args := buildInsertSQL("orders", []string{"_id", "active"}, [][]any{
		{"a", true},
		{"b", false},
	})

	want := `INSERT INTO [orders] ([_id], [active]) VALUES (@p1, @p2), (@p3, @p4)`
	if sql != want {
		t.Fatalf("SQL mismatch:\n got: %s\nwant: %s", sql, want)
	}
	wantArgs := []any{"a", true, "b", false}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Fatalf("args=%v, want %v", args, wantArgs)
	}
}

func TestBuildDropSQL(t *testing.T) {
	t.Parallel()

	want := `IF OBJECT_ID(@p1, 'U') IS NOT NULL DROP TABLE [orders]`
	if got := buildDropSQL("orders"); got != want {
		t.Fatalf("got:  %s\nwant: %s", got, want)
	}

	// The existence guard takes the raw name as a bound parameter; a hostile
	// name only appears bracket-escaped in the identifier position.
	want = `IF OBJECT_ID(@p1, 'U') IS NOT NULL DROP TABLE [we]]ird]`
	if got := buildDropSQL("we]ird"); got != want {
		t.Fatalf("got:  %s\nwant: %s", got, want)
	}
}

func TestMSSQLIdent_EscapesBrackets(t *testing.T) {
	t.Parallel()

	if got := mssqlIdent("we]ird"); got != "[we]]ird]" {
		t.Fatalf("mssqlIdent=%s", got)
	}
}

func TestChunkSizing(t *testing.T) {
	t.Parallel()

	// 4 columns: 2000/4 = 500 rows per statement, under the 2100 cap.
	cols := 4
	chunk := maxParamsPerStmt / cols
	if chunk*cols > 2100 {
		t.Fatalf("chunk of %d rows with %d columns exceeds the parameter cap", chunk, cols)
	}
}
