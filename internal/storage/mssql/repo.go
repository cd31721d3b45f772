// Package mssql implements storage.Repository for SQL Server.
//
// SQL Server caps a single statement at 2100 bound parameters, so batch
// inserts are chunked and wrapped in one transaction to keep the batch
// atomic from the caller's point of view.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"mongo2sql/internal/schema"
	"mongo2sql/internal/storage"
)

// Keeps each chunk safely under the 2100-parameter statement limit.
const maxParamsPerStmt = 2000

// dbConn is the subset of *sql.DB the repository uses.
type dbConn interface {
	PingContext(ctx context.Context) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	Close() error
}

// Repo implements storage.Repository for SQL Server.
type Repo struct {
	db dbConn
}

// New opens a connection via the go-mssqldb driver and verifies connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() {
	r.db.Close()
}

// TableExists reports whether the table is visible via OBJECT_ID.
func (r *Repo) TableExists(ctx context.Context, name string) (bool, error) {
	const q = `SELECT CASE WHEN OBJECT_ID(@p1, 'U') IS NULL THEN 0 ELSE 1 END`
	var n int
	if err := r.db.QueryRowContext(ctx, q, name).Scan(&n); err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *Repo) CreateTable(ctx context.Context, def storage.TableDef) error {
	stmt, err := buildCreateSQL(def)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("mssql: create table %s: %w", def.Name, err)
	}
	return nil
}

// DropTable drops the table if it exists. The existence guard binds the name
// as a parameter, same as TableExists; only the quoted identifier is spliced.
func (r *Repo) DropTable(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, buildDropSQL(name), name); err != nil {
		return fmt.Errorf("mssql: drop table %s: %w", name, err)
	}
	return nil
}

func buildDropSQL(name string) string {
	return "IF OBJECT_ID(@p1, 'U') IS NOT NULL DROP TABLE " + mssqlIdent(name)
}

// InsertBatch inserts all rows inside one transaction, chunked to respect
// the parameter limit. A failure in any chunk rolls back the whole batch.
func (r *Repo) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mssql: begin batch: %w", err)
	}

	chunk := maxParamsPerStmt / len(columns)
	if chunk < 1 {
		chunk = 1
	}
	for start := 0; start < len(rows); start += chunk {
		end := start + chunk
		if end > len(rows) {
			end = len(rows)
		}
		stmt, args := buildInsertSQL(table, columns, rows[start:end])
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("mssql: insert batch into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mssql: commit batch into %s: %w", table, err)
	}
	return nil
}

func (r *Repo) InsertRow(ctx context.Context, table string, columns []string, row []any) error {
	stmt, args := buildInsertSQL(table, columns, [][]any{row})
	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("mssql: insert row into %s: %w", table, err)
	}
	return nil
}

func buildCreateSQL(def storage.TableDef) (string, error) {
	if strings.TrimSpace(def.Name) == "" {
		return "", fmt.Errorf("mssql: table name is empty")
	}
	if len(def.Columns) == 0 {
		return "", fmt.Errorf("mssql: table %s has no columns", def.Name)
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(mssqlIdent(def.Name))
	b.WriteString(" (")

	for i, c := range def.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		t, err := mssqlType(c.Type)
		if err != nil {
			return "", fmt.Errorf("mssql: column %s: %w", c.Name, err)
		}
		b.WriteString(mssqlIdent(c.Name))
		b.WriteString(" ")
		b.WriteString(t)
		if !c.Nullable {
			b.WriteString(" NOT NULL")
		}
	}

	b.WriteString(")")
	return b.String(), nil
}

func mssqlType(ft schema.FieldType) (string, error) {
	switch ft.Kind {
	case schema.KindBool:
		return "BIT", nil
	case schema.KindInt64:
		return "BIGINT", nil
	case schema.KindDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", ft.Precision, ft.Scale), nil
	case schema.KindFloat64:
		return "FLOAT", nil
	case schema.KindDateTime:
		return "DATETIME2", nil
	case schema.KindObjectID, schema.KindFixedString:
		return fmt.Sprintf("NCHAR(%d)", ft.Length), nil
	case schema.KindVarchar255:
		return "NVARCHAR(255)", nil
	case schema.KindVarcharMax, schema.KindJSONText:
		return "NVARCHAR(MAX)", nil
	case schema.KindBytes:
		return "VARBINARY(MAX)", nil
	default:
		return "", fmt.Errorf("unsupported field type %s", ft)
	}
}

// buildInsertSQL renders INSERT ... VALUES with @pN placeholders numbered
// sequentially across rows.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("@p")
			b.WriteString(strconv.Itoa(p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	return b.String(), args
}

// mssqlIdent returns a bracket-quoted identifier, escaping closing brackets.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}
