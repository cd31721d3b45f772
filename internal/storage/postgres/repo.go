// Package postgres implements storage.Repository for PostgreSQL on top of a
// pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"mongo2sql/internal/schema"
	"mongo2sql/internal/storage"
)

// Repo implements storage.Repository for Postgres.
type Repo struct {
	pool *pgxpool.Pool
}

// New opens a pgx pool and verifies connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// TableExists checks the information schema for the table under the
// connection's current schema.
func (r *Repo) TableExists(ctx context.Context, name string) (bool, error) {
	const q = `SELECT EXISTS (
		SELECT 1 FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = $1
	)`
	var exists bool
	if err := r.pool.QueryRow(ctx, q, name).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// CreateTable executes the deterministic CREATE TABLE for the definition.
func (r *Repo) CreateTable(ctx context.Context, def storage.TableDef) error {
	sql, err := buildCreateSQL(def)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("postgres: create table %s: %w", def.Name, err)
	}
	return nil
}

// DropTable drops the table if it exists.
func (r *Repo) DropTable(ctx context.Context, name string) error {
	if _, err := r.pool.Exec(ctx, "DROP TABLE IF EXISTS "+pgIdent(name)); err != nil {
		return fmt.Errorf("postgres: drop table %s: %w", name, err)
	}
	return nil
}

// InsertBatch inserts all rows in a single multi-VALUES statement. One
// statement means one implicit transaction: the batch commits or fails as a
// unit, which is exactly what the batch writer's fallback path needs.
func (r *Repo) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	sql, args := buildInsertSQL(table, columns, rows)
	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("postgres: insert batch into %s: %w", table, err)
	}
	return nil
}

// InsertRow inserts one row; used to isolate failures after a batch rejection.
func (r *Repo) InsertRow(ctx context.Context, table string, columns []string, row []any) error {
	sql, args := buildInsertSQL(table, columns, [][]any{row})
	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("postgres: insert row into %s: %w", table, err)
	}
	return nil
}

// buildCreateSQL renders CREATE TABLE for a definition. The output is
// deterministic: the same definition produces byte-identical SQL.
func buildCreateSQL(def storage.TableDef) (string, error) {
	if strings.TrimSpace(def.Name) == "" {
		return "", fmt.Errorf("postgres: table name is empty")
	}
	if len(def.Columns) == 0 {
		return "", fmt.Errorf("postgres: table %s has no columns", def.Name)
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(pgIdent(def.Name))
	b.WriteString(" (")

	for i, c := range def.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		t, err := pgType(c.Type)
		if err != nil {
			return "", fmt.Errorf("postgres: column %s: %w", c.Name, err)
		}
		b.WriteString(pgIdent(c.Name))
		b.WriteString(" ")
		b.WriteString(t)
		if !c.Nullable {
			b.WriteString(" NOT NULL")
		}
	}

	b.WriteString(")")
	return b.String(), nil
}

// pgType maps a committed FieldType onto the Postgres type system.
func pgType(ft schema.FieldType) (string, error) {
	switch ft.Kind {
	case schema.KindBool:
		return "boolean", nil
	case schema.KindInt64:
		return "bigint", nil
	case schema.KindDecimal:
		return fmt.Sprintf("numeric(%d,%d)", ft.Precision, ft.Scale), nil
	case schema.KindFloat64:
		return "double precision", nil
	case schema.KindDateTime:
		return "timestamptz", nil
	case schema.KindObjectID, schema.KindFixedString:
		return fmt.Sprintf("char(%d)", ft.Length), nil
	case schema.KindVarchar255:
		return "varchar(255)", nil
	case schema.KindVarcharMax:
		return "text", nil
	case schema.KindJSONText:
		return "jsonb", nil
	case schema.KindBytes:
		return "bytea", nil
	default:
		return "", fmt.Errorf("unsupported field type %s", ft)
	}
}

// buildInsertSQL constructs one INSERT ... VALUES statement and its args.
// Placeholder numbering is sequential across rows ($1..$n).
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
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
			b.WriteString("$")
			b.WriteString(strconv.Itoa(p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	return b.String(), args
}

// pgIdent returns a double-quoted identifier, escaping embedded quotes.
func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
