// Package sqlite implements storage.Repository on modernc.org/sqlite, the
// pure-Go driver. Handy for local runs and integration tests that want a
// real SQL target without a server.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"mongo2sql/internal/schema"
	"mongo2sql/internal/storage"
)

// SQLite's default variable limit is 999; chunks stay under it.
const maxParamsPerStmt = 900

// Repo implements storage.Repository for SQLite.
type Repo struct {
	db *sql.DB
}

// New opens (or creates) the database file named by the DSN.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
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

func (r *Repo) TableExists(ctx context.Context, name string) (bool, error) {
	const q = `SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?`
	var n int
	if err := r.db.QueryRowContext(ctx, q, name).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repo) CreateTable(ctx context.Context, def storage.TableDef) error {
	stmt, err := buildCreateSQL(def)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlite: create table %s: %w", def.Name, err)
	}
	return nil
}

func (r *Repo) DropTable(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqliteIdent(name)); err != nil {
		return fmt.Errorf("sqlite: drop table %s: %w", name, err)
	}
	return nil
}

// InsertBatch inserts all rows in one transaction, chunked under the
// bound-variable limit.
func (r *Repo) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin batch: %w", err)
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
			return fmt.Errorf("sqlite: insert batch into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit batch into %s: %w", table, err)
	}
	return nil
}

func (r *Repo) InsertRow(ctx context.Context, table string, columns []string, row []any) error {
	stmt, args := buildInsertSQL(table, columns, [][]any{row})
	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("sqlite: insert row into %s: %w", table, err)
	}
	return nil
}

func buildCreateSQL(def storage.TableDef) (string, error) {
	if strings.TrimSpace(def.Name) == "" {
		return "", fmt.Errorf("sqlite: table name is empty")
	}
	if len(def.Columns) == 0 {
		return "", fmt.Errorf("sqlite: table %s has no columns", def.Name)
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(sqliteIdent(def.Name))
	b.WriteString(" (")

	for i, c := range def.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqliteIdent(c.Name))
		b.WriteString(" ")
		b.WriteString(sqliteType(c.Type))
		if !c.Nullable {
			b.WriteString(" NOT NULL")
		}
	}

	b.WriteString(")")
	return b.String(), nil
}

// sqliteType maps onto SQLite's affinity system. Every kind has a home, so
// unlike the other backends this cannot fail.
func sqliteType(ft schema.FieldType) string {
	switch ft.Kind {
	case schema.KindBool, schema.KindInt64:
		return "INTEGER"
	case schema.KindDecimal:
		return "NUMERIC"
	case schema.KindFloat64:
		return "REAL"
	case schema.KindBytes:
		return "BLOB"
	default:
		return "TEXT"
	}
}

func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqliteIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqliteIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
			args = append(args, row[j])
		}
		b.WriteString(")")
	}

	return b.String(), args
}

func sqliteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
