// Package storage defines the backend-agnostic interface to the relational
// target, the neutral table-definition types backends consume, and the
// factory registry through which backends self-register.
package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config is the minimal configuration needed to open a target repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is
//     backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Repository is the backend-agnostic interface to the relational target.
//
// IMPORTANT: This interface is intentionally minimal and focused on what the
// migration needs: existence check, DDL, batch insert, and the single-row
// insert used for batch-failure isolation. Each backend implements these in
// its own idiomatic way (pgx pools, database/sql, identifier quoting, chunked
// parameter limits).
type Repository interface {
	// Close releases backend resources. Call once at shutdown.
	Close()

	// TableExists reports whether the named table exists in the target.
	TableExists(ctx context.Context, name string) (bool, error)

	// CreateTable creates the table from the definition. The generated DDL
	// is deterministic: the same definition always produces the same SQL.
	CreateTable(ctx context.Context, def TableDef) error

	// DropTable removes the table. Dropping a missing table is not an error.
	DropTable(ctx context.Context, name string) error

	// InsertBatch inserts all rows as one unit. Backends with statement
	// parameter limits chunk internally but wrap the chunks in a single
	// transaction so the batch still commits or fails as a whole.
	InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) error

	// InsertRow inserts a single row. Used by the batch writer to isolate
	// failing rows after a batch-level failure.
	InsertRow(ctx context.Context, table string, columns []string, row []any) error
}

// ---- backend factories ----

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	factoryMu sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// Call Register from an init() function in a backend package. Registering
// the same kind twice panics; this is intentional to fail fast and avoid
// ambiguous backend selection.
func Register(kind string, f factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns (a factory
//     failure is a target connectivity error and aborts the run).
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing target kind")
	}

	factoryMu.RLock()
	f := factories[cfg.Kind]
	factoryMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported target kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
