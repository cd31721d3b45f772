package storage

import (
	"context"
	"fmt"
)

// Ensure brings the target table into the state the migration needs:
//
//   - recreate=true and the table exists: drop it, then create fresh.
//   - table missing: create it.
//   - table exists, not recreating: leave it untouched. No column
//     reconciliation is attempted; drift between an existing table and a
//     freshly inferred schema is deliberately not auto-repaired.
//
// Any failure here is fatal for the collection (never for the whole run);
// callers skip to the next collection.
func Ensure(ctx context.Context, repo Repository, def TableDef, recreate bool) error {
	exists, err := repo.TableExists(ctx, def.Name)
	if err != nil {
		return fmt.Errorf("check table %s: %w", def.Name, err)
	}

	if exists {
		if !recreate {
			return nil
		}
		if err := repo.DropTable(ctx, def.Name); err != nil {
			return fmt.Errorf("drop table %s: %w", def.Name, err)
		}
	}

	if err := repo.CreateTable(ctx, def); err != nil {
		return fmt.Errorf("create table %s: %w", def.Name, err)
	}
	return nil
}
