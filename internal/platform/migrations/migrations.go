// Package migrations embeds and applies the indexer's relational schema at
// startup, per spec.md §4.5 ("migrations are embedded and applied at
// startup").
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
)

//go:embed *.sql
var files embed.FS

// Apply executes every embedded .sql file against db, in filename order.
// Each file is expected to be idempotent (CREATE TABLE IF NOT EXISTS,
// CREATE INDEX IF NOT EXISTS) so re-running Apply on an already-migrated
// database is a no-op.
func Apply(ctx context.Context, db *sql.DB) error {
	entries, err := files.ReadDir(".")
	if err != nil {
		return fmt.Errorf("migrations: read embedded directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		contents, err := files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("migrations: read %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(contents)); err != nil {
			return fmt.Errorf("migrations: apply %s: %w", name, err)
		}
	}
	return nil
}
