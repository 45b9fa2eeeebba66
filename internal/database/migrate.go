package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// Statements splits the embedded schema into individual statements.  The
// MySQL driver rejects multi-statement Exec calls unless multiStatements is
// enabled, which we do not want on the application DSN.
func Statements() []string { return splitStatements(schemaSQL) }

// splitStatements drops "--" comment lines first so a ';' inside a comment
// never ends a statement.
func splitStatements(src string) []string {
	var lines []string
	for _, line := range strings.Split(src, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}
	var out []string
	for _, raw := range strings.Split(strings.Join(lines, "\n"), ";") {
		if stmt := strings.TrimSpace(raw); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// Migrate applies the embedded schema.  Every statement is idempotent, so
// running it against an existing database is a no-op.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range Statements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
