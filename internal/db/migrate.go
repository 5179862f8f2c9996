package db

import (
	"context"
	"embed"
	"fmt"
	"strings"
)

//go:embed schema/*.sql
var schemaFS embed.FS

func schemaFor(dialect Dialect) (string, error) {
	name := "schema/postgres.sql"
	if dialect == SQLite {
		name = "schema/sqlite.sql"
	}

	contents, err := schemaFS.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(contents), nil
}

func splitStatements(script string) []string {
	parts := strings.Split(script, ";\n")
	statements := make([]string, 0, len(parts))
	for _, part := range parts {
		statement := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), ";"))
		if statement != "" {
			statements = append(statements, statement)
		}
	}
	return statements
}

// Migrate creates every table and index that does not exist yet.
func (db *Database) Migrate(ctx context.Context) error {
	script, err := schemaFor(db.dialect)
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}

	for _, statement := range splitStatements(script) {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("migrate: %w\n%s", err, statement)
		}
	}
	return nil
}
