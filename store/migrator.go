package store

import (
	"context"
	"database/sql"
	"embed"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Schema files live at migration/{driver}/LATEST.sql. Every statement is
// idempotent, so the schema is applied on each start.

//go:embed migration
var migrationFS embed.FS

// LatestSchemaFileName is the name of the full schema file for a driver.
const LatestSchemaFileName = "LATEST.sql"

// ApplySchema executes the latest schema of the given SQL driver against db.
func ApplySchema(ctx context.Context, db *sql.DB, driver string) error {
	path := filepath.ToSlash(filepath.Join("migration", driver, LatestSchemaFileName))
	buf, err := migrationFS.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read schema %s", path)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(string(buf)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "failed to execute schema statement: %s", stmt)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit schema")
	}

	slog.Debug("schema applied", "driver", driver)
	return nil
}

func splitStatements(schema string) []string {
	var stmts []string
	for _, part := range strings.Split(schema, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" && !strings.HasPrefix(trimmed, "--") {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			stmts = append(stmts, strings.Join(lines, "\n"))
		}
	}
	return stmts
}
