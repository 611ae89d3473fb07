// Package db applies the billing schema migrations with goose.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kevin07696/subscription-service/internal/db/migrations"
	"github.com/pressly/goose/v3"
)

const dialect = "postgres"

// Migrate runs a goose command (up, down, status, ...) against db using the
// embedded migrations
func Migrate(ctx context.Context, db *sql.DB, command string, args ...string) error {
	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.RunContext(ctx, command, db, ".", args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
