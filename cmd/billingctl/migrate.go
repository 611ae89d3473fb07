package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kevin07696/subscription-service/internal/db"
)

var migrateDatabaseURL string

var migrateCmd = &cobra.Command{
	Use:   "migrate [command] [args...]",
	Short: "Apply the postgres schema migrations",
	Long: `Run a goose command (up, down, status, version, ...) against the
postgres store. Only DATABASE_URL is read; the rest of the config is ignored.

Examples:
  billingctl migrate up
  billingctl migrate status`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		dsn := migrateDatabaseURL
		if dsn == "" {
			dsn = os.Getenv("DATABASE_URL")
		}
		if dsn == "" {
			return errors.New("DATABASE_URL is required")
		}

		conn, err := sql.Open("pgx", dsn)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer conn.Close()

		ctx := cmd.Context()
		if err := conn.PingContext(ctx); err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		return db.Migrate(ctx, conn, args[0], args[1:]...)
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDatabaseURL, "database-url", "", "postgres connection URL (defaults to $DATABASE_URL)")
}
