package cli

import (
	"context"
	"database/sql"
	"fmt"

	"exam-delivery-service/internal/config"
	"exam-delivery-service/internal/infra/sqlstore"
	"exam-delivery-service/internal/infra/sqlstore/migrations"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runMigrations(cmd.Context(), cfg)
		},
	}
}

func runMigrations(ctx context.Context, cfg config.Config) error {
	var db *bun.DB
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		if cfg.Postgres.URL == "" {
			return fmt.Errorf("postgres url not configured")
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db = bun.NewDB(sqldb, pgdialect.New())
	case config.DriverSQLite:
		var err error
		db, err = sqlstore.Open(ctx, sqlstore.DriverSQLite, cfg.SQLite.Path)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage driver %q has no migrations", cfg.Storage.Driver)
	}
	defer db.Close()

	return migrations.Apply(ctx, db)
}
