package migrations

import (
	"context"
	"fmt"

	"exam-delivery-service/internal/infra/sqlstore"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			for _, model := range sqlstore.Models() {
				if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
					return fmt.Errorf("create table: %w", err)
				}
			}
			return nil
		},
		func(ctx context.Context, db *bun.DB) error {
			models := sqlstore.Models()
			for i := len(models) - 1; i >= 0; i-- {
				if _, err := db.NewDropTable().Model(models[i]).IfExists().Exec(ctx); err != nil {
					return fmt.Errorf("drop table: %w", err)
				}
			}
			return nil
		},
	)
}
