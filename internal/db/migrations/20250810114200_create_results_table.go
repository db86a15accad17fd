package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/inferbench/bench-server/internal/db/models"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewCreateTable().Model((*models.Result)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}

		if _, err := db.NewCreateIndex().Model((*models.Result)(nil)).
			Index("results_identity_idx").
			Column("identity").
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewDropTable().Model((*models.Result)(nil)).IfExists().Exec(ctx); err != nil {
			return err
		}
		return nil
	})
}
