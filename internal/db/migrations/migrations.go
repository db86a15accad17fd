package migrations

import (
	"fmt"

	"github.com/uptrace/bun/migrate"

	"github.com/inferbench/bench-server/internal/config"
)

var Migrations = migrate.NewMigrations()

// InitMigrations discovers the package directory so create-go writes new
// migration files next to the existing ones. Skipped in production where the
// source tree is not around.
func InitMigrations() error {
	if config.IsLoaded() && config.GetConfig().Environment != "prod" {
		if err := Migrations.DiscoverCaller(); err != nil {
			fmt.Println("Error discovering caller: ", err)
			return err
		}
	}

	return nil
}
