// Package migrations holds the paywall schema as embedded SQL for bun/migrate.
// Statements use unqualified table names; point search_path at the target
// schema when it is not public.
package migrations

import (
	"embed"

	"github.com/uptrace/bun/migrate"
)

//go:embed *.sql
var migrationFS embed.FS

// Migrations is the bun/migrate registry for the paywall tables.
var Migrations = migrate.NewMigrations()

func init() {
	if err := Migrations.Discover(migrationFS); err != nil {
		panic(err)
	}
}
