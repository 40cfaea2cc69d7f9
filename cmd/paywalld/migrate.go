package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/PaulFidika/paywallkit/config"
	migrations "github.com/PaulFidika/paywallkit/migrations/postgres"
	"github.com/PaulFidika/paywallkit/redemption"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/migrate"
)

func runMigrate(ctx context.Context, cfg config.Config, log logrus.FieldLogger, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	down := fs.Bool("down", false, "roll back the last migration group")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	sqldb := stdlib.OpenDBFromPool(pool)
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	m := migrate.NewMigrator(db, migrations.Migrations)
	if err := m.Init(ctx); err != nil {
		return err
	}
	if err := m.Lock(ctx); err != nil {
		return err
	}
	defer m.Unlock(ctx) //nolint:errcheck

	if *down {
		group, err := m.Rollback(ctx)
		if err != nil {
			return err
		}
		log.WithField("group", group.String()).Info("rolled back")
		return nil
	}

	group, err := m.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Info("paywall schema up to date")
	} else {
		log.WithField("group", group.String()).Info("migrated")
	}

	rm, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return err
	}
	res, err := rm.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("river migrations: %w", err)
	}
	log.WithField("versions", len(res.Versions)).Info("river schema up to date")
	return nil
}

func genCodes(ctx context.Context, cfg config.Config, log logrus.FieldLogger, args []string) error {
	fs := flag.NewFlagSet("gen-codes", flag.ExitOnError)
	n := fs.Int("n", 10, "number of codes to issue")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *n <= 0 || *n > 10000 {
		return fmt.Errorf("-n must be between 1 and 10000")
	}

	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	codes, err := redemption.NewService(pool, cfg.Database.Schema, log).IssueCodes(ctx, *n)
	if err != nil {
		return err
	}
	for _, c := range codes {
		fmt.Println(c)
	}
	log.WithField("count", len(codes)).Info("codes issued")
	return nil
}
