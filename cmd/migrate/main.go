// Migrate command: applies SQL migrations for the audit store, serialized
// across replicas with a Postgres advisory lock.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/mtls-credential-provisioner/cmd/flags"
	"github.com/ruteri/mtls-credential-provisioner/migratelock"
)

var appFlags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:  "database-url",
		Usage: "Postgres connection string, defaults to DATABASE_URL",
	},
	&cli.StringFlag{
		Name:  "migrations-dir",
		Value: "migrations",
		Usage: "directory with .sql migration files, applied in lexical order",
	},
	&cli.StringFlag{
		Name:  "scope",
		Value: "audit",
		Usage: "migration lock scope",
	},
	&cli.Int64Flag{
		Name:  "lock-wait-seconds",
		Value: 30,
		Usage: "how long to wait for the migration lock",
	},
	flags.LogJsonFlag,
	flags.LogDebugFlag,
	flags.LogUidFlag,
	flags.LogServiceFlagFn("migrate"),
}

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "migrate",
		Usage: "Apply audit store migrations under an advisory lock",
		Flags: appFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			databaseURL := cCtx.String("database-url")
			if databaseURL == "" {
				databaseURL = os.Getenv("DATABASE_URL")
			}
			if databaseURL == "" {
				return fmt.Errorf("database-url flag or DATABASE_URL is required")
			}

			ctx := context.Background()
			pool, err := pgxpool.New(ctx, databaseURL)
			if err != nil {
				logger.Error("Could not connect to database", "err", err)
				return err
			}
			defer pool.Close()

			scope := cCtx.String("scope")
			wait := time.Duration(cCtx.Int64("lock-wait-seconds")) * time.Second
			dir := cCtx.String("migrations-dir")

			err = migratelock.WithLock(ctx, logger, pool, scope, wait, func(ctx context.Context) error {
				return applyMigrations(ctx, logger, pool, dir)
			})
			if err != nil {
				logger.Error("Migration failed", "err", err)
				return err
			}

			logger.Info("Migrations applied")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// applyMigrations runs every pending .sql file in lexical order, recording
// applied versions in schema_migrations.
func applyMigrations(ctx context.Context, logger *slog.Logger, pool *pgxpool.Pool, dir string) error {
	_, err := pool.Exec(ctx, `create table if not exists schema_migrations (
		version text primary key,
		applied_at timestamptz not null default now()
	)`)
	if err != nil {
		return fmt.Errorf("could not ensure schema_migrations: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("could not read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		var applied bool
		err := pool.QueryRow(ctx,
			"select exists(select 1 from schema_migrations where version = $1)", name).Scan(&applied)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		sql, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, string(sql)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migration %s failed: %w", name, err)
		}
		if _, err := tx.Exec(ctx,
			"insert into schema_migrations (version) values ($1)", name); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}

		logger.Info("Applied migration", "version", name)
	}
	return nil
}
