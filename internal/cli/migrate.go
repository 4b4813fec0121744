package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"tweet-quiz-service/internal/config"
	"tweet-quiz-service/internal/infra/postgres"
	pgmigrations "tweet-quiz-service/internal/infra/postgres/migrations"
)

// NewMigrateCmd applies database migrations and optionally seeds the content table.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			if err := runMigrationsWithConfig(cmd.Context(), cfg, logger); err != nil {
				return err
			}
			if seed {
				return seedContent(cmd.Context(), cfg, logger)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "replace quiz_items with the configured content set")
	return cmd
}

func openBun(cfg config.Config) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	db := openBun(cfg)
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		logger.Info("database is up to date")
		return nil
	}
	logger.Info("migrations applied", slog.String("group", group.String()))
	return nil
}

func seedContent(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	items, err := loadContent(cfg)
	if err != nil {
		return err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.NewItemStore(pool).ReplaceItems(ctx, items); err != nil {
		return err
	}
	logger.Info("content seeded", slog.Int("items", len(items)))
	return nil
}
