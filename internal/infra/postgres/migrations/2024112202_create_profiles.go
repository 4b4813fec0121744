package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS profiles (
					id           UUID PRIMARY KEY,
					provider_id  TEXT NOT NULL UNIQUE,
					display_name TEXT NOT NULL DEFAULT '',
					email        TEXT NOT NULL DEFAULT '',
					picture_url  TEXT NOT NULL DEFAULT '',
					created_at   TIMESTAMPTZ NOT NULL,
					updated_at   TIMESTAMPTZ NOT NULL
				);
				CREATE TABLE IF NOT EXISTS user_stats (
					profile_id   UUID PRIMARY KEY REFERENCES profiles (id) ON DELETE CASCADE,
					best_score   INTEGER NOT NULL DEFAULT 0,
					games_played INTEGER NOT NULL DEFAULT 0,
					best_streak  INTEGER NOT NULL DEFAULT 0,
					favorites    JSONB   NOT NULL DEFAULT '[]',
					updated_at   TIMESTAMPTZ NOT NULL
				);
				CREATE TABLE IF NOT EXISTS newsletter_subscriptions (
					email      TEXT PRIMARY KEY,
					profile_id UUID REFERENCES profiles (id) ON DELETE SET NULL,
					created_at TIMESTAMPTZ NOT NULL
				)`)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
				DROP TABLE IF EXISTS newsletter_subscriptions;
				DROP TABLE IF EXISTS user_stats;
				DROP TABLE IF EXISTS profiles`)
			return err
		},
	)
}
