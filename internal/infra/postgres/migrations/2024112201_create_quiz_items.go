package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS quiz_items (
					position             INTEGER PRIMARY KEY,
					text                 TEXT    NOT NULL,
					attributed_to_target BOOLEAN NOT NULL,
					date                 TEXT    NOT NULL,
					real_author          TEXT    NOT NULL DEFAULT ''
				)`)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS quiz_items`)
			return err
		},
	)
}
