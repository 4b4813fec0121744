package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"tweet-quiz-service/internal/domain"
)

// ItemStore reads and replaces the quiz content held in the quiz_items table.
type ItemStore struct {
	pool *pgxpool.Pool
}

func NewItemStore(pool *pgxpool.Pool) *ItemStore {
	return &ItemStore{pool: pool}
}

// LoadItems returns the content set in its stored order.
func (s *ItemStore) LoadItems(ctx context.Context) ([]domain.QuizItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT text, attributed_to_target, date, real_author FROM quiz_items ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	defer rows.Close()

	var items []domain.QuizItem
	for rows.Next() {
		var item domain.QuizItem
		if err := rows.Scan(&item.Text, &item.AttributedToTarget, &item.Date, &item.RealAuthor); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if err := item.Validate(); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	return items, nil
}

// ReplaceItems swaps the whole content set in one transaction.
func (s *ItemStore) ReplaceItems(ctx context.Context, items []domain.QuizItem) error {
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM quiz_items`); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}
	rows := make([][]interface{}, 0, len(items))
	for i, item := range items {
		rows = append(rows, []interface{}{i, item.Text, item.AttributedToTarget, item.Date, item.RealAuthor})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"quiz_items"},
		[]string{"position", "text", "attributed_to_target", "date", "real_author"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("copy items: %w", err)
	}
	return tx.Commit(ctx)
}
