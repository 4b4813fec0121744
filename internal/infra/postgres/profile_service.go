package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"tweet-quiz-service/internal/domain"
)

type profileRow struct {
	bun.BaseModel `bun:"table:profiles"`

	ID          string    `bun:"id,pk,type:uuid"`
	ProviderID  string    `bun:"provider_id,notnull"`
	DisplayName string    `bun:"display_name,notnull"`
	Email       string    `bun:"email,notnull"`
	PictureURL  string    `bun:"picture_url,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

func (r profileRow) toDomain() domain.Profile {
	return domain.Profile{
		ID:          r.ID,
		ProviderID:  r.ProviderID,
		DisplayName: r.DisplayName,
		Email:       r.Email,
		PictureURL:  r.PictureURL,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type statsRow struct {
	bun.BaseModel `bun:"table:user_stats"`

	ProfileID   string                `bun:"profile_id,pk,type:uuid"`
	BestScore   int                   `bun:"best_score,notnull"`
	GamesPlayed int                   `bun:"games_played,notnull"`
	BestStreak  int                   `bun:"best_streak,notnull"`
	Favorites   []domain.FavoriteItem `bun:"favorites,type:jsonb,notnull"`
	UpdatedAt   time.Time             `bun:"updated_at,notnull"`
}

// ProfileService is the hosted profile store backed by Postgres through bun.
type ProfileService struct {
	db    *bun.DB
	clock func() time.Time
}

func NewProfileService(db *bun.DB) *ProfileService {
	return &ProfileService{db: db, clock: time.Now}
}

func (s *ProfileService) FetchProfile(ctx context.Context, providerID string) (*domain.Profile, error) {
	var row profileRow
	err := s.db.NewSelect().Model(&row).Where("provider_id = ?", providerID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	p := row.toDomain()
	return &p, nil
}

// UpsertProfile inserts or updates by provider id. The stored id and created_at survive updates.
func (s *ProfileService) UpsertProfile(ctx context.Context, profile domain.Profile) (domain.Profile, error) {
	now := s.clock().UTC()
	row := profileRow{
		ID:          uuid.NewString(),
		ProviderID:  profile.ProviderID,
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
		PictureURL:  profile.PictureURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (provider_id) DO UPDATE").
		Set("display_name = EXCLUDED.display_name").
		Set("email = EXCLUDED.email").
		Set("picture_url = EXCLUDED.picture_url").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}
	return row.toDomain(), nil
}

func (s *ProfileService) FetchAggregate(ctx context.Context, profileID string) (*domain.UserAggregate, error) {
	var row statsRow
	err := s.db.NewSelect().Model(&row).Where("profile_id = ?", profileID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch aggregate: %w", err)
	}
	agg := domain.UserAggregate{
		BestScore:   row.BestScore,
		GamesPlayed: row.GamesPlayed,
		BestStreak:  row.BestStreak,
		Favorites:   row.Favorites,
	}
	if agg.Favorites == nil {
		agg.Favorites = []domain.FavoriteItem{}
	}
	return &agg, nil
}

func (s *ProfileService) UpsertAggregate(ctx context.Context, profileID string, agg domain.UserAggregate) (domain.UserAggregate, error) {
	favorites := agg.Favorites
	if favorites == nil {
		favorites = []domain.FavoriteItem{}
	}
	row := statsRow{
		ProfileID:   profileID,
		BestScore:   agg.BestScore,
		GamesPlayed: agg.GamesPlayed,
		BestStreak:  agg.BestStreak,
		Favorites:   favorites,
		UpdatedAt:   s.clock().UTC(),
	}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (profile_id) DO UPDATE").
		Set("best_score = EXCLUDED.best_score").
		Set("games_played = EXCLUDED.games_played").
		Set("best_streak = EXCLUDED.best_streak").
		Set("favorites = EXCLUDED.favorites").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return domain.UserAggregate{}, fmt.Errorf("upsert aggregate: %w", err)
	}
	return agg.Clone(), nil
}

// UpsertNewsletterSubscription reports true when the email was not yet subscribed.
func (s *ProfileService) UpsertNewsletterSubscription(ctx context.Context, email, profileID string) (bool, error) {
	var inserted bool
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO newsletter_subscriptions (email, profile_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET profile_id = EXCLUDED.profile_id
		RETURNING (xmax = 0)`,
		email, profileID, s.clock().UTC(),
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert newsletter subscription: %w", err)
	}
	return inserted, nil
}
