package app

import (
	"context"

	"tweet-quiz-service/internal/domain"
)

// Favorites toggles saved items in the current identity's aggregate.
type Favorites struct {
	sessions  *SessionManager
	game      *Game
	presenter Presenter
	target    string
}

func NewFavorites(sessions *SessionManager, game *Game, presenter Presenter, target string) *Favorites {
	if target == "" {
		target = domain.DefaultTarget
	}
	return &Favorites{sessions: sessions, game: game, presenter: presenter, target: target}
}

// Toggle saves or unsaves the current item. Unauthenticated users get a prompt and nothing changes.
func (f *Favorites) Toggle(ctx context.Context) error {
	if !f.sessions.Authenticated() {
		f.presenter.Notice("Please sign in to save favorite tweets!")
		return nil
	}
	item, err := f.game.CurrentItem()
	if err != nil {
		return err
	}

	agg := f.sessions.LoadAggregate(ctx)
	id := domain.FavoriteID(item.Text)
	saved := !agg.HasFavorite(id)
	if saved {
		agg = agg.WithFavorite(domain.NewFavorite(item, f.target))
	} else {
		agg = agg.WithoutFavorite(id)
	}

	if err := f.sessions.SaveAggregate(ctx, agg); err != nil {
		return err
	}
	f.presenter.RenderFavoriteButton(saved)
	return nil
}

// IsFavorited reports whether the current item is saved. It is always false when signed out.
func (f *Favorites) IsFavorited(ctx context.Context) bool {
	if !f.sessions.Authenticated() {
		return false
	}
	item, err := f.game.CurrentItem()
	if err != nil {
		return false
	}
	return f.sessions.LoadAggregate(ctx).HasFavorite(domain.FavoriteID(item.Text))
}

// Remove drops a saved item by id and re-renders the list.
func (f *Favorites) Remove(ctx context.Context, id string) error {
	agg := f.sessions.LoadAggregate(ctx).WithoutFavorite(id)
	if err := f.sessions.SaveAggregate(ctx, agg); err != nil {
		return err
	}
	f.presenter.RenderFavorites(agg.Favorites)
	return nil
}
