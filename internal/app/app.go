package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"tweet-quiz-service/internal/domain"
)

// ActionKind names a user action delivered to an App.
type ActionKind string

const (
	ActionSignIn         ActionKind = "signIn"
	ActionCredential     ActionKind = "credential"
	ActionSignOut        ActionKind = "signOut"
	ActionPlay           ActionKind = "play"
	ActionGuess          ActionKind = "guess"
	ActionNext           ActionKind = "next"
	ActionRestart        ActionKind = "restart"
	ActionToggleFavorite ActionKind = "toggleFavorite"
	ActionRemoveFavorite ActionKind = "removeFavorite"
	ActionStats          ActionKind = "stats"
	ActionNewsletter     ActionKind = "newsletter"
)

// Action is a discrete user input.
type Action struct {
	Kind       ActionKind
	Claim      bool   // guess
	ID         string // removeFavorite
	Email      string // newsletter
	Credential string // credential
}

// Config holds the collaborators of one App.
type Config struct {
	Items     []domain.QuizItem
	Provider  IdentityProvider
	Profiles  ProfileService
	Cache     LocalCache
	Presenter Presenter
	Target    string
	Logger    *slog.Logger
	Rand      *rand.Rand
}

// App is the application context for one tab: it owns the quiz engine, session
// manager and favorites, and processes events one at a time.
type App struct {
	log       *slog.Logger
	provider  IdentityProvider
	presenter Presenter
	game      *Game
	sessions  *SessionManager
	favorites *Favorites
}

// New constructs an App. Provider and Profiles may be nil for local-only play.
func New(cfg Config) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var game *Game
	if cfg.Rand != nil {
		game = NewGameWithRand(cfg.Items, cfg.Target, cfg.Rand)
	} else {
		game = NewGame(cfg.Items, cfg.Target)
	}
	sessions := NewSessionManager(cfg.Provider, cfg.Profiles, cfg.Cache, cfg.Presenter, logger)
	a := &App{
		log:       logger,
		provider:  cfg.Provider,
		presenter: cfg.Presenter,
		game:      game,
		sessions:  sessions,
		favorites: NewFavorites(sessions, game, cfg.Presenter, cfg.Target),
	}
	sessions.OnAuthenticated(a.StartGame)
	return a
}

func (a *App) Game() *Game {
	return a.game
}

func (a *App) Sessions() *SessionManager {
	return a.sessions
}

func (a *App) Favorites() *Favorites {
	return a.favorites
}

// Init resolves the startup identity.
func (a *App) Init(ctx context.Context) {
	a.sessions.CheckExistingSession(ctx)
}

// Run processes provider session events and user actions in delivery order until
// ctx is canceled or actions is closed.
func (a *App) Run(ctx context.Context, actions <-chan Action) error {
	var events <-chan domain.SessionEvent
	if a.provider != nil {
		ch, cancel := a.provider.Subscribe()
		defer cancel()
		events = ch
	}

	a.Init(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			a.sessions.OnSessionChange(ctx, ev.Session)
		case act, ok := <-actions:
			if !ok {
				return nil
			}
			if err := a.Dispatch(ctx, act); err != nil {
				a.log.Debug("action rejected", slog.String("action", string(act.Kind)), slog.Any("error", err))
				a.presenter.Notice(err.Error())
			}
		}
	}
}

// Dispatch applies a single action.
func (a *App) Dispatch(ctx context.Context, act Action) error {
	switch act.Kind {
	case ActionSignIn:
		a.SignIn(ctx)
		return nil
	case ActionCredential:
		return a.SignInWithCredential(ctx, act.Credential)
	case ActionSignOut:
		a.sessions.SignOut(ctx)
		return nil
	case ActionPlay:
		a.Play(ctx)
		return nil
	case ActionGuess:
		return a.Guess(ctx, act.Claim)
	case ActionNext:
		return a.Next(ctx)
	case ActionRestart:
		a.StartGame(ctx)
		return nil
	case ActionToggleFavorite:
		return a.favorites.Toggle(ctx)
	case ActionRemoveFavorite:
		return a.favorites.Remove(ctx, act.ID)
	case ActionStats:
		a.ShowStats(ctx)
		return nil
	case ActionNewsletter:
		return a.SubscribeNewsletter(ctx, act.Email)
	default:
		return fmt.Errorf("unsupported action %q", act.Kind)
	}
}

// SignIn starts the interactive provider flow and hands the redirect to the view.
func (a *App) SignIn(ctx context.Context) {
	url, err := a.sessions.SignIn(ctx)
	if err != nil {
		return
	}
	a.presenter.RedirectToSignIn(url)
}

// SignInWithCredential passes a client-obtained credential to the provider.
// The session change is delivered on the provider subscription.
func (a *App) SignInWithCredential(ctx context.Context, credential string) error {
	cp, ok := a.provider.(CredentialSignIn)
	if !ok {
		return domain.ErrProviderUnavailable
	}
	if err := cp.SignInWithCredential(ctx, credential); err != nil {
		a.log.Warn("credential sign-in failed", slog.Any("error", err))
		a.presenter.Notice("Sign-in failed. Please try again.")
	}
	return nil
}

// StartGame begins a fresh play-through.
func (a *App) StartGame(ctx context.Context) {
	a.game.Start()
	if a.game.Phase() == PhaseCompleted {
		a.finish(ctx)
		return
	}
	a.renderPosition(ctx)
}

// Play returns to the play view, starting a play-through if none exists.
func (a *App) Play(ctx context.Context) {
	switch a.game.Phase() {
	case PhaseUninitialized:
		a.StartGame(ctx)
	case PhaseCompleted:
		a.presenter.RenderCompletion(a.game.Completion())
	default:
		a.renderPosition(ctx)
	}
}

func (a *App) renderPosition(ctx context.Context) {
	a.presenter.RenderScoreboard(a.game.Scoreboard())
	item, err := a.game.CurrentItem()
	if err != nil {
		return
	}
	a.presenter.RenderItem(item)
	a.presenter.RenderFavoriteButton(a.favorites.IsFavorited(ctx))
}

// Guess scores a claim on the current item.
func (a *App) Guess(_ context.Context, claim bool) error {
	res, err := a.game.Guess(claim)
	if err != nil {
		return err
	}
	a.presenter.RenderResult(res)
	a.presenter.RenderScoreboard(a.game.Scoreboard())
	return nil
}

// Next advances past the answered item, finishing the play-through at the end.
func (a *App) Next(ctx context.Context) error {
	done, err := a.game.Advance()
	if err != nil {
		return err
	}
	if done {
		a.finish(ctx)
		return nil
	}
	a.renderPosition(ctx)
	return nil
}

func (a *App) finish(ctx context.Context) {
	completion := a.game.Completion()
	if _, ok := a.sessions.RecordPlaythrough(ctx, completion.Score, completion.MaxStreak); ok {
		a.log.Info("play-through recorded",
			slog.Int("score", completion.Score),
			slog.Int("total", completion.Total),
			slog.Int("max_streak", completion.MaxStreak),
		)
	}
	a.presenter.RenderCompletion(completion)
}

// ShowStats renders the aggregate and favorites for the current identity.
func (a *App) ShowStats(ctx context.Context) {
	agg := a.sessions.LoadAggregate(ctx)
	a.presenter.RenderStats(agg)
	a.presenter.RenderFavorites(agg.Favorites)
}

// SubscribeNewsletter records a newsletter subscription for the signed-in user.
func (a *App) SubscribeNewsletter(ctx context.Context, email string) error {
	ok, err := a.sessions.SubscribeNewsletter(ctx, email)
	var remote *domain.RemoteError
	switch {
	case errors.As(err, &remote):
		a.log.Warn("newsletter subscription failed", slog.Any("error", err))
		a.presenter.Notice("Could not subscribe right now. Please try again later.")
		return nil
	case err != nil:
		return err
	case ok:
		a.presenter.Notice("Subscribed to the newsletter.")
	default:
		a.presenter.Notice("You are already subscribed.")
	}
	return nil
}
