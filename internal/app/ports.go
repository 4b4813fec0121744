package app

import (
	"context"

	"tweet-quiz-service/internal/domain"
)

// ItemRepository loads the content store (from cache/backing store).
type ItemRepository interface {
	Items(ctx context.Context) ([]domain.QuizItem, error)
}

// LocalCache is the device-scoped key-value store (in-memory, Redis, SQLite, etc).
// Implementations return domain.ErrMalformedRecord for entries that cannot be decoded.
type LocalCache interface {
	LoadIdentity(ctx context.Context) (*domain.Identity, error)
	SaveIdentity(ctx context.Context, identity domain.Identity) error
	ClearIdentity(ctx context.Context) error
	LoadAggregate(ctx context.Context, userID string) (domain.UserAggregate, bool, error)
	SaveAggregate(ctx context.Context, userID string, agg domain.UserAggregate) error
}

// ProfileService is the hosted profile/stats store. Lookups return nil when no record exists.
type ProfileService interface {
	FetchProfile(ctx context.Context, providerID string) (*domain.Profile, error)
	UpsertProfile(ctx context.Context, profile domain.Profile) (domain.Profile, error)
	FetchAggregate(ctx context.Context, profileID string) (*domain.UserAggregate, error)
	UpsertAggregate(ctx context.Context, profileID string, agg domain.UserAggregate) (domain.UserAggregate, error)
	UpsertNewsletterSubscription(ctx context.Context, email, profileID string) (bool, error)
}

// IdentityProvider is the external sign-in integration.
// CurrentSession returns domain.ErrProviderUnavailable when the integration is not configured.
type IdentityProvider interface {
	// SignIn starts the interactive flow and returns the URL the user must visit.
	// Completion is reported later on the subscription.
	SignIn(ctx context.Context) (string, error)
	SignOut(ctx context.Context) error
	CurrentSession(ctx context.Context) (*domain.Session, error)
	Subscribe() (<-chan domain.SessionEvent, func())
}

// CredentialSignIn is implemented by providers that accept a credential obtained
// client-side (for example a Google ID token).
type CredentialSignIn interface {
	SignInWithCredential(ctx context.Context, credential string) error
}

// Presenter receives view updates.
type Presenter interface {
	EnterAuthenticated(identity domain.Identity)
	EnterSignIn()
	RedirectToSignIn(url string)
	RenderItem(item domain.QuizItem)
	RenderResult(result domain.GuessResult)
	RenderScoreboard(board domain.Scoreboard)
	RenderCompletion(completion domain.Completion)
	RenderFavorites(favorites []domain.FavoriteItem)
	RenderFavoriteButton(saved bool)
	RenderStats(agg domain.UserAggregate)
	Notice(message string)
}
